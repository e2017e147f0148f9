package channel

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/chefware/backoffice/internal/domain/channel"
)

// FieldUpdate records one UpdateFields call against the memory source
type FieldUpdate struct {
	Key    string
	Fields map[string]any
}

// MemorySource is an in-memory EventSource used in tests and local
// development. Emit delivers events to every open subscription.
type MemorySource struct {
	mu      sync.Mutex
	items   map[string]json.RawMessage
	subs    map[int]chan channel.RawEvent
	nextSub int
	updates []FieldUpdate

	// SnapshotErr, when set, is returned by Snapshot
	SnapshotErr error
	// UpdateErr, when set, is returned by UpdateFields
	UpdateErr error
}

// NewMemorySource creates an empty in-memory event source
func NewMemorySource() *MemorySource {
	return &MemorySource{
		items: make(map[string]json.RawMessage),
		subs:  make(map[int]chan channel.RawEvent),
	}
}

// Seed stores an item without emitting an event, for pre-populating snapshots
func (m *MemorySource) Seed(key string, payload json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = payload
}

// Emit stores the item and broadcasts the event to all subscribers
func (m *MemorySource) Emit(kind channel.EventKind, key string, payload json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if kind == channel.EventRemoved {
		delete(m.items, key)
	} else {
		m.items[key] = payload
	}
	// Deliver under the lock so a concurrent unsubscribe cannot close a
	// channel mid-send. The send never blocks: a subscriber that has let its
	// buffer fill loses the event instead of wedging the source
	for _, ch := range m.subs {
		select {
		case ch <- channel.RawEvent{Key: key, Kind: kind, Payload: payload}:
		default:
		}
	}
}

// Subscribe attaches a new subscription fed by Emit
func (m *MemorySource) Subscribe(ctx context.Context) (*channel.Subscription, error) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	ch := make(chan channel.RawEvent, 64)
	m.subs[id] = ch
	m.mu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	go func() {
		<-subCtx.Done()
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
		close(ch)
	}()

	return channel.NewSubscription(ch, cancel), nil
}

// Snapshot returns a copy of the current item map
func (m *MemorySource) Snapshot(ctx context.Context) (map[string]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SnapshotErr != nil {
		return nil, m.SnapshotErr
	}
	snapshot := make(map[string]json.RawMessage, len(m.items))
	for k, v := range m.items {
		snapshot[k] = v
	}
	return snapshot, nil
}

// UpdateFields records the partial update for later inspection
func (m *MemorySource) UpdateFields(ctx context.Context, key string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.updates = append(m.updates, FieldUpdate{Key: key, Fields: fields})
	return nil
}

// Updates returns the recorded UpdateFields calls
func (m *MemorySource) Updates() []FieldUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FieldUpdate, len(m.updates))
	copy(out, m.updates)
	return out
}

// SubscriberCount returns the number of open subscriptions
func (m *MemorySource) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Ensure MemorySource implements the event source port
var _ channel.EventSource = (*MemorySource)(nil)
