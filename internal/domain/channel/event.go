// Package channel defines the port for the remote push-based event source the
// back office synchronizes against: a keyed collection delivering add, change
// and remove notifications plus a one-shot full snapshot read.
package channel

import (
	"context"
	"encoding/json"
)

// EventKind identifies the notification kind delivered by the event source
type EventKind string

const (
	// EventAdded signals a new item appeared under the key
	EventAdded EventKind = "added"
	// EventChanged signals the item under the key was modified
	EventChanged EventKind = "changed"
	// EventRemoved signals the item under the key was deleted
	EventRemoved EventKind = "removed"
)

// RawEvent is an event as delivered by the remote source. Payload is the
// item's full value at delivery time and is opaque until normalization; it is
// not retained beyond conversion.
type RawEvent struct {
	Key     string
	Kind    EventKind
	Payload json.RawMessage
}

// Subscription is a live event stream handle. After Cancel returns, no
// further events are delivered and Events is closed.
type Subscription struct {
	events chan RawEvent
	cancel context.CancelFunc
}

// NewSubscription builds a subscription around an event channel and the
// cancel function that tears the underlying stream down
func NewSubscription(events chan RawEvent, cancel context.CancelFunc) *Subscription {
	return &Subscription{events: events, cancel: cancel}
}

// Events returns the stream of raw events. The channel is closed when the
// subscription is cancelled or the source disconnects permanently.
func (s *Subscription) Events() <-chan RawEvent {
	return s.events
}

// Cancel detaches from the source. Safe to call multiple times.
func (s *Subscription) Cancel() {
	s.cancel()
}

// EventSource is the port to the remote push-based keyed collection
type EventSource interface {
	// Subscribe attaches to the live event stream. The returned subscription
	// must be cancelled to release the underlying connection.
	Subscribe(ctx context.Context) (*Subscription, error)

	// Snapshot performs a one-shot full read of the collection, keyed by item
	// identifier
	Snapshot(ctx context.Context) (map[string]json.RawMessage, error)

	// UpdateFields writes a partial-path update to a single item, used to push
	// local status changes upstream
	UpdateFields(ctx context.Context, key string, fields map[string]any) error
}
