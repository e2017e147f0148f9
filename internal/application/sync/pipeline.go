package sync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chefware/backoffice/internal/domain/channel"
	"github.com/chefware/backoffice/internal/domain/order"
	"github.com/chefware/backoffice/internal/domain/shared"
)

// State is the pipeline lifecycle state
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateListening  State = "listening"
	StateStopped    State = "stopped"
)

// Pipeline subscribes to the remote event source, filters incoming events
// through the admission policy and persists admitted orders through the shared
// import path. It also pushes local status changes upstream, guarding against
// its own writes echoing back as inbound events.
//
// Lifecycle: Idle -> Connecting -> Listening -> Stopped. A stopped pipeline
// cannot be restarted; build a new instance.
type Pipeline struct {
	source     channel.EventSource
	importer   *Importer
	orders     order.Repository
	processed  *ProcessedSet
	reconciler *Reconciler
	notifier   Notifier
	logger     *zap.Logger
	now        func() time.Time

	staleness    time.Duration
	sessionCap   int
	recencyGuard time.Duration

	mu           sync.Mutex
	state        State
	sub          *channel.Subscription
	admitted     int
	dropped      int
	recentWrites map[string]time.Time

	wg sync.WaitGroup
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithPipelineLogger sets the logger
func WithPipelineLogger(logger *zap.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

// WithPipelineClock overrides the time source
func WithPipelineClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// WithStalenessWindow sets the maximum event age admitted as live
func WithStalenessWindow(d time.Duration) PipelineOption {
	return func(p *Pipeline) { p.staleness = d }
}

// WithSessionCap bounds admissions per process lifetime
func WithSessionCap(n int) PipelineOption {
	return func(p *Pipeline) { p.sessionCap = n }
}

// WithRecencyGuard sets the echo-suppression window for local writes
func WithRecencyGuard(d time.Duration) PipelineOption {
	return func(p *Pipeline) { p.recencyGuard = d }
}

// NewPipeline wires an idle pipeline
func NewPipeline(source channel.EventSource, importer *Importer, orders order.Repository,
	processed *ProcessedSet, reconciler *Reconciler, notifier Notifier, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		source:       source,
		importer:     importer,
		orders:       orders,
		processed:    processed,
		reconciler:   reconciler,
		notifier:     notifier,
		logger:       zap.NewNop(),
		now:          time.Now,
		staleness:    2 * time.Hour,
		sessionCap:   100,
		recencyGuard: 10 * time.Second,
		state:        StateIdle,
		recentWrites: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start runs one reconciliation pass and then attaches the live listener.
// Calling Start while connecting or listening is a logged no-op; a stopped
// pipeline refuses to start again.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	switch p.state {
	case StateConnecting, StateListening:
		p.mu.Unlock()
		p.logger.Info("pipeline already running, ignoring start", zap.String("state", string(p.state)))
		return nil
	case StateStopped:
		p.mu.Unlock()
		return shared.NewDomainError("PIPELINE_STOPPED", "A stopped pipeline cannot be restarted")
	}
	p.state = StateConnecting
	p.mu.Unlock()

	// Catch up on history first so the live listener only notifies for
	// genuinely new events. A failed pass logs inside the reconciler and
	// stays retryable after its cooldown.
	_, _ = p.reconciler.ReconcileOnce(ctx)

	sub, err := p.source.Subscribe(ctx)
	if err != nil {
		p.mu.Lock()
		if p.state == StateConnecting {
			p.state = StateIdle
		}
		p.mu.Unlock()
		return err
	}

	p.mu.Lock()
	// Stop may have won the race while this call was reconciling or
	// subscribing; a stopped pipeline must not come back up with a live
	// subscription
	if p.state == StateStopped {
		p.mu.Unlock()
		sub.Cancel()
		return nil
	}
	p.state = StateListening
	p.sub = sub
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(ctx, sub)

	p.logger.Info("pipeline listening")
	return nil
}

// Stop detaches the subscription and moves to Stopped. Safe to call in any
// state and more than once; it blocks until the event loop has drained.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	sub := p.sub
	p.sub = nil
	alreadyStopped := p.state == StateStopped
	p.state = StateStopped
	p.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	p.wg.Wait()

	if !alreadyStopped {
		p.logger.Info("pipeline stopped")
	}
}

// State returns the current lifecycle state
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Stats reports pipeline counters for the status surface
func (p *Pipeline) Stats() (state State, admitted, dropped, processed int) {
	p.mu.Lock()
	state, admitted, dropped = p.state, p.admitted, p.dropped
	p.mu.Unlock()
	return state, admitted, dropped, p.processed.Len()
}

// PushStatusUpdate propagates a local status change upstream. The write is
// recorded before the remote call so its echo is suppressed even if the
// notification arrives faster than the call returns.
func (p *Pipeline) PushStatusUpdate(ctx context.Context, orderID string, fields map[string]any) error {
	p.mu.Lock()
	p.recentWrites[orderID] = p.now()
	p.mu.Unlock()

	if err := p.source.UpdateFields(ctx, orderID, fields); err != nil {
		// Nothing was written upstream, so there is no echo to suppress;
		// leaving the entry would swallow a genuine inbound change
		p.mu.Lock()
		delete(p.recentWrites, orderID)
		p.mu.Unlock()
		return err
	}
	p.logger.Debug("pushed status update", zap.String("order_id", orderID))
	return nil
}

func (p *Pipeline) run(ctx context.Context, sub *channel.Subscription) {
	defer p.wg.Done()
	for evt := range sub.Events() {
		p.handle(ctx, evt)
	}
}

func (p *Pipeline) handle(ctx context.Context, evt channel.RawEvent) {
	switch evt.Kind {
	case channel.EventRemoved:
		// A later re-creation under the same key is treated as new
		p.processed.Evict(evt.Key)
		p.mu.Lock()
		delete(p.recentWrites, evt.Key)
		p.mu.Unlock()
		return
	case channel.EventChanged:
		if p.recentlyWritten(evt.Key) {
			p.logger.Debug("suppressing echo of local write", zap.String("key", evt.Key))
			return
		}
	}
	p.admit(ctx, evt)
}

// admit applies the admission policy in its fixed order, short-circuiting on
// the first matching rule
func (p *Pipeline) admit(ctx context.Context, evt channel.RawEvent) {
	if p.processed.Seen(evt.Key) {
		return
	}

	payload := decodePayload(evt.Payload)
	eventTime, _ := resolveTimestamp(evt.Key, payload, p.now())
	if age := p.now().Sub(eventTime); age >= p.staleness {
		p.logger.Debug("discarding stale event",
			zap.String("key", evt.Key),
			zap.Duration("age", age))
		p.processed.Mark(evt.Key)
		return
	}

	exists, err := p.orders.Exists(ctx, evt.Key)
	if err != nil {
		p.logger.Warn("existence check failed, skipping event",
			zap.String("key", evt.Key),
			zap.Error(err))
		return
	}
	if exists {
		// The local store is authoritative; inbound corrections for orders it
		// already holds are dropped, not merged
		p.processed.Mark(evt.Key)
		return
	}

	p.mu.Lock()
	if p.admitted >= p.sessionCap {
		p.dropped++
		dropped := p.dropped
		p.mu.Unlock()
		p.logger.Warn("session admission cap reached, dropping event",
			zap.String("key", evt.Key),
			zap.Int("dropped", dropped))
		return
	}
	p.admitted++
	p.mu.Unlock()

	// Mark before the slow normalize/persist work so a near-simultaneous
	// duplicate cannot also pass admission
	if !p.processed.MarkIfNew(evt.Key) {
		p.mu.Lock()
		p.admitted--
		p.mu.Unlock()
		return
	}

	o, err := p.importer.Import(ctx, evt)
	if err != nil {
		// Leave the key retryable: a later change event can import it
		p.processed.Evict(evt.Key)
		p.mu.Lock()
		p.admitted--
		p.mu.Unlock()
		p.logger.Error("import failed", zap.String("key", evt.Key), zap.Error(err))
		return
	}

	p.notifier.NotifyNewOrder(ctx, NewOrderAlert{
		OrderID:      o.ID,
		CustomerName: o.Customer.Name,
		ItemCount:    o.ItemCount(),
		Total:        o.Total,
	})
	p.notifier.IncrementUnread(ctx)
}

// recentlyWritten reports whether the key was locally written within the
// recency guard window, pruning expired entries as a side effect
func (p *Pipeline) recentlyWritten(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for k, at := range p.recentWrites {
		if now.Sub(at) > p.recencyGuard {
			delete(p.recentWrites, k)
		}
	}

	at, ok := p.recentWrites[key]
	return ok && now.Sub(at) <= p.recencyGuard
}
