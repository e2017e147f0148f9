// Package cache provides the generic read-through TTL cache every module uses
// to avoid redundant reads of slow-changing reference data. Each store is one
// cache instance with its own TTL; concurrent fetches for the same store are
// collapsed into a single underlying call.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Source is one provider in a store's ordered fallback chain. Fetch returns
// the full record set for the store.
type Source[T any] interface {
	Name() string
	Fetch(ctx context.Context) ([]T, error)
}

// SourceFunc adapts a function to the Source interface
type SourceFunc[T any] struct {
	name string
	fn   func(ctx context.Context) ([]T, error)
}

// NewSourceFunc creates a Source from a fetch function
func NewSourceFunc[T any](name string, fn func(ctx context.Context) ([]T, error)) SourceFunc[T] {
	return SourceFunc[T]{name: name, fn: fn}
}

// Name returns the source name
func (s SourceFunc[T]) Name() string { return s.name }

// Fetch invokes the wrapped function
func (s SourceFunc[T]) Fetch(ctx context.Context) ([]T, error) { return s.fn(ctx) }

// Stats holds cache counters for monitoring
type Stats struct {
	Hits        int64     `json:"hits"`
	Misses      int64     `json:"misses"`
	Fetches     int64     `json:"fetches"`
	Throttled   int64     `json:"throttled"`
	Size        int       `json:"size"`
	RefreshedAt time.Time `json:"refreshedAt"`
}

// ReadThrough is a per-store read-through cache over an ordered chain of
// sources. A hit within the TTL returns without touching any source; misses
// are single-flighted; fetch failures degrade to the last known value (or an
// empty slice) and are logged, never propagated while a fallback exists.
type ReadThrough[T any] struct {
	name         string
	ttl          time.Duration
	throttle     time.Duration
	refreshDelay time.Duration
	sources      []Source[T]
	logger       *zap.Logger

	group singleflight.Group

	mu          sync.RWMutex
	value       []T
	hasValue    bool
	refreshedAt time.Time
	lastAttempt time.Time

	stopCh    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	hits      int64
	misses    int64
	fetches   int64
	throttled int64
}

// Option is a functional option for configuring a ReadThrough cache
type Option[T any] func(*ReadThrough[T])

// WithLogger sets the logger for the cache
func WithLogger[T any](logger *zap.Logger) Option[T] {
	return func(c *ReadThrough[T]) {
		c.logger = logger
	}
}

// WithThrottle sets the repeat-call suppression window. Within the window a
// non-forced fetch attempt returns the last known value instead of hitting
// the sources again.
func WithThrottle[T any](window time.Duration) Option[T] {
	return func(c *ReadThrough[T]) {
		c.throttle = window
	}
}

// WithRefreshDelay sets the wait before the background refresh that Update
// schedules after a write
func WithRefreshDelay[T any](delay time.Duration) Option[T] {
	return func(c *ReadThrough[T]) {
		c.refreshDelay = delay
	}
}

// NewReadThrough creates a read-through cache for one store. Sources are
// consulted in order until one succeeds.
func NewReadThrough[T any](name string, ttl time.Duration, sources []Source[T], opts ...Option[T]) *ReadThrough[T] {
	c := &ReadThrough[T]{
		name:         name,
		ttl:          ttl,
		throttle:     2 * time.Second,
		refreshDelay: 500 * time.Millisecond,
		sources:      sources,
		logger:       zap.NewNop(),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("store", name))
	return c
}

// Name returns the store name this cache serves
func (c *ReadThrough[T]) Name() string { return c.name }

// Get returns the store's records, fetching through the source chain when the
// cached value is missing or expired. force bypasses both the TTL check and
// the throttle window.
func (c *ReadThrough[T]) Get(ctx context.Context, force bool) ([]T, error) {
	if !force {
		c.mu.RLock()
		if c.hasValue && time.Since(c.refreshedAt) < c.ttl {
			value := c.value
			c.mu.RUnlock()
			atomic.AddInt64(&c.hits, 1)
			return value, nil
		}
		stale := c.value
		hasStale := c.hasValue
		throttled := !c.lastAttempt.IsZero() && time.Since(c.lastAttempt) < c.throttle
		c.mu.RUnlock()

		if throttled && hasStale {
			atomic.AddInt64(&c.throttled, 1)
			c.logger.Debug("fetch throttled, returning last known value")
			return stale, nil
		}
	}

	atomic.AddInt64(&c.misses, 1)

	// Concurrent callers for the same store share one in-flight fetch
	result, err, _ := c.group.Do(c.name, func() (any, error) {
		return c.fetch(ctx), nil
	})
	if err != nil {
		// The fetch itself never returns an error; singleflight only
		// propagates panics here
		return []T{}, err
	}
	return result.([]T), nil
}

// fetch walks the source chain and records whatever it obtained. All sources
// failing resolves to the last known value, or an empty slice.
func (c *ReadThrough[T]) fetch(ctx context.Context) []T {
	atomic.AddInt64(&c.fetches, 1)

	var value []T
	fetched := false
	for _, source := range c.sources {
		records, err := source.Fetch(ctx)
		if err != nil {
			c.logger.Warn("cache source failed, trying next",
				zap.String("source", source.Name()),
				zap.Error(err))
			continue
		}
		if records == nil {
			records = []T{}
		}
		value = records
		fetched = true
		break
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastAttempt = time.Now()
	if !fetched {
		c.logger.Warn("all cache sources failed")
		if c.hasValue {
			return c.value
		}
		return []T{}
	}

	c.value = value
	c.hasValue = true
	c.refreshedAt = time.Now()
	return value
}

// Invalidate clears the cached value and its timestamp immediately
func (c *ReadThrough[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = nil
	c.hasValue = false
	c.refreshedAt = time.Time{}
	c.lastAttempt = time.Time{}
	c.logger.Debug("cache invalidated")
}

// Update invalidates the store, performs the underlying write, and schedules
// a background refresh shortly after so the write call returns promptly
func (c *ReadThrough[T]) Update(ctx context.Context, write func(context.Context) error) error {
	c.Invalidate()
	if err := write(ctx); err != nil {
		return err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		select {
		case <-c.stopCh:
			return
		case <-time.After(c.refreshDelay):
		}
		if _, err := c.Get(context.Background(), true); err != nil {
			c.logger.Warn("background refresh failed", zap.Error(err))
		}
	}()
	return nil
}

// Stats returns the cache counters
func (c *ReadThrough[T]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Hits:        atomic.LoadInt64(&c.hits),
		Misses:      atomic.LoadInt64(&c.misses),
		Fetches:     atomic.LoadInt64(&c.fetches),
		Throttled:   atomic.LoadInt64(&c.throttled),
		Size:        len(c.value),
		RefreshedAt: c.refreshedAt,
	}
}

// Close stops pending background refreshes and clears the store
func (c *ReadThrough[T]) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCh)
	})
	c.wg.Wait()
	c.Invalidate()
}
