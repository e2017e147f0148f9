package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSource counts fetches and can be made slow or failing
type countingSource struct {
	mu      sync.Mutex
	calls   int32
	records []string
	err     error
	delay   time.Duration
	release chan struct{}
}

func (s *countingSource) Name() string { return "counting" }

func (s *countingSource) Fetch(ctx context.Context) ([]string, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.release != nil {
		<-s.release
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func (s *countingSource) Calls() int {
	return int(atomic.LoadInt32(&s.calls))
}

func newCache(src Source[string], ttl time.Duration, opts ...Option[string]) *ReadThrough[string] {
	opts = append([]Option[string]{WithThrottle[string](0)}, opts...)
	return NewReadThrough("products", ttl, []Source[string]{src}, opts...)
}

func TestGet_HitWithinTTLDoesNotFetch(t *testing.T) {
	src := &countingSource{records: []string{"a", "b"}}
	c := newCache(src, time.Minute)
	defer c.Close()

	ctx := context.Background()

	first, err := c.Get(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, first)
	assert.Equal(t, 1, src.Calls())

	second, err := c.Get(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.Calls(), "hit within TTL must not touch the source")
}

func TestGet_ExpiredTTLTriggersExactlyOneRefetch(t *testing.T) {
	src := &countingSource{records: []string{"a"}}
	c := newCache(src, 20*time.Millisecond)
	defer c.Close()

	ctx := context.Background()
	_, err := c.Get(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 1, src.Calls())

	time.Sleep(30 * time.Millisecond)

	_, err = c.Get(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, src.Calls(), "expired value triggers one refetch")

	_, err = c.Get(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, src.Calls(), "fresh value triggers none")
}

func TestGet_SingleFlight(t *testing.T) {
	src := &countingSource{records: []string{"a"}, release: make(chan struct{})}
	c := newCache(src, time.Minute)
	defer c.Close()

	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([][]string, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			records, err := c.Get(ctx, false)
			require.NoError(t, err)
			results[i] = records
		}(i)
	}

	// Let both callers reach the in-flight fetch, then release it
	time.Sleep(20 * time.Millisecond)
	close(src.release)
	wg.Wait()

	assert.Equal(t, 1, src.Calls(), "concurrent gets collapse into one fetch")
	assert.Equal(t, results[0], results[1])
}

func TestGet_ThrottleReturnsLastKnownValue(t *testing.T) {
	src := &countingSource{records: []string{"a"}}
	c := NewReadThrough("products", 10*time.Millisecond,
		[]Source[string]{src}, WithThrottle[string](time.Minute))
	defer c.Close()

	ctx := context.Background()
	_, err := c.Get(ctx, false)
	require.NoError(t, err)

	// TTL expires but the throttle window is still open
	time.Sleep(20 * time.Millisecond)

	records, err := c.Get(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, records)
	assert.Equal(t, 1, src.Calls(), "repeat call within throttle window is absorbed")
}

func TestGet_ForceBypassesTTLAndThrottle(t *testing.T) {
	src := &countingSource{records: []string{"a"}}
	c := NewReadThrough("products", time.Minute,
		[]Source[string]{src}, WithThrottle[string](time.Minute))
	defer c.Close()

	ctx := context.Background()
	_, err := c.Get(ctx, false)
	require.NoError(t, err)

	_, err = c.Get(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, src.Calls())
}

func TestGet_FailureResolvesToEmpty(t *testing.T) {
	src := &countingSource{err: errors.New("remote down")}
	c := newCache(src, time.Minute)
	defer c.Close()

	records, err := c.Get(context.Background(), false)
	require.NoError(t, err, "fetch failures must not propagate")
	assert.Empty(t, records)
}

func TestGet_FallsBackThroughSourceChain(t *testing.T) {
	primary := &countingSource{err: errors.New("remote down")}
	fallback := NewSourceFunc("local", func(ctx context.Context) ([]string, error) {
		return []string{"from-fallback"}, nil
	})
	c := NewReadThrough("products", time.Minute,
		[]Source[string]{primary, fallback}, WithThrottle[string](0))
	defer c.Close()

	records, err := c.Get(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"from-fallback"}, records)
	assert.Equal(t, 1, primary.Calls())
}

func TestGet_FailureKeepsLastKnownValue(t *testing.T) {
	src := &countingSource{records: []string{"a"}}
	c := newCache(src, 10*time.Millisecond)
	defer c.Close()

	ctx := context.Background()
	_, err := c.Get(ctx, false)
	require.NoError(t, err)

	src.mu.Lock()
	src.err = errors.New("remote down")
	src.mu.Unlock()
	time.Sleep(20 * time.Millisecond)

	records, err := c.Get(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, records, "failed refresh keeps the previous value")
}

func TestInvalidate(t *testing.T) {
	src := &countingSource{records: []string{"a"}}
	c := newCache(src, time.Minute)
	defer c.Close()

	ctx := context.Background()
	_, err := c.Get(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 1, src.Calls())

	c.Invalidate()

	_, err = c.Get(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, src.Calls(), "invalidation forces the next get to fetch")
}

func TestUpdate_InvalidatesWritesAndRefreshesInBackground(t *testing.T) {
	src := &countingSource{records: []string{"a"}}
	c := newCache(src, time.Minute, WithRefreshDelay[string](10*time.Millisecond))
	defer c.Close()

	ctx := context.Background()
	_, err := c.Get(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 1, src.Calls())

	written := false
	err = c.Update(ctx, func(ctx context.Context) error {
		written = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, written)

	// Background refresh fires after the delay
	assert.Eventually(t, func() bool {
		return src.Calls() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestUpdate_WriteErrorPropagates(t *testing.T) {
	src := &countingSource{records: []string{"a"}}
	c := newCache(src, time.Minute)
	defer c.Close()

	err := c.Update(context.Background(), func(ctx context.Context) error {
		return errors.New("write failed")
	})
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	src := &countingSource{records: []string{"a", "b"}}
	c := newCache(src, time.Minute)
	defer c.Close()

	ctx := context.Background()
	_, _ = c.Get(ctx, false)
	_, _ = c.Get(ctx, false)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Fetches)
	assert.Equal(t, 2, stats.Size)
}

func TestRegistry(t *testing.T) {
	src := &countingSource{records: []string{"a"}}
	c := newCache(src, time.Minute)

	r := NewRegistry()
	r.Register(c)

	got, ok := r.Lookup("products")
	require.True(t, ok)
	assert.Equal(t, "products", got.Name())
	assert.Equal(t, []string{"products"}, r.Names())

	r.CloseAll()
	_, ok = r.Lookup("products")
	assert.False(t, ok)
}
