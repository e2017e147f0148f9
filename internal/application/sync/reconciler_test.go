package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chefware/backoffice/internal/domain/order"
	"github.com/chefware/backoffice/internal/infrastructure/channel"
)

type reconcilerFixture struct {
	reconciler *Reconciler
	source     *channel.MemorySource
	orders     *memOrderRepo
	processed  *ProcessedSet
	clock      *testClock
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()

	source := channel.NewMemorySource()
	orders := newMemOrderRepo()
	processed := NewProcessedSet()
	clock := newTestClock(time.Date(2026, 3, 7, 20, 0, 0, 0, time.UTC))

	normalizer := NewNormalizer(&staticCatalog{}, WithNormalizerClock(clock.Now))
	resolver := NewCustomerResolver(newMemCustomerRepo(), nil)
	importer := NewImporter(normalizer, resolver, orders, nil)
	r := NewReconciler(source, importer, orders, processed, 30*time.Second, nil)
	r.now = clock.Now

	return &reconcilerFixture{
		reconciler: r,
		source:     source,
		orders:     orders,
		processed:  processed,
		clock:      clock,
	}
}

func TestReconcileOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("imports missing and skips existing", func(t *testing.T) {
		f := newReconcilerFixture(t)
		f.source.Seed("order-1", payloadAt("a", f.clock.Now()))
		f.source.Seed("order-2", payloadAt("b", f.clock.Now()))
		require.NoError(t, f.orders.Save(ctx, order.New("order-2", f.clock.Now())))

		result, err := f.reconciler.ReconcileOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Imported)
		assert.Equal(t, 1, result.Skipped)

		ok, _ := f.orders.Exists(ctx, "order-1")
		assert.True(t, ok)
		assert.True(t, f.processed.Seen("order-1"), "imported ids are marked")
		assert.True(t, f.processed.Seen("order-2"), "already-present ids are marked too")
		assert.True(t, f.reconciler.Done())
	})

	t.Run("runs at most once per process lifetime", func(t *testing.T) {
		f := newReconcilerFixture(t)
		f.source.Seed("order-1", payloadAt("a", f.clock.Now()))

		first, err := f.reconciler.ReconcileOnce(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, first.Imported)

		// New remote item after the pass is not picked up by a repeat call
		f.source.Seed("order-2", payloadAt("b", f.clock.Now()))
		f.clock.Advance(time.Hour)

		second, err := f.reconciler.ReconcileOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, second, "repeat call returns the cached result")
		ok, _ := f.orders.Exists(ctx, "order-2")
		assert.False(t, ok)
	})

	t.Run("snapshot failure defers and retries after cooldown", func(t *testing.T) {
		f := newReconcilerFixture(t)
		f.source.Seed("order-1", payloadAt("a", f.clock.Now()))
		f.source.SnapshotErr = errors.New("connection refused")

		result, err := f.reconciler.ReconcileOnce(ctx)
		require.NoError(t, err, "remote failure is not surfaced")
		assert.Zero(t, result.Imported)
		assert.False(t, f.reconciler.Done())

		// Within the cooldown the retry is a no-op even though the source
		// recovered
		f.source.SnapshotErr = nil
		f.clock.Advance(10 * time.Second)
		result, err = f.reconciler.ReconcileOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, result.Imported)

		f.clock.Advance(30 * time.Second)
		result, err = f.reconciler.ReconcileOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Imported)
		assert.True(t, f.reconciler.Done())
	})

	t.Run("import failure skips the item and completes", func(t *testing.T) {
		f := newReconcilerFixture(t)
		f.source.Seed("order-1", payloadAt("a", f.clock.Now()))
		f.orders.saveErr = errors.New("disk full")

		result, err := f.reconciler.ReconcileOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Imported)
		assert.Equal(t, 1, result.Skipped)
		assert.True(t, f.reconciler.Done())
	})
}
