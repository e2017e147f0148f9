package sync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chefware/backoffice/internal/domain/channel"
	"github.com/chefware/backoffice/internal/domain/order"
)

// ReconcileResult summarizes one reconciliation pass
type ReconcileResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Reconciler performs the one-shot startup catch-up: fetch the full remote
// snapshot, import whatever the local store is missing, and mark every seen
// identifier as processed so the live listener does not reprocess it. Imports
// through this path never fire notification side effects.
type Reconciler struct {
	source    channel.EventSource
	importer  *Importer
	orders    order.Repository
	processed *ProcessedSet
	cooldown  time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	done    bool
	lastRun time.Time
	result  ReconcileResult
}

// NewReconciler creates a reconciler. The cooldown blocks repeat runs from
// overlapping initialization paths.
func NewReconciler(source channel.EventSource, importer *Importer, orders order.Repository,
	processed *ProcessedSet, cooldown time.Duration, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		source:    source,
		importer:  importer,
		orders:    orders,
		processed: processed,
		cooldown:  cooldown,
		logger:    logger,
		now:       time.Now,
	}
}

// ReconcileOnce runs the catch-up pass at most once per process lifetime.
// Calls after a completed run, or within the cooldown of a previous attempt,
// return the last result without touching the remote source. Snapshot
// failures leave the reconciler retryable after the cooldown.
func (r *Reconciler) ReconcileOnce(ctx context.Context) (ReconcileResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return r.result, nil
	}
	if !r.lastRun.IsZero() && r.now().Sub(r.lastRun) < r.cooldown {
		r.logger.Info("reconciliation within cooldown, skipping")
		return r.result, nil
	}
	r.lastRun = r.now()

	snapshot, err := r.source.Snapshot(ctx)
	if err != nil {
		r.logger.Warn("snapshot fetch failed, reconciliation deferred", zap.Error(err))
		return r.result, nil
	}

	known, err := r.orders.ListIDs(ctx)
	if err != nil {
		r.logger.Warn("listing local orders failed, reconciliation deferred", zap.Error(err))
		return r.result, nil
	}
	local := make(map[string]struct{}, len(known))
	for _, id := range known {
		local[id] = struct{}{}
	}

	var result ReconcileResult
	for key, payload := range snapshot {
		r.processed.Mark(key)

		if _, exists := local[key]; exists {
			result.Skipped++
			continue
		}

		evt := channel.RawEvent{Key: key, Kind: channel.EventAdded, Payload: payload}
		if _, err := r.importer.Import(ctx, evt); err != nil {
			r.logger.Warn("reconciliation import failed, skipping item",
				zap.String("key", key),
				zap.Error(err))
			result.Skipped++
			continue
		}
		result.Imported++
	}

	r.done = true
	r.result = result
	r.logger.Info("reconciliation complete",
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// Done reports whether a reconciliation pass has completed
func (r *Reconciler) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// LastResult returns the result of the completed pass, or zero values if none
// has completed yet
func (r *Reconciler) LastResult() ReconcileResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}
