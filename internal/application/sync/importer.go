package sync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chefware/backoffice/internal/domain/channel"
	"github.com/chefware/backoffice/internal/domain/order"
)

// Importer is the shared conversion path behind live admission and bulk
// reconciliation: normalize the payload, resolve the customer, persist the
// canonical order. Only the side effects differ between the two callers.
type Importer struct {
	normalizer *Normalizer
	resolver   *CustomerResolver
	orders     order.Repository
	logger     *zap.Logger
}

// NewImporter wires the conversion path
func NewImporter(normalizer *Normalizer, resolver *CustomerResolver, orders order.Repository, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		normalizer: normalizer,
		resolver:   resolver,
		orders:     orders,
		logger:     logger,
	}
}

// Import converts and persists one raw event. A customer that cannot be
// resolved leaves the order unlinked but still saved; a store write failure is
// the only error path.
func (i *Importer) Import(ctx context.Context, evt channel.RawEvent) (*order.Order, error) {
	o := i.normalizer.Normalize(ctx, evt)

	if _, err := i.resolver.Resolve(ctx, o); err != nil {
		i.logger.Warn("customer resolution failed, saving order unlinked",
			zap.String("order_id", o.ID),
			zap.Error(err))
	}

	if err := i.orders.Save(ctx, o); err != nil {
		return nil, fmt.Errorf("save order %s: %w", o.ID, err)
	}
	return o, nil
}
