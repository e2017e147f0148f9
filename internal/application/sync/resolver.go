package sync

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/chefware/backoffice/internal/domain/order"
	"github.com/chefware/backoffice/internal/domain/partner"
	"github.com/chefware/backoffice/internal/domain/shared"
)

// CustomerResolver finds or creates the customer matching an order's contact
// block and links the resulting identifier back onto the order. Matching is by
// phone, tolerating formatting differences.
type CustomerResolver struct {
	customers partner.Repository
	logger    *zap.Logger
}

// NewCustomerResolver creates a resolver over the customer repository
func NewCustomerResolver(customers partner.Repository, logger *zap.Logger) *CustomerResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerResolver{customers: customers, logger: logger}
}

// Resolve upserts the customer for the order's contact info and returns the
// customer identifier. An order without both a name and a phone is left
// unlinked; the empty identifier and nil error signal that.
func (r *CustomerResolver) Resolve(ctx context.Context, o *order.Order) (string, error) {
	contact := o.Customer
	if contact.Name == "" || contact.Phone == "" {
		return "", nil
	}

	existing, err := r.findByPhone(ctx, contact.Phone)
	switch {
	case err == nil:
		existing.MergeContact(contact.Name, contact.Address, contact.Number,
			contact.Neighborhood, contact.City, contact.Complement, contact.Reference)
		existing.RecordOrder(o.PlacedAt)
		if err := r.customers.Update(ctx, existing); err != nil {
			return "", err
		}
		r.link(o, existing.ID.String())
		return existing.ID.String(), nil

	case errors.Is(err, shared.ErrNotFound):
		created, err := partner.NewCustomer(contact.Name, contact.Phone, SourceChannel)
		if err != nil {
			return "", err
		}
		created.Address = contact.Address
		created.Number = contact.Number
		created.Neighborhood = contact.Neighborhood
		created.City = contact.City
		created.Complement = contact.Complement
		created.Reference = contact.Reference
		created.RecordOrder(o.PlacedAt)
		if err := r.customers.Save(ctx, created); err != nil {
			return "", err
		}
		r.logger.Info("created customer from channel order",
			zap.String("customer_id", created.ID.String()),
			zap.String("order_id", o.ID))
		r.link(o, created.ID.String())
		return created.ID.String(), nil

	default:
		return "", err
	}
}

// findByPhone tries the phone as supplied, then its digits-only form
func (r *CustomerResolver) findByPhone(ctx context.Context, phone string) (*partner.Customer, error) {
	c, err := r.customers.FindByPhone(ctx, phone)
	if err == nil || !errors.Is(err, shared.ErrNotFound) {
		return c, err
	}
	if digits := partner.NormalizePhone(phone); digits != "" && digits != phone {
		return r.customers.FindByPhone(ctx, digits)
	}
	return nil, err
}

func (r *CustomerResolver) link(o *order.Order, customerID string) {
	o.Customer.ID = customerID
	o.CustomerID = customerID
}
