package partner

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for customers
type Repository interface {
	// Save creates a new customer
	Save(ctx context.Context, c *Customer) error

	// Update persists changes to an existing customer
	Update(ctx context.Context, c *Customer) error

	// FindByID finds a customer by ID, returning shared.ErrNotFound when absent
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)

	// FindByPhone finds a customer by exact phone or by its digits-only form,
	// returning shared.ErrNotFound when absent
	FindByPhone(ctx context.Context, phone string) (*Customer, error)

	// FindAll returns all customers. Returns an empty slice, never nil.
	FindAll(ctx context.Context) ([]Customer, error)
}
