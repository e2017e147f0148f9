package order

import (
	"context"
	"time"
)

// Filter defines filter criteria for order listings
type Filter struct {
	// Status filters by order status (optional)
	Status *Status
	// Date filters by the derived calendar date, "2006-01-02" (optional)
	Date string
	// From filters orders placed at or after this time
	From *time.Time
	// To filters orders placed before this time
	To *time.Time
	// Limit caps the number of returned orders (0 = no limit)
	Limit int
	// Offset skips the first N orders
	Offset int
}

// Repository defines the persistence interface for canonical orders
type Repository interface {
	// Save creates a new order
	Save(ctx context.Context, o *Order) error

	// Update persists changes to an existing order
	Update(ctx context.Context, o *Order) error

	// FindByID finds an order by its identifier, returning shared.ErrNotFound
	// when absent
	FindByID(ctx context.Context, id string) (*Order, error)

	// Exists reports whether an order with the given identifier is present
	Exists(ctx context.Context, id string) (bool, error)

	// FindAll finds all orders matching the filter, newest first. Returns an
	// empty slice, never nil.
	FindAll(ctx context.Context, filter Filter) ([]Order, error)

	// ListIDs returns the identifiers of every stored order
	ListIDs(ctx context.Context) ([]string, error)

	// Remove deletes an order by identifier
	Remove(ctx context.Context, id string) error
}
