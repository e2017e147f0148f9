package catalog

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/chefware/backoffice/internal/domain/shared"
)

// Product is a catalog entry used for price lookups during normalization
type Product struct {
	shared.BaseEntity
	ExternalID string          `gorm:"type:varchar(100);index"`
	Name       string          `gorm:"type:varchar(200);not null;index"`
	Price      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Category   string          `gorm:"type:varchar(120);index"`
	Active     bool            `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (Product) TableName() string {
	return "products"
}

// Repository defines the persistence interface for catalog products
type Repository interface {
	// Save creates a new product
	Save(ctx context.Context, p *Product) error

	// Update persists changes to an existing product
	Update(ctx context.Context, p *Product) error

	// FindAll returns all products. Returns an empty slice, never nil.
	FindAll(ctx context.Context) ([]Product, error)
}
