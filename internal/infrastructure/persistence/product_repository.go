package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/chefware/backoffice/internal/domain/catalog"
)

// GormProductRepository implements catalog.Repository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// Save creates a new product
func (r *GormProductRepository) Save(ctx context.Context, p *catalog.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// Update persists changes to an existing product
func (r *GormProductRepository) Update(ctx context.Context, p *catalog.Product) error {
	return r.db.WithContext(ctx).Save(p).Error
}

// FindAll returns all products
func (r *GormProductRepository) FindAll(ctx context.Context) ([]catalog.Product, error) {
	products := make([]catalog.Product, 0)
	if err := r.db.WithContext(ctx).Order("name").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// Ensure GormProductRepository implements catalog.Repository
var _ catalog.Repository = (*GormProductRepository)(nil)
