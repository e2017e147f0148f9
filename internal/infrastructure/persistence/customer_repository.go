package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chefware/backoffice/internal/domain/partner"
	"github.com/chefware/backoffice/internal/domain/shared"
)

// GormCustomerRepository implements partner.Repository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// Save creates a new customer
func (r *GormCustomerRepository) Save(ctx context.Context, c *partner.Customer) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// Update persists changes to an existing customer
func (r *GormCustomerRepository) Update(ctx context.Context, c *partner.Customer) error {
	return r.db.WithContext(ctx).Save(c).Error
}

// FindByID finds a customer by ID
func (r *GormCustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*partner.Customer, error) {
	var c partner.Customer
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// FindByPhone finds a customer by exact phone or by its digits-only form
func (r *GormCustomerRepository) FindByPhone(ctx context.Context, phone string) (*partner.Customer, error) {
	if phone == "" {
		return nil, shared.NewDomainError("INVALID_PHONE", "Phone cannot be empty")
	}

	var c partner.Customer
	err := r.db.WithContext(ctx).
		Where("phone = ? OR normalized_phone = ?", phone, partner.NormalizePhone(phone)).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// FindAll returns all customers
func (r *GormCustomerRepository) FindAll(ctx context.Context) ([]partner.Customer, error) {
	customers := make([]partner.Customer, 0)
	if err := r.db.WithContext(ctx).Order("name").Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

// Ensure GormCustomerRepository implements partner.Repository
var _ partner.Repository = (*GormCustomerRepository)(nil)
