package partner

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chefware/backoffice/internal/domain/shared"
)

// Customer represents a customer in the partner context. Phone is the primary
// match key for the channel upsert path; NormalizedPhone holds the digits-only
// form so lookups tolerate formatting differences.
type Customer struct {
	shared.BaseEntity
	Name            string `gorm:"type:varchar(200);not null"`
	Phone           string `gorm:"type:varchar(50);index"`
	NormalizedPhone string `gorm:"type:varchar(50);index"`
	Address         string `gorm:"type:varchar(300)"`
	Number          string `gorm:"type:varchar(30)"`
	Neighborhood    string `gorm:"type:varchar(120)"`
	City            string `gorm:"type:varchar(120)"`
	Complement      string `gorm:"type:varchar(200)"`
	Reference       string `gorm:"type:varchar(200)"`

	// Source identifies where this customer record originated, e.g. the
	// delivery channel or manual back-office entry
	Source string `gorm:"type:varchar(50);index"`

	// OrderCount and TotalSpent are maintained by the CRM module; the sync
	// core only preserves them
	OrderCount int             `gorm:"not null;default:0"`
	TotalSpent decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`

	FirstOrderAt *time.Time
	LastOrderAt  *time.Time
}

// TableName returns the table name for GORM
func (Customer) TableName() string {
	return "customers"
}

// NewCustomer creates a new customer with the required fields
func NewCustomer(name, phone, source string) (*Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Customer name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewDomainError("INVALID_NAME", "Customer name cannot exceed 200 characters")
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, shared.NewDomainError("INVALID_PHONE", "Customer phone cannot be empty")
	}

	return &Customer{
		BaseEntity:      shared.NewBaseEntity(),
		Name:            name,
		Phone:           phone,
		NormalizedPhone: NormalizePhone(phone),
		Source:          source,
		TotalSpent:      decimal.Zero,
	}, nil
}

// NormalizePhone strips every non-digit character from a phone number, so
// "(11) 99999-9999" and "11999999999" compare equal
func NormalizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MergeContact fills previously-empty address-family fields from the incoming
// values and overwrites the name when a non-empty one is supplied. Populated
// address fields are never overwritten.
func (c *Customer) MergeContact(name, address, number, neighborhood, city, complement, reference string) {
	if name = strings.TrimSpace(name); name != "" {
		c.Name = name
	}
	if c.Address == "" {
		c.Address = address
	}
	if c.Number == "" {
		c.Number = number
	}
	if c.Neighborhood == "" {
		c.Neighborhood = neighborhood
	}
	if c.City == "" {
		c.City = city
	}
	if c.Complement == "" {
		c.Complement = complement
	}
	if c.Reference == "" {
		c.Reference = reference
	}
	c.Touch()
}

// RecordOrder refreshes the order timestamps around a newly linked order
func (c *Customer) RecordOrder(placedAt time.Time) {
	if c.FirstOrderAt == nil {
		t := placedAt
		c.FirstOrderAt = &t
	}
	t := placedAt
	c.LastOrderAt = &t
	c.Touch()
}
