package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/chefware/backoffice/internal/domain/shared"
)

// Status represents the lifecycle status of an order
type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// IsValid returns true if the status is a known value
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing,
		StatusOutForDelivery, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if no further transitions are allowed from this status
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// allowedTransitions maps each status to the statuses reachable from it.
// Cancellation is allowed from every non-terminal status.
var allowedTransitions = map[Status][]Status{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusOutForDelivery, StatusDelivered, StatusCancelled},
	StatusOutForDelivery: {StatusDelivered, StatusCancelled},
}

// CanTransition returns true if the status can move to the target status
func (s Status) CanTransition(to Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// FiscalStatusPending is the initial fiscal state for every order created by the
// sync core. All further fiscal transitions belong to the fiscal subsystem.
const FiscalStatusPending = "pending"

// Fiscal holds the fiscal document sub-record. The sync core only initializes
// it; issuance and state changes are owned by the fiscal collaborator.
type Fiscal struct {
	Status         string     `gorm:"type:varchar(30)" json:"status"`
	DocumentNumber string     `gorm:"type:varchar(60)" json:"documentNumber,omitempty"`
	AccessKey      string     `gorm:"type:varchar(60)" json:"accessKey,omitempty"`
	IssuedAt       *time.Time `json:"issuedAt,omitempty"`
}

// CustomizationItem is a single selected extra within a customization group
type CustomizationItem struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Line is a single item line on an order. Customizations is always a mapping
// from group name to selected items, regardless of the shape the source
// payload used.
type Line struct {
	Name           string                         `json:"name"`
	Quantity       int                            `json:"quantity"`
	UnitPrice      decimal.Decimal                `json:"unitPrice"`
	Customizations map[string][]CustomizationItem `json:"customizations"`
	Notes          string                         `json:"notes,omitempty"`
}

// CustomizationTotal returns the per-unit price of all selected customizations
func (l *Line) CustomizationTotal() decimal.Decimal {
	total := decimal.Zero
	for _, items := range l.Customizations {
		for _, item := range items {
			total = total.Add(item.Price)
		}
	}
	return total
}

// Total returns the line total: (unit price + customizations) x quantity
func (l *Line) Total() decimal.Decimal {
	qty := decimal.NewFromInt(int64(l.Quantity))
	return l.UnitPrice.Add(l.CustomizationTotal()).Mul(qty)
}

// Contact is the customer sub-record embedded in an order. ID links to the
// resolved partner.Customer once the upsert resolver has run.
type Contact struct {
	ID           string `gorm:"type:varchar(60);index" json:"id,omitempty"`
	Name         string `gorm:"type:varchar(200)" json:"name"`
	Phone        string `gorm:"type:varchar(50)" json:"phone"`
	Address      string `gorm:"type:varchar(300)" json:"address,omitempty"`
	Number       string `gorm:"type:varchar(30)" json:"number,omitempty"`
	Neighborhood string `gorm:"type:varchar(120)" json:"neighborhood,omitempty"`
	City         string `gorm:"type:varchar(120)" json:"city,omitempty"`
	Complement   string `gorm:"type:varchar(200)" json:"complement,omitempty"`
	Reference    string `gorm:"type:varchar(200)" json:"reference,omitempty"`
}

// Order is the canonical order representation all downstream code consumes.
// Calendar fields are derived from PlacedAt through SetPlacedAt and are never
// mutated independently.
type Order struct {
	ID       string    `gorm:"type:varchar(100);primaryKey" json:"id"`
	PlacedAt time.Time `gorm:"index" json:"placedAt"`

	// Calendar fields derived from PlacedAt
	Date       string `gorm:"type:varchar(10);index" json:"date"`
	Year       int    `json:"year"`
	Month      int    `json:"month"`
	Day        int    `json:"day"`
	Hour       int    `json:"hour"`
	Minute     int    `json:"minute"`
	Weekday    int    `json:"weekday"`
	WeekNumber int    `json:"weekNumber"`

	Lines    []Line  `gorm:"serializer:json" json:"lines"`
	Customer Contact `gorm:"embedded;embeddedPrefix:customer_" json:"customer"`

	// CustomerID is the top-level reference to the resolved customer record
	CustomerID string `gorm:"type:varchar(60);index" json:"customerId,omitempty"`

	Subtotal    decimal.Decimal `gorm:"type:decimal(18,4)" json:"subtotal"`
	DeliveryFee decimal.Decimal `gorm:"type:decimal(18,4)" json:"deliveryFee"`
	Discount    decimal.Decimal `gorm:"type:decimal(18,4)" json:"discount"`
	Total       decimal.Decimal `gorm:"type:decimal(18,4)" json:"total"`

	PaymentMethod string `gorm:"type:varchar(50)" json:"paymentMethod"`
	DeliveryType  string `gorm:"type:varchar(30)" json:"deliveryType"`
	Status        Status `gorm:"type:varchar(30);index" json:"status"`

	// Source identifies the channel the order arrived through
	Source string `gorm:"type:varchar(50);index" json:"source"`

	Fiscal Fiscal `gorm:"embedded;embeddedPrefix:fiscal_" json:"fiscal"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the table name for GORM
func (Order) TableName() string {
	return "orders"
}

// New creates an order with the given identifier, initial status pending and
// an inert fiscal sub-record
func New(id string, placedAt time.Time) *Order {
	now := time.Now()
	o := &Order{
		ID:          id,
		Status:      StatusPending,
		Subtotal:    decimal.Zero,
		DeliveryFee: decimal.Zero,
		Discount:    decimal.Zero,
		Total:       decimal.Zero,
		Fiscal:      Fiscal{Status: FiscalStatusPending},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	o.SetPlacedAt(placedAt)
	return o
}

// SetPlacedAt sets the creation instant and recomputes every derived calendar
// field from it
func (o *Order) SetPlacedAt(t time.Time) {
	o.PlacedAt = t
	o.Date = t.Format("2006-01-02")
	o.Year = t.Year()
	o.Month = int(t.Month())
	o.Day = t.Day()
	o.Hour = t.Hour()
	o.Minute = t.Minute()
	o.Weekday = int(t.Weekday())
	_, o.WeekNumber = t.ISOWeek()
}

// RecalculateTotals derives Subtotal and Total from the order lines. Total
// never goes below zero even when the discount exceeds the line total.
func (o *Order) RecalculateTotals() {
	subtotal := decimal.Zero
	for i := range o.Lines {
		subtotal = subtotal.Add(o.Lines[i].Total())
	}
	o.Subtotal = subtotal

	total := subtotal.Add(o.DeliveryFee).Sub(o.Discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	o.Total = total
}

// ItemCount returns the total quantity across all lines
func (o *Order) ItemCount() int {
	count := 0
	for i := range o.Lines {
		count += o.Lines[i].Quantity
	}
	return count
}

// TransitionTo moves the order to the target status, enforcing the allowed
// transition graph
func (o *Order) TransitionTo(target Status) error {
	if !target.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", "Unknown order status: "+string(target))
	}
	if !o.Status.CanTransition(target) {
		return shared.NewDomainError("INVALID_TRANSITION",
			"Cannot transition order from "+string(o.Status)+" to "+string(target))
	}
	o.Status = target
	o.UpdatedAt = time.Now()
	return nil
}

// Confirm moves the order from pending to confirmed
func (o *Order) Confirm() error {
	return o.TransitionTo(StatusConfirmed)
}

// Cancel cancels the order from any non-terminal status
func (o *Order) Cancel() error {
	return o.TransitionTo(StatusCancelled)
}
