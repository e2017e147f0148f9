package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/chefware/backoffice/internal/domain/order"
)

// ListOrdersRequest holds the order listing filters
type ListOrdersRequest struct {
	Status   string `form:"status" binding:"omitempty,oneof=pending confirmed preparing out_for_delivery delivered cancelled"`
	Date     string `form:"date" binding:"omitempty,datetime=2006-01-02"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// UpdateOrderStatusRequest is the body of a status change
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending confirmed preparing out_for_delivery delivered cancelled"`
}

// OrderSummaryResponse is the list-view projection of an order
type OrderSummaryResponse struct {
	ID            string          `json:"id"`
	PlacedAt      time.Time       `json:"placed_at"`
	Date          string          `json:"date"`
	CustomerName  string          `json:"customer_name"`
	ItemCount     int             `json:"item_count"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	DeliveryType  string          `json:"delivery_type"`
	Status        string          `json:"status"`
	Source        string          `json:"source"`
}

// OrderResponse is the detail projection of an order
type OrderResponse struct {
	ID            string          `json:"id"`
	PlacedAt      time.Time       `json:"placed_at"`
	Date          string          `json:"date"`
	Customer      order.Contact   `json:"customer"`
	CustomerID    string          `json:"customer_id,omitempty"`
	Lines         []order.Line    `json:"lines"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DeliveryFee   decimal.Decimal `json:"delivery_fee"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	DeliveryType  string          `json:"delivery_type"`
	Status        string          `json:"status"`
	Source        string          `json:"source"`
	Fiscal        order.Fiscal    `json:"fiscal"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func toOrderSummary(o *order.Order) OrderSummaryResponse {
	return OrderSummaryResponse{
		ID:            o.ID,
		PlacedAt:      o.PlacedAt,
		Date:          o.Date,
		CustomerName:  o.Customer.Name,
		ItemCount:     o.ItemCount(),
		Total:         o.Total,
		PaymentMethod: o.PaymentMethod,
		DeliveryType:  o.DeliveryType,
		Status:        string(o.Status),
		Source:        o.Source,
	}
}

func toOrderResponse(o *order.Order) OrderResponse {
	return OrderResponse{
		ID:            o.ID,
		PlacedAt:      o.PlacedAt,
		Date:          o.Date,
		Customer:      o.Customer,
		CustomerID:    o.CustomerID,
		Lines:         o.Lines,
		Subtotal:      o.Subtotal,
		DeliveryFee:   o.DeliveryFee,
		Discount:      o.Discount,
		Total:         o.Total,
		PaymentMethod: o.PaymentMethod,
		DeliveryType:  o.DeliveryType,
		Status:        string(o.Status),
		Source:        o.Source,
		Fiscal:        o.Fiscal,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}
