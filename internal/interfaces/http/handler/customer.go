package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chefware/backoffice/internal/domain/partner"
	"github.com/chefware/backoffice/internal/interfaces/http/dto"
)

// CustomerResponse is the API projection of a customer
type CustomerResponse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Phone        string          `json:"phone"`
	Address      string          `json:"address,omitempty"`
	Number       string          `json:"number,omitempty"`
	Neighborhood string          `json:"neighborhood,omitempty"`
	City         string          `json:"city,omitempty"`
	Source       string          `json:"source"`
	OrderCount   int             `json:"order_count"`
	TotalSpent   decimal.Decimal `json:"total_spent"`
	FirstOrderAt *time.Time      `json:"first_order_at,omitempty"`
	LastOrderAt  *time.Time      `json:"last_order_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func toCustomerResponse(c *partner.Customer) CustomerResponse {
	return CustomerResponse{
		ID:           c.ID.String(),
		Name:         c.Name,
		Phone:        c.Phone,
		Address:      c.Address,
		Number:       c.Number,
		Neighborhood: c.Neighborhood,
		City:         c.City,
		Source:       c.Source,
		OrderCount:   c.OrderCount,
		TotalSpent:   c.TotalSpent,
		FirstOrderAt: c.FirstOrderAt,
		LastOrderAt:  c.LastOrderAt,
		CreatedAt:    c.CreatedAt,
	}
}

// CustomerHandler serves the customer admin endpoints
type CustomerHandler struct {
	BaseHandler
	customers partner.Repository
}

// NewCustomerHandler creates a customer handler
func NewCustomerHandler(customers partner.Repository) *CustomerHandler {
	return &CustomerHandler{customers: customers}
}

// RegisterRoutes registers customer routes
func (h *CustomerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	customers := rg.Group("/customers")
	{
		customers.GET("", h.List)
		customers.GET("/:id", h.Get)
	}
}

// List returns customers with pagination
func (h *CustomerHandler) List(c *gin.Context) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.Error(c, 400, dto.ErrCodeValidation, err.Error())
		return
	}
	req.Normalize()

	all, err := h.customers.FindAll(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	start := (req.Page - 1) * req.PageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + req.PageSize
	if end > len(all) {
		end = len(all)
	}

	page := make([]CustomerResponse, 0, end-start)
	for i := start; i < end; i++ {
		page = append(page, toCustomerResponse(&all[i]))
	}
	h.SuccessWithMeta(c, page, int64(len(all)), req.Page, req.PageSize)
}

// Get returns one customer by identifier
func (h *CustomerHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid customer identifier")
		return
	}

	customer, err := h.customers.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toCustomerResponse(customer))
}
