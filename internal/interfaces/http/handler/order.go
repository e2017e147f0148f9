package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chefware/backoffice/internal/application/sync"
	"github.com/chefware/backoffice/internal/domain/order"
	"github.com/chefware/backoffice/internal/interfaces/http/dto"
)

// StatusPusher propagates a local status change to the remote channel
type StatusPusher interface {
	PushStatusUpdate(ctx context.Context, orderID string, fields map[string]any) error
}

// OrderHandler serves the order admin endpoints
type OrderHandler struct {
	BaseHandler
	orders order.Repository
	pusher StatusPusher
	logger *zap.Logger
}

// NewOrderHandler creates an order handler. pusher may be nil when the sync
// pipeline is disabled; status changes then stay local.
func NewOrderHandler(orders order.Repository, pusher StatusPusher, logger *zap.Logger) *OrderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderHandler{orders: orders, pusher: pusher, logger: logger}
}

// RegisterRoutes registers order routes
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	orders := rg.Group("/orders")
	{
		orders.GET("", h.List)
		orders.GET("/:id", h.Get)
		orders.PUT("/:id/status", h.UpdateStatus)
	}
}

// List returns orders matching the filters, newest first
func (h *OrderHandler) List(c *gin.Context) {
	var req ListOrdersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.Error(c, 400, dto.ErrCodeValidation, err.Error())
		return
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	filter := order.Filter{
		Date:   req.Date,
		Limit:  req.PageSize,
		Offset: (req.Page - 1) * req.PageSize,
	}
	if req.Status != "" {
		status := order.Status(req.Status)
		filter.Status = &status
	}

	orders, err := h.orders.FindAll(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	summaries := make([]OrderSummaryResponse, 0, len(orders))
	for i := range orders {
		summaries = append(summaries, toOrderSummary(&orders[i]))
	}
	h.Success(c, summaries)
}

// Get returns one order by identifier
func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.orders.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toOrderResponse(o))
}

// UpdateStatus applies a status transition locally and pushes it upstream.
// The push is best-effort; a remote failure does not roll the local change
// back.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, 400, dto.ErrCodeValidation, err.Error())
		return
	}

	ctx := c.Request.Context()
	o, err := h.orders.FindByID(ctx, c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if err := o.TransitionTo(order.Status(req.Status)); err != nil {
		h.HandleError(c, err)
		return
	}
	if err := h.orders.Update(ctx, o); err != nil {
		h.HandleError(c, err)
		return
	}

	if h.pusher != nil && o.Source == sync.SourceChannel {
		if err := h.pusher.PushStatusUpdate(ctx, o.ID, map[string]any{"status": req.Status}); err != nil {
			h.logger.Warn("status push to channel failed",
				zap.String("order_id", o.ID),
				zap.Error(err))
		}
	}

	h.Success(c, toOrderResponse(o))
}
