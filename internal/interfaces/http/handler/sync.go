package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/chefware/backoffice/internal/application/sync"
)

// SyncStatusResponse reports the synchronization core's state
type SyncStatusResponse struct {
	State         string               `json:"state"`
	Admitted      int                  `json:"admitted"`
	Dropped       int                  `json:"dropped"`
	Processed     int                  `json:"processed"`
	Reconciled    bool                 `json:"reconciled"`
	LastReconcile sync.ReconcileResult `json:"last_reconcile"`
	UnreadOrders  int64                `json:"unread_orders"`
}

// SyncHandler serves the synchronization control endpoints
type SyncHandler struct {
	BaseHandler
	pipeline   *sync.Pipeline
	reconciler *sync.Reconciler
	notifier   *sync.LogNotifier
}

// NewSyncHandler creates a sync control handler
func NewSyncHandler(pipeline *sync.Pipeline, reconciler *sync.Reconciler, notifier *sync.LogNotifier) *SyncHandler {
	return &SyncHandler{pipeline: pipeline, reconciler: reconciler, notifier: notifier}
}

// RegisterRoutes registers sync control routes
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/sync")
	{
		group.GET("/status", h.Status)
		group.POST("/reconcile", h.Reconcile)
		group.POST("/unread/reset", h.ResetUnread)
	}
}

// Status reports pipeline state and counters
func (h *SyncHandler) Status(c *gin.Context) {
	state, admitted, dropped, processed := h.pipeline.Stats()
	h.Success(c, SyncStatusResponse{
		State:         string(state),
		Admitted:      admitted,
		Dropped:       dropped,
		Processed:     processed,
		Reconciled:    h.reconciler.Done(),
		LastReconcile: h.reconciler.LastResult(),
		UnreadOrders:  h.notifier.Unread(),
	})
}

// Reconcile triggers the startup catch-up pass manually. Once a pass has
// completed this returns its cached result.
func (h *SyncHandler) Reconcile(c *gin.Context) {
	result, err := h.reconciler.ReconcileOnce(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ResetUnread clears the unread-order indicator
func (h *SyncHandler) ResetUnread(c *gin.Context) {
	h.notifier.ResetUnread()
	h.NoContent(c)
}
