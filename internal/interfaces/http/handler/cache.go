package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/chefware/backoffice/internal/infrastructure/cache"
)

// CacheHandler serves the cache admin endpoints
type CacheHandler struct {
	BaseHandler
	registry *cache.Registry
}

// NewCacheHandler creates a cache admin handler
func NewCacheHandler(registry *cache.Registry) *CacheHandler {
	return &CacheHandler{registry: registry}
}

// RegisterRoutes registers cache admin routes
func (h *CacheHandler) RegisterRoutes(rg *gin.RouterGroup) {
	caches := rg.Group("/caches")
	{
		caches.GET("", h.Stats)
		caches.POST("/:name/invalidate", h.Invalidate)
	}
}

// Stats reports hit/miss/fetch counters per registered store
func (h *CacheHandler) Stats(c *gin.Context) {
	h.Success(c, h.registry.StatsByName())
}

// Invalidate clears one store's cached value, forcing a refetch on next read
func (h *CacheHandler) Invalidate(c *gin.Context) {
	name := c.Param("name")
	store, ok := h.registry.Lookup(name)
	if !ok {
		h.NotFound(c, "Unknown cache store: "+name)
		return
	}
	store.Invalidate()
	h.NoContent(c)
}
