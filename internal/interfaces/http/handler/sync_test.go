package handler

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appsync "github.com/chefware/backoffice/internal/application/sync"
	"github.com/chefware/backoffice/internal/infrastructure/cache"
	"github.com/chefware/backoffice/internal/infrastructure/channel"
	"github.com/chefware/backoffice/internal/interfaces/http/dto"
)

func newSyncFixture(t *testing.T) (*gin.Engine, *channel.MemorySource, *appsync.Pipeline) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	orders, customers := newTestRepos(t)
	source := channel.NewMemorySource()
	processed := appsync.NewProcessedSet()
	notifier := appsync.NewLogNotifier(zap.NewNop())

	normalizer := appsync.NewNormalizer(nil)
	resolver := appsync.NewCustomerResolver(customers, nil)
	importer := appsync.NewImporter(normalizer, resolver, orders, nil)
	reconciler := appsync.NewReconciler(source, importer, orders, processed, time.Minute, nil)
	pipeline := appsync.NewPipeline(source, importer, orders, processed, reconciler, notifier)
	t.Cleanup(pipeline.Stop)

	engine := gin.New()
	NewSyncHandler(pipeline, reconciler, notifier).RegisterRoutes(engine.Group("/api/v1"))
	return engine, source, pipeline
}

func TestSyncHandler(t *testing.T) {
	t.Run("status reports idle state before start", func(t *testing.T) {
		engine, _, _ := newSyncFixture(t)

		rec, resp := doJSON(t, engine, http.MethodGet, "/api/v1/sync/status", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		data := resp.Data.(map[string]any)
		assert.Equal(t, "idle", data["state"])
		assert.Equal(t, false, data["reconciled"])
		assert.Equal(t, float64(0), data["processed"])
	})

	t.Run("manual reconcile imports the snapshot", func(t *testing.T) {
		engine, source, _ := newSyncFixture(t)
		payload := fmt.Sprintf(`{"customer": {"name": "Maria", "phone": "1"},
			"items": [{"name": "a", "price": 10}], "createdAt": %q}`,
			time.Now().UTC().Format(time.RFC3339))
		source.Seed("order-1", []byte(payload))

		rec, resp := doJSON(t, engine, http.MethodPost, "/api/v1/sync/reconcile", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		data := resp.Data.(map[string]any)
		assert.Equal(t, float64(1), data["imported"])
		assert.Equal(t, float64(0), data["skipped"])

		_, resp = doJSON(t, engine, http.MethodGet, "/api/v1/sync/status", nil)
		assert.Equal(t, true, resp.Data.(map[string]any)["reconciled"])
	})

	t.Run("status reflects a running pipeline", func(t *testing.T) {
		engine, _, pipeline := newSyncFixture(t)
		require.NoError(t, pipeline.Start(context.Background()))

		_, resp := doJSON(t, engine, http.MethodGet, "/api/v1/sync/status", nil)
		assert.Equal(t, "listening", resp.Data.(map[string]any)["state"])
	})

	t.Run("unread reset returns no content", func(t *testing.T) {
		engine, _, _ := newSyncFixture(t)
		req, _ := http.NewRequest(http.MethodPost, "/api/v1/sync/unread/reset", nil)
		rec := doRaw(t, engine, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestCacheHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	registry := cache.NewRegistry()
	store := cache.NewReadThrough[string]("products", time.Minute,
		[]cache.Source[string]{cache.NewSourceFunc("static", func(context.Context) ([]string, error) {
			return []string{"a"}, nil
		})})
	t.Cleanup(store.Close)
	registry.Register(store)

	engine := gin.New()
	NewCacheHandler(registry).RegisterRoutes(engine.Group("/api/v1"))

	t.Run("stats lists registered stores", func(t *testing.T) {
		rec, resp := doJSON(t, engine, http.MethodGet, "/api/v1/caches", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, resp.Data.(map[string]any), "products")
	})

	t.Run("invalidate clears a known store", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/api/v1/caches/products/invalidate", nil)
		rec := doRaw(t, engine, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("unknown store returns not found", func(t *testing.T) {
		rec, resp := doJSON(t, engine, http.MethodPost, "/api/v1/caches/nope/invalidate", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
	})
}
