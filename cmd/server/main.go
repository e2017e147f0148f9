package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appsync "github.com/chefware/backoffice/internal/application/sync"
	"github.com/chefware/backoffice/internal/domain/catalog"
	domainchannel "github.com/chefware/backoffice/internal/domain/channel"
	"github.com/chefware/backoffice/internal/domain/order"
	"github.com/chefware/backoffice/internal/infrastructure/cache"
	"github.com/chefware/backoffice/internal/infrastructure/channel"
	"github.com/chefware/backoffice/internal/infrastructure/config"
	"github.com/chefware/backoffice/internal/infrastructure/logger"
	"github.com/chefware/backoffice/internal/infrastructure/persistence"
	"github.com/chefware/backoffice/internal/interfaces/http/handler"
	"github.com/chefware/backoffice/internal/interfaces/http/middleware"
	"github.com/chefware/backoffice/internal/interfaces/http/router"
)

// cacheCatalog adapts the products read-through store to the normalizer's
// catalog port
type cacheCatalog struct {
	store *cache.ReadThrough[catalog.Product]
}

func (c *cacheCatalog) Products(ctx context.Context) ([]catalog.Product, error) {
	return c.store.Get(ctx, false)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting back office",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env))

	db, err := persistence.NewDatabase(&cfg.Database, log, logger.MapGormLogLevel(cfg.Log.Level))
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	orderRepo := persistence.NewGormOrderRepository(db.DB)
	customerRepo := persistence.NewGormCustomerRepository(db.DB)
	productRepo := persistence.NewGormProductRepository(db.DB)

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Warn("redis unreachable, caches fall through to the local store", zap.Error(err))
		}
	}

	registry := cache.NewRegistry()

	// Products change rarely; the shared redis tier (when enabled) is tried
	// before the local store
	productSources := make([]cache.Source[catalog.Product], 0, 2)
	if redisClient != nil {
		productSources = append(productSources, cache.NewRedisSource[catalog.Product](redisClient, "cache:products"))
	}
	productSources = append(productSources, cache.NewSourceFunc("local-store",
		func(ctx context.Context) ([]catalog.Product, error) {
			return productRepo.FindAll(ctx)
		}))
	productsCache := cache.NewReadThrough("products", cfg.Cache.StaticTTL, productSources,
		cache.WithLogger[catalog.Product](log),
		cache.WithThrottle[catalog.Product](cfg.Cache.ThrottleWindow),
		cache.WithRefreshDelay[catalog.Product](cfg.Cache.RefreshDelay))
	registry.Register(productsCache)

	// The live order list is volatile; unrelated read paths share this store
	// instead of hitting the database each time
	ordersCache := cache.NewReadThrough("orders", cfg.Cache.VolatileTTL,
		[]cache.Source[order.Order]{cache.NewSourceFunc("local-store",
			func(ctx context.Context) ([]order.Order, error) {
				return orderRepo.FindAll(ctx, order.Filter{})
			})},
		cache.WithLogger[order.Order](log),
		cache.WithThrottle[order.Order](cfg.Cache.ThrottleWindow),
		cache.WithRefreshDelay[order.Order](cfg.Cache.RefreshDelay))
	registry.Register(ordersCache)

	// Synchronization core
	notifier := appsync.NewLogNotifier(log)
	processed := appsync.NewProcessedSet()
	normalizer := appsync.NewNormalizer(&cacheCatalog{store: productsCache},
		appsync.WithNormalizerLogger(log))
	resolver := appsync.NewCustomerResolver(customerRepo, log)
	importer := appsync.NewImporter(normalizer, resolver, orderRepo, log)

	var (
		pipeline   *appsync.Pipeline
		reconciler *appsync.Reconciler
	)
	if cfg.Sync.Enabled {
		var source domainchannel.EventSource = channel.NewStreamClient(
			cfg.Channel.BaseURL,
			cfg.Channel.OrdersPath,
			cfg.Channel.AuthToken,
			cfg.Channel.RequestTimeout,
			channel.WithStreamLogger(log),
			channel.WithReconnectDelay(cfg.Channel.ReconnectDelay),
		)
		reconciler = appsync.NewReconciler(source, importer, orderRepo, processed,
			cfg.Sync.ReconcileCooldown, log)
		pipeline = appsync.NewPipeline(source, importer, orderRepo, processed, reconciler, notifier,
			appsync.WithPipelineLogger(log),
			appsync.WithStalenessWindow(cfg.Sync.StalenessWindow),
			appsync.WithSessionCap(cfg.Sync.SessionCap),
			appsync.WithRecencyGuard(cfg.Sync.RecencyGuard))

		if err := pipeline.Start(context.Background()); err != nil {
			log.Error("pipeline failed to start, continuing without live sync", zap.Error(err))
		}
	} else {
		log.Info("sync disabled, running local-only")
	}

	// HTTP surface
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.CORS(cfg.HTTP.AllowOrigins),
	)

	var pusher handler.StatusPusher
	if pipeline != nil {
		pusher = pipeline
	}
	r := router.NewRouter(engine).
		Register(handler.NewOrderHandler(orderRepo, pusher, log)).
		Register(handler.NewCustomerHandler(customerRepo)).
		Register(handler.NewCacheHandler(registry))
	if pipeline != nil {
		r.Register(handler.NewSyncHandler(pipeline, reconciler, notifier))
	}
	r.Setup()

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	if pipeline != nil {
		pipeline.Stop()
	}
	registry.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", zap.Error(err))
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if err := db.Close(); err != nil {
		log.Error("database close error", zap.Error(err))
	}
	log.Info("goodbye")
}
