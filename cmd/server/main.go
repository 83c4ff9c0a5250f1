package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	stockapp "github.com/salonsuite/backend/internal/application/stock"
	"github.com/salonsuite/backend/internal/infrastructure/cache"
	"github.com/salonsuite/backend/internal/infrastructure/config"
	"github.com/salonsuite/backend/internal/infrastructure/logger"
	"github.com/salonsuite/backend/internal/infrastructure/persistence"
	"github.com/salonsuite/backend/internal/infrastructure/telemetry"
	"github.com/salonsuite/backend/internal/interfaces/http/handler"
	"github.com/salonsuite/backend/internal/interfaces/http/middleware"
	"github.com/salonsuite/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//	@title			SalonSuite Stock API
//	@version		1.0
//	@description	Stock management backend for salons and spas. Tracks product usage against per-store stock levels with an append-only usage ledger.

//	@contact.name	API Support
//	@contact.url	https://github.com/salonsuite/backend
//	@contact.email	support@salonsuite.example.com

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	TenantID
//	@in							header
//	@name						X-Tenant-ID
//	@description				Tenant (salon) identifier. All stock endpoints are scoped to this tenant.

// providers bundles the telemetry lifecycle handles flushed on shutdown.
type providers struct {
	tracer *telemetry.TracerProvider
	meter  *telemetry.MeterProvider
	logs   *telemetry.LoggerProvider
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Name:       cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx := context.Background()

	tel, log := initTelemetry(ctx, cfg, log)

	log.Info("Starting SalonSuite stock backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if cfg.Telemetry.Enabled {
		if err := db.DB.Use(telemetry.NewDBTracingPlugin(telemetry.DefaultDBTracingConfig(), log)); err != nil {
			log.Warn("Failed to install database tracing plugin", zap.Error(err))
		}
		dbMetrics, err := telemetry.RegisterDBMetrics(ctx, db.DB, tel.meter, telemetry.DefaultDBMetricsConfig(), log)
		if err != nil {
			log.Warn("Failed to register database metrics", zap.Error(err))
		} else if dbMetrics != nil {
			defer dbMetrics.Stop()
		}
	}

	stockMetrics := initStockMetrics(ctx, cfg, tel.meter, db, log)
	if stockMetrics != nil {
		defer stockMetrics.Stop()
	}

	stockService, err := buildStockService(cfg, db, stockMetrics, log)
	if err != nil {
		log.Fatal("Failed to assemble stock service", zap.Error(err))
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	closeLimiter := applyMiddleware(engine, cfg, tel.meter, log)
	defer closeLimiter()

	mountRoutes(engine, cfg, db, stockService, log)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}
	serve(srv, tel, log)
}

// initTelemetry builds the trace, metric and log providers. Every provider
// degrades to a no-op when telemetry is disabled, so callers can wire them
// unconditionally. When enabled, the returned logger additionally ships its
// entries to the OTEL collector.
func initTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) (providers, *zap.Logger) {
	tracer, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.App.Name,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	meter, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.App.Name,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	logs, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.App.Name,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}

	if cfg.Telemetry.Enabled {
		otelCore := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    cfg.App.Name,
			LoggerProvider: logs,
			Level:          zapcore.InfoLevel,
		})
		log = telemetry.NewBridgedLogger(log.Core(), otelCore,
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
		)
	}

	return providers{tracer: tracer, meter: meter, logs: logs}, log
}

// initStockMetrics wires periodic stock gauge collection from the database.
// Returns nil when telemetry is disabled or the instruments cannot be built.
func initStockMetrics(ctx context.Context, cfg *config.Config, meter *telemetry.MeterProvider, db *persistence.Database, log *zap.Logger) *telemetry.StockMetrics {
	if !cfg.Telemetry.Enabled {
		return nil
	}
	sm, err := telemetry.NewStockMetrics(telemetry.StockMetricsConfig{
		Meter:           meter.Meter("salonsuite/stock"),
		Logger:          log,
		CollectInterval: cfg.Telemetry.MetricsInterval,
		StockProvider:   telemetry.NewGormStockMetricsProvider(db.DB),
	})
	if err != nil {
		log.Warn("Failed to initialize stock metrics", zap.Error(err))
		return nil
	}
	sm.StartPeriodicCollection(ctx, telemetry.NewGormTenantProvider(db.DB), cfg.Telemetry.MetricsInterval)
	return sm
}

// buildStockService assembles the repository, cache and counter layers into
// the application-facing stock service.
func buildStockService(cfg *config.Config, db *persistence.Database, stockMetrics *telemetry.StockMetrics, log *zap.Logger) (*stockapp.StockService, error) {
	levelRepo := persistence.NewGormStockLevelRepository(db.DB)
	eventRepo := persistence.NewGormUsageEventRepository(db.DB)

	// Redis-backed caches when configured, in-process equivalents otherwise.
	cacheFactory := cache.NewFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithCacheTTL(cfg.Stock.CacheTTL),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)

	cachedLevels := cache.NewCachedStockLevelRepository(levelRepo, cacheFactory.CreateLevelCache(), log)

	idemStore, err := cacheFactory.CreateIdempotencyStore()
	if err != nil {
		return nil, err
	}

	counterService := stockapp.NewCounterService(cachedLevels, log).
		WithRetryBudget(cfg.Stock.MaxAttempts, cfg.Stock.AttemptTimeout).
		WithBackoff(stockapp.BackoffPolicy{Base: cfg.Stock.BackoffBase, Max: cfg.Stock.BackoffMax})

	serviceOpts := []stockapp.StockServiceOption{
		stockapp.WithIdempotencyStore(idemStore, 0),
	}
	if stockMetrics != nil {
		counterService = counterService.WithMetrics(stockMetrics)
		serviceOpts = append(serviceOpts, stockapp.WithMetrics(stockMetrics))
	}

	return stockapp.NewStockService(cachedLevels, eventRepo, counterService, log, serviceOpts...), nil
}

// applyMiddleware installs the global middleware stack. Request ID first so
// every later layer can correlate, then recovery, logging, security headers,
// CORS, the body size cap and request telemetry. Rate limiting comes last so
// rejected requests are still logged and counted. The returned func releases
// the rate limiter and is a no-op when limiting is off.
func applyMiddleware(engine *gin.Engine, cfg *config.Config, meter *telemetry.MeterProvider, log *zap.Logger) func() {
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.App.Name,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meter,
		ServiceName:   cfg.App.Name,
		Enabled:       cfg.Telemetry.Enabled,
	}))

	if !cfg.HTTP.RateLimitEnabled {
		return func() {}
	}
	rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
	engine.Use(middleware.RateLimit(rateLimiter))
	log.Info("Rate limiting enabled",
		zap.Int("requests", cfg.HTTP.RateLimitRequests),
		zap.Duration("window", cfg.HTTP.RateLimitWindow),
	)
	return rateLimiter.Close
}

// mountRoutes registers the health probe, the versioned API groups and the
// tenant middleware guarding the stock endpoints.
func mountRoutes(engine *gin.Engine, cfg *config.Config, db *persistence.Database, stockService *stockapp.StockService, log *zap.Logger) {
	engine.GET("/health", healthHandler(db, log))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Stock endpoints require tenant identification. System endpoints stay
	// open for probes and smoke tests.
	tenantConfig := middleware.DefaultTenantConfig()
	tenantConfig.SkipPaths = append(tenantConfig.SkipPaths,
		"/api/v1/ping",
		"/api/v1/system/ping",
		"/api/v1/system/info",
	)
	tenantConfig.Logger = log
	r.Use(middleware.TenantMiddlewareWithConfig(tenantConfig))
	r.Use(middleware.TracingAttributeInjector())
	r.Use(middleware.SpanErrorMarker())

	r.Register(router.StockRoutes(handler.NewStockHandler(stockService))).
		Register(router.SystemRoutes(handler.NewSystemHandler()))
	r.Setup()

	// Bare ping kept outside the groups for the simplest possible probe.
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
}

// serve runs the HTTP server until SIGINT or SIGTERM, then drains in-flight
// requests and flushes telemetry.
func serve(srv *http.Server, tel providers, log *zap.Logger) {
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	if err := tel.tracer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := tel.meter.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tel.logs.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down logger provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		body := gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		}
		if stats, err := db.Stats(); err == nil {
			body["pool"] = gin.H{
				"open":    stats.OpenConnections,
				"in_use":  stats.InUse,
				"idle":    stats.Idle,
				"waiting": stats.WaitCount,
			}
		}
		c.JSON(http.StatusOK, body)
	}
}
