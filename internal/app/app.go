package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/myreviews/storefront/internal/auth"
	"github.com/myreviews/storefront/internal/cache"
	"github.com/myreviews/storefront/internal/catalog"
	"github.com/myreviews/storefront/internal/config"
	handler "github.com/myreviews/storefront/internal/handler/http"
	"github.com/myreviews/storefront/internal/productapi"
	"github.com/myreviews/storefront/internal/session"
	"github.com/myreviews/storefront/pkg/database"
	"github.com/myreviews/storefront/pkg/health"
	"github.com/myreviews/storefront/pkg/httpclient"
	pkgmiddleware "github.com/myreviews/storefront/pkg/middleware"
	"github.com/myreviews/storefront/pkg/tracing"
)

const serviceName = "storefront"

// App wires together all dependencies and runs the storefront.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	httpServer     *http.Server
	sessions       *session.Store
	redisClient    *redis.Client
	tracerShutdown tracing.ShutdownFunc
}

// NewApp creates a new application instance, connecting to Redis when the
// listing cache is enabled and building the HTTP router.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	healthHandler := health.NewHandler()

	var (
		listingCache cache.Cache = cache.Noop{}
		redisClient  *redis.Client
	)
	if cfg.CacheEnabled {
		redisCfg := database.DefaultRedisConfig()
		redisCfg.Addr = cfg.RedisAddr
		redisCfg.Password = cfg.RedisPass
		redisCfg.DB = cfg.RedisDB

		redisClient, err = database.NewRedisClient(ctx, redisCfg)
		if err != nil {
			_ = tracerShutdown(context.Background())
			return nil, fmt.Errorf("connect listing cache: %w", err)
		}
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, redisClient, serviceName); err != nil {
			logger.Warn("redis pool metrics not registered", slog.String("error", err.Error()))
		}
		redisCache := cache.NewRedis(redisClient)
		listingCache = redisCache
		healthHandler.RegisterNonCritical("redis", redisCache.Ping)
		logger.Info("listing cache enabled", slog.String("addr", cfg.RedisAddr), slog.Duration("ttl", cfg.CacheTTL))
	}

	clientCfg := httpclient.DefaultConfig()
	clientCfg.Timeout = cfg.HTTPClientTimeout
	clientCfg.MaxRetries = cfg.HTTPClientRetries
	baseClient := httpclient.New(clientCfg)

	api := productapi.NewClient(
		httpclient.NewCircuitBreakerClient(baseClient, breakerConfig(cfg, "product-api"), logger),
		productapi.Config{
			BaseURL:      cfg.ProductAPIURL,
			ProductsPath: cfg.ProductsPath,
			CommentsPath: cfg.CommentsPath,
			CacheTTL:     cfg.CacheTTL,
		},
		listingCache,
		logger,
	)
	healthHandler.Register("product-api", api.Ping)

	authClient := auth.NewClient(
		httpclient.NewCircuitBreakerClient(baseClient, breakerConfig(cfg, "auth-api"), logger),
		auth.Config{
			BaseURL:      cfg.ProductAPIURL,
			LoginPath:    cfg.AuthLoginPath,
			RegisterPath: cfg.AuthRegisterPath,
		},
		logger,
	)

	catalogOpts := catalog.Options{
		PageSize:     cfg.PageSize,
		FetchTimeout: cfg.FetchTimeout,
		AuthorName:   cfg.CommentAuthorName,
		UserID:       cfg.DefaultUserID,
	}
	store := session.NewStore(session.StoreConfig{
		TTL:            cfg.SessionTTL,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}, func() *catalog.Controller {
		return catalog.NewController(api, api, logger, catalogOpts)
	}, logger)
	sessions := session.NewManager(store, session.NewSigner(cfg.SessionSecret, cfg.SessionTTL), cfg.SessionTTL, cfg.CookieSecure, logger)

	pages, err := handler.NewPageHandler(authClient, sessions, logger)
	if err != nil {
		store.Stop()
		if redisClient != nil {
			_ = redisClient.Close()
		}
		_ = tracerShutdown(context.Background())
		return nil, fmt.Errorf("build page handler: %w", err)
	}

	cors := pkgmiddleware.DefaultCORSConfig()
	if len(cfg.CORSAllowedOrigins) > 0 {
		cors.AllowedOrigins = cfg.CORSAllowedOrigins
	}

	router := handler.NewRouter(handler.RouterConfig{
		CORS:                cors,
		MetricsAllowedCIDRs: cfg.MetricsAllowedCIDRs,
		RequestTimeout:      cfg.FetchTimeout + 5*time.Second,
		Pprof:               cfg.PprofEnabled,
	}, sessions, pages, handler.NewViewHandler(logger), healthHandler, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.FetchTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		httpServer:     httpServer,
		sessions:       store,
		redisClient:    redisClient,
		tracerShutdown: tracerShutdown,
	}, nil
}

func breakerConfig(cfg *config.Config, name string) httpclient.CircuitBreakerConfig {
	cb := httpclient.DefaultCircuitBreakerConfig(name)
	cb.MinRequests = cfg.BreakerMinRequests
	cb.FailureRatio = cfg.BreakerRatio
	cb.Timeout = cfg.BreakerOpenTimeout
	return cb
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown stops the application in order:
// 1. HTTP server (drain in-flight requests)
// 2. Session sweeper
// 3. Redis
// 4. Tracer (flush spans of drained requests)
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.sessions.Stop()

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
