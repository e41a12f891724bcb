package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/myreviews/storefront/internal/session"
	"github.com/myreviews/storefront/pkg/health"
	pkgmiddleware "github.com/myreviews/storefront/pkg/middleware"
)

// staticMaxAge is how long browsers may cache the embedded stylesheet.
const staticMaxAge = 3600

// RouterConfig holds the router settings taken from configuration.
type RouterConfig struct {
	CORS                pkgmiddleware.CORSConfig
	MetricsAllowedCIDRs []string
	RequestTimeout      time.Duration
	Pprof               bool
}

// NewRouter creates a chi router with global middleware, ops endpoints, the
// HTML pages and the JSON view API.
func NewRouter(
	cfg RouterConfig,
	sessions *session.Manager,
	pages *PageHandler,
	views *ViewHandler,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(pkgmiddleware.RequestLogging(logger))
	r.Use(pkgmiddleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(pkgmiddleware.PrometheusMetrics())
	r.Use(pkgmiddleware.Tracing())
	r.Use(pkgmiddleware.RequestLogger(logger))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.With(pkgmiddleware.IPAllowlist(cfg.MetricsAllowedCIDRs, logger)).Handle("/metrics", promhttp.Handler())
	if cfg.Pprof {
		pkgmiddleware.RegisterPprof(r, cfg.MetricsAllowedCIDRs, logger)
	}

	r.With(pkgmiddleware.CacheControl(staticMaxAge)).
		Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	r.Group(func(r chi.Router) {
		r.Use(pkgmiddleware.NoStore)
		r.Use(sessions.Middleware)
		pages.RegisterRoutes(r)
	})

	r.Route("/api/v1/view", func(r chi.Router) {
		r.Use(pkgmiddleware.CORS(cfg.CORS))
		r.Use(pkgmiddleware.NoStore)
		r.Use(sessions.Middleware)
		views.RegisterRoutes(r)
	})

	return r
}
