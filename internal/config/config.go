package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	pkgconfig "github.com/myreviews/storefront/pkg/config"
)

const defaultSessionSecret = "change-me-storefront-session-secret"

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPPort    int    `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`

	// Remote product, comment and auth API
	ProductAPIURL    string `env:"PRODUCT_API_URL" envDefault:"http://localhost:3000"`
	ProductsPath     string `env:"PRODUCT_API_PRODUCTS_PATH" envDefault:"/api/products"`
	CommentsPath     string `env:"PRODUCT_API_COMMENTS_PATH" envDefault:"/api/comments"`
	AuthLoginPath    string `env:"AUTH_LOGIN_PATH" envDefault:"/api/auth/login"`
	AuthRegisterPath string `env:"AUTH_REGISTER_PATH" envDefault:"/api/auth/register"`

	// Upstream HTTP client
	HTTPClientTimeout  time.Duration `env:"HTTP_CLIENT_TIMEOUT" envDefault:"15s"`
	HTTPClientRetries  int           `env:"HTTP_CLIENT_MAX_RETRIES" envDefault:"0"`
	BreakerMinRequests uint32        `env:"CIRCUIT_BREAKER_MIN_REQUESTS" envDefault:"5"`
	BreakerRatio       float64       `env:"CIRCUIT_BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	BreakerOpenTimeout time.Duration `env:"CIRCUIT_BREAKER_TIMEOUT" envDefault:"30s"`

	// Catalog view
	PageSize          int           `env:"CATALOG_PAGE_SIZE" envDefault:"16"`
	FetchTimeout      time.Duration `env:"CATALOG_FETCH_TIMEOUT" envDefault:"10s"`
	CommentAuthorName string        `env:"COMMENT_AUTHOR_NAME" envDefault:"Tú"`
	DefaultUserID     string        `env:"DEFAULT_USER_ID" envDefault:"1"`

	// Sessions
	SessionSecret string        `env:"SESSION_SECRET" envDefault:"change-me-storefront-session-secret"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	CookieSecure  bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`

	// Listing cache
	CacheEnabled bool          `env:"CACHE_ENABLED" envDefault:"false"`
	CacheTTL     time.Duration `env:"CACHE_TTL" envDefault:"30s"`
	RedisAddr    string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass    string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB      int           `env:"REDIS_DB" envDefault:"0"`

	// Rate limiting of mutating view endpoints, per session
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"20"`

	// Observability
	OTELEnabled         bool     `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint        string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate      float64  `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
	MetricsAllowedCIDRs []string `env:"METRICS_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,::1/128" envSeparator:","`
	CORSAllowedOrigins  []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	PprofEnabled        bool     `env:"PPROF_ENABLED" envDefault:"false"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	u, err := url.Parse(c.ProductAPIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("PRODUCT_API_URL must be an absolute URL, got %q", c.ProductAPIURL)
	}
	for name, path := range map[string]string{
		"PRODUCT_API_PRODUCTS_PATH": c.ProductsPath,
		"PRODUCT_API_COMMENTS_PATH": c.CommentsPath,
		"AUTH_LOGIN_PATH":           c.AuthLoginPath,
		"AUTH_REGISTER_PATH":        c.AuthRegisterPath,
	} {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("%s must start with '/', got %q", name, path)
		}
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		return fmt.Errorf("CATALOG_PAGE_SIZE must be between 1 and 100, got %d", c.PageSize)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("CATALOG_FETCH_TIMEOUT must be positive, got %s", c.FetchTimeout)
	}
	if c.HTTPClientRetries < 0 {
		return fmt.Errorf("HTTP_CLIENT_MAX_RETRIES must not be negative, got %d", c.HTTPClientRetries)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if !c.IsDevelopment() && c.SessionSecret == defaultSessionSecret {
		return fmt.Errorf("SESSION_SECRET must be changed from default value in %s environment", c.Environment)
	}
	if len(c.SessionSecret) < 16 {
		return fmt.Errorf("SESSION_SECRET must be at least 16 bytes")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be within [0, 1], got %v", c.OTELSampleRate)
	}
	for _, cidr := range c.MetricsAllowedCIDRs {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("METRICS_ALLOWED_CIDRS: %w", err)
		}
	}
	return nil
}
