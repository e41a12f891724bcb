package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Environment:      "development",
		HTTPPort:         8080,
		ProductAPIURL:    "http://localhost:3000",
		ProductsPath:     "/api/products",
		CommentsPath:     "/api/comments",
		AuthLoginPath:    "/api/auth/login",
		AuthRegisterPath: "/api/auth/register",
		PageSize:         16,
		FetchTimeout:     10 * time.Second,
		SessionSecret:    defaultSessionSecret,
		SessionTTL:       30 * time.Minute,
		RateLimitRPS:     10,
		RateLimitBurst:   20,
		OTELSampleRate:   1,
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "http://localhost:3000", cfg.ProductAPIURL)
	assert.Equal(t, "/api/auth/register", cfg.AuthRegisterPath)
	assert.Equal(t, 16, cfg.PageSize)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "Tú", cfg.CommentAuthorName)
	assert.Equal(t, "1", cfg.DefaultUserID)
	assert.Equal(t, 0, cfg.HTTPClientRetries)
	assert.False(t, cfg.CacheEnabled)
	assert.Contains(t, cfg.MetricsAllowedCIDRs, "127.0.0.0/8")
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("CATALOG_PAGE_SIZE", "8")
	t.Setenv("CATALOG_FETCH_TIMEOUT", "3s")
	t.Setenv("CACHE_ENABLED", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.PageSize)
	assert.Equal(t, 3*time.Second, cfg.FetchTimeout)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("CATALOG_PAGE_SIZE", "sixteen")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load storefront config")
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, validConfig().validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.HTTPPort = 0 }, "invalid HTTP port"},
		{"relative api url", func(c *Config) { c.ProductAPIURL = "localhost:3000/api" }, "PRODUCT_API_URL"},
		{"path without slash", func(c *Config) { c.CommentsPath = "api/comments" }, "PRODUCT_API_COMMENTS_PATH"},
		{"page size zero", func(c *Config) { c.PageSize = 0 }, "CATALOG_PAGE_SIZE"},
		{"page size too large", func(c *Config) { c.PageSize = 500 }, "CATALOG_PAGE_SIZE"},
		{"fetch timeout", func(c *Config) { c.FetchTimeout = 0 }, "CATALOG_FETCH_TIMEOUT"},
		{"negative retries", func(c *Config) { c.HTTPClientRetries = -1 }, "HTTP_CLIENT_MAX_RETRIES"},
		{"session ttl", func(c *Config) { c.SessionTTL = 0 }, "SESSION_TTL"},
		{"default secret in production", func(c *Config) { c.Environment = "production" }, "SESSION_SECRET must be changed"},
		{"short secret", func(c *Config) { c.SessionSecret = "short" }, "at least 16 bytes"},
		{"rate limit", func(c *Config) { c.RateLimitBurst = 0 }, "RATE_LIMIT"},
		{"sample rate", func(c *Config) { c.OTELSampleRate = 1.5 }, "OTEL_SAMPLE_RATE"},
		{"cidr", func(c *Config) { c.MetricsAllowedCIDRs = []string{"10.0.0.0/33"} }, "METRICS_ALLOWED_CIDRS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ProductionWithCustomSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Environment = "production"
	cfg.SessionSecret = "a-real-production-secret-value"
	assert.NoError(t, cfg.validate())
}
