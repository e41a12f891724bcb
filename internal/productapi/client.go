package productapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/myreviews/storefront/internal/cache"
)

const serviceName = "product-api"

// maxResponseBytes bounds upstream bodies. Listings embed images, so this
// is generous.
const maxResponseBytes = 32 << 20

var upstreamDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "storefront",
		Name:      "upstream_request_duration_seconds",
		Help:      "Duration of calls to the product API",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"operation", "outcome"},
)

// HTTPDoer is satisfied by httpclient.Client and httpclient.CircuitBreakerClient.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Config holds the endpoint layout of the product API.
type Config struct {
	BaseURL      string
	ProductsPath string
	CommentsPath string
	CacheTTL     time.Duration
}

// Client talks to the product listing and comment endpoints.
type Client struct {
	http   HTTPDoer
	cfg    Config
	cache  cache.Cache
	logger *slog.Logger
}

// NewClient creates a product API client. A nil listing cache disables caching.
func NewClient(doer HTTPDoer, cfg Config, listingCache cache.Cache, logger *slog.Logger) *Client {
	if listingCache == nil {
		listingCache = cache.Noop{}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		http:   doer,
		cfg:    cfg,
		cache:  listingCache,
		logger: logger,
	}
}

// Ping checks that the product API answers a minimal listing request.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.listURL(ListRequest{Page: 1, Length: 1}), http.NoBody)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("call %s: %w", serviceName, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%s returned status %d", serviceName, resp.StatusCode)
	}
	return nil
}

func (c *Client) do(ctx context.Context, operation string, req *http.Request) (*http.Response, error) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(ctx, req)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case resp.StatusCode >= 400:
		outcome = fmt.Sprintf("http_%d", resp.StatusCode)
	}
	upstreamDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, fmt.Errorf("call %s: %w", serviceName, err)
	}
	return resp, nil
}
