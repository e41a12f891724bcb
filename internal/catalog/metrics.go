package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess = "success"
	outcomeError   = "error"
	outcomeStale   = "stale"
)

var (
	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "catalog",
			Name:      "fetches_total",
			Help:      "Catalog fetches by outcome; stale counts responses discarded for a newer fetch",
		},
		[]string{"outcome"},
	)

	fetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "catalog",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of catalog fetches including normalization",
			Buckets:   prometheus.DefBuckets,
		},
	)

	imageDecodeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "catalog",
			Name:      "image_decode_failures_total",
			Help:      "Product images that could not be decoded and were left absent",
		},
	)
)
