// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pageza/kitchen-assistant/backend/internal/retry"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitchen_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kitchen_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kitchen_http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
	)

	// Rate limiting metrics
	RateLimitRejects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kitchen_rate_limit_rejects_total",
			Help: "Total number of requests rejected due to rate limiting",
		},
	)

	RateLimitErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kitchen_rate_limit_errors_total",
			Help: "Total number of rate limit checks that failed and let the request through",
		},
	)

	// Panic recovery metrics
	PanicRecoveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kitchen_panic_recoveries_total",
			Help: "Total number of panics recovered in HTTP handlers",
		},
	)

	// Provider call metrics
	ProviderAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitchen_provider_attempts_total",
			Help: "Total number of model provider call attempts",
		},
		[]string{"operation", "outcome", "classification"},
	)

	// Analysis pipeline metrics
	AnalyzeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kitchen_analyze_duration_seconds",
			Help:    "Duration of a full image analysis in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	RecipesGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kitchen_recipes_generated_total",
			Help: "Total number of recipes returned to clients",
		},
	)

	RecipesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kitchen_recipes_skipped_total",
			Help: "Total number of recipes dropped after a failed or empty generation",
		},
	)
)

// ObserveAttempt records a provider call attempt. It matches retry.Caller's
// Observer signature.
func ObserveAttempt(a retry.Attempt) {
	class := ""
	if a.Outcome != retry.Success {
		class = a.Classification.String()
	}
	ProviderAttempts.WithLabelValues(a.Operation, a.Outcome.String(), class).Inc()
}
