// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyst_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analyst_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "analyst_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// kind is "template" or "dynamic"
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analyst_query_duration_seconds",
			Help:    "Duration of dataset queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "source"},
	)

	QueryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyst_query_failures_total",
			Help: "Total number of failed or rejected dataset queries",
		},
		[]string{"kind", "error_code"},
	)

	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyst_llm_calls_total",
			Help: "Total number of language model calls",
		},
		[]string{"provider", "status"},
	)

	SQLDraftCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyst_sql_draft_cache_total",
			Help: "SQL draft cache lookups by result",
		},
		[]string{"result"},
	)
)
