package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "octodash_http_requests_total",
			Help: "Total number of API requests served",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "octodash_http_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Usage cache metrics
	UsageCacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "octodash_usage_cache_requests_total",
			Help: "Usage snapshot lookups by result (hit, miss)",
		},
		[]string{"result"},
	)

	UsageComputations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "octodash_usage_computations_total",
			Help: "Usage aggregation runs by outcome (success, failure)",
		},
		[]string{"outcome"},
	)

	UsageComputeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "octodash_usage_compute_duration_seconds",
			Help:    "Duration of a full usage aggregation",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	UsageFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "octodash_usage_fallbacks_total",
			Help: "Snapshots served after a failed aggregation, by source (stale, stored, zero)",
		},
		[]string{"source"},
	)

	ReportFetchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "octodash_report_fetch_failures_total",
			Help: "Campaign report fetches skipped during aggregation",
		},
	)

	// Quota metrics
	QuotaRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "octodash_quota_rejections_total",
			Help: "Increments refused because the monthly allowance was reached",
		},
		[]string{"kind"},
	)

	// Proxy metrics
	ProxyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "octodash_proxy_requests_total",
			Help: "Requests forwarded to EmailOctopus through the proxy endpoint",
		},
		[]string{"method", "outcome"},
	)

	// Session metrics
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "octodash_active_sessions",
			Help: "Number of live login sessions",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		UsageCacheRequests,
		UsageComputations,
		UsageComputeDuration,
		UsageFallbacks,
		ReportFetchFailures,
		QuotaRejections,
		ProxyRequests,
		ActiveSessions,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
