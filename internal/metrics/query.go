package metrics

import "github.com/prometheus/client_golang/prometheus"

// Query compilation and facet Prometheus metrics.
var (
	QueryCompileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "elasticpress",
			Name:      "query_compile_total",
			Help:      "Total number of compiled queries",
		},
		[]string{"kind", "status"}, // kind: "search" / "browse"
	)

	FacetCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "elasticpress",
			Name:      "facet_cache_total",
			Help:      "Facet value cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	FacetInvalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "elasticpress",
			Name:      "facet_invalidations_total",
			Help:      "Facet value cache invalidations",
		},
		[]string{"trigger"},
	)

	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "elasticpress",
			Name:      "backend_request_duration_seconds",
			Help:      "Search backend request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"backend", "op"},
	)
)

var queryMetricsRegistered bool

// RegisterQueryMetrics registers query and facet metrics. Must be called once from main.
func RegisterQueryMetrics() {
	if queryMetricsRegistered {
		return
	}
	prometheus.MustRegister(QueryCompileTotal)
	prometheus.MustRegister(FacetCacheTotal)
	prometheus.MustRegister(FacetInvalidationsTotal)
	prometheus.MustRegister(BackendRequestDuration)
	queryMetricsRegistered = true
}
