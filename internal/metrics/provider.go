package metrics

import "github.com/prometheus/client_golang/prometheus"

// Similarity provider Prometheus metrics.
var (
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assetgate",
			Name:      "similarity_requests_total",
			Help:      "Total number of similarity provider requests",
		},
		[]string{"status"},
	)

	ProviderRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "assetgate",
			Name:      "similarity_request_duration_seconds",
			Help:      "Similarity provider request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	ProviderMatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assetgate",
			Name:      "similarity_matches_total",
			Help:      "Provider matches by post-processing outcome",
		},
		[]string{"outcome"}, // "returned" / "malformed"
	)

	ProviderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assetgate",
			Name:      "similarity_errors_total",
			Help:      "Total similarity provider errors",
		},
		[]string{"error_type"},
	)
)

var providerMetricsRegistered bool

// RegisterProviderMetrics registers similarity provider metrics.
// Must be called once from main.
func RegisterProviderMetrics() {
	if providerMetricsRegistered {
		return
	}
	prometheus.MustRegister(ProviderRequestsTotal)
	prometheus.MustRegister(ProviderRequestDuration)
	prometheus.MustRegister(ProviderMatchesTotal)
	prometheus.MustRegister(ProviderErrorsTotal)
	providerMetricsRegistered = true
}
