// Package metrics exposes Prometheus instrumentation for the flash
// pipeline. Counters are registered at init and served by the API's
// /metrics endpoint.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	FlashInvocations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flash_invocations_total",
		Help: "Total flash function invocations by feature and outcome",
	}, []string{"feature", "outcome"})

	FlashTokensUsed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flash_oracle_tokens_total",
		Help: "Total oracle tokens consumed by feature",
	}, []string{"feature"})

	FlashDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flash_execution_duration_seconds",
		Help:    "Flash function execution time by feature",
		Buckets: prometheus.DefBuckets,
	}, []string{"feature"})
)

func init() {
	prometheus.MustRegister(FlashInvocations, FlashTokensUsed, FlashDuration)
}
