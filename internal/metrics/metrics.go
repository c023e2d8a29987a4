package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the delivery path.
var (
	AttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhookd_delivery_attempts_total",
			Help: "Total delivery attempts by outcome (delivered, retrying, failed)",
		},
		[]string{"outcome"},
	)

	DispatchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhookd_deliveries_dispatched_total",
			Help: "Total delivery records created by the dispatcher",
		},
	)

	AttemptDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webhookd_delivery_attempt_duration_seconds",
			Help:    "Latency of outbound webhook HTTP attempts",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Register installs the collectors on the default registry. Called once from
// main; tests leave metrics unregistered.
func Register() {
	prometheus.MustRegister(AttemptsTotal, DispatchedTotal, AttemptDuration)
}
