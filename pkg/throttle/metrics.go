package throttle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the throttle subsystem.
type Metrics struct {
	// admissionChecks counts admission decisions by result.
	admissionChecks *prometheus.CounterVec

	// trackedClients reports the number of client keys currently held in
	// the window store.
	trackedClients prometheus.GaugeFunc

	// cleanupRuns counts completed cleanup sweeps.
	cleanupRuns prometheus.Counter

	// cleanupRemoved counts client entries removed by cleanup sweeps.
	cleanupRemoved prometheus.Counter
}

// NewMetrics creates a new Metrics instance with Prometheus collectors.
// The store is polled lazily for the tracked-clients gauge.
func NewMetrics(store *WindowStore) *Metrics {
	return &Metrics{
		admissionChecks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_throttle_admissions_total",
				Help: "Total number of rate limit admission checks by result",
			},
			[]string{"result"},
		),

		trackedClients: promauto.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "warden_throttle_tracked_clients",
				Help: "Number of client keys currently tracked in the sliding window store",
			},
			func() float64 {
				return float64(store.Len())
			},
		),

		cleanupRuns: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "warden_throttle_cleanup_runs_total",
				Help: "Total number of completed window cleanup sweeps",
			},
		),

		cleanupRemoved: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "warden_throttle_cleanup_removed_total",
				Help: "Total number of idle client entries removed by cleanup",
			},
		),
	}
}
