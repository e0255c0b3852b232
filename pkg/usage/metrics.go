package usage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the usage subsystem.
type Metrics struct {
	// quotaChecks counts quota evaluations by event type, tier and result.
	quotaChecks *prometheus.CounterVec

	// quotaFallbacks counts fail-open decisions taken because the event
	// store was unreachable. Distinct from denials: a rising rate here
	// means quota enforcement is degraded, not that tenants are over quota.
	quotaFallbacks prometheus.Counter

	// eventsRecorded counts successfully persisted usage events by type.
	eventsRecorded *prometheus.CounterVec

	// eventsDropped counts usage events lost to storage failures or a
	// full recorder buffer.
	eventsDropped prometheus.Counter
}

// NewMetrics creates a new Metrics instance with Prometheus collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		quotaChecks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_usage_quota_checks_total",
				Help: "Total number of quota evaluations performed",
			},
			[]string{"event_type", "tier", "result"},
		),

		quotaFallbacks: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "warden_usage_quota_fallbacks_total",
				Help: "Total number of fail-open quota decisions due to store errors",
			},
		),

		eventsRecorded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_usage_events_recorded_total",
				Help: "Total number of usage events persisted",
			},
			[]string{"event_type"},
		),

		eventsDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "warden_usage_events_dropped_total",
				Help: "Total number of usage events dropped",
			},
		),
	}
}
