package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StageRecordsSynced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pbxsync_stage_records_synced_total",
			Help: "Total number of records synced per tenant and stage",
		},
		[]string{"tenant", "stage"},
	)

	StageRecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pbxsync_stage_records_skipped_total",
			Help: "Total number of records skipped (already present) per tenant and stage",
		},
		[]string{"tenant", "stage"},
	)

	StageRecordErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pbxsync_stage_record_errors_total",
			Help: "Total number of per-record errors per tenant and stage",
		},
		[]string{"tenant", "stage"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pbxsync_stage_duration_seconds",
			Help:    "Duration of one stage run",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"tenant", "stage"},
	)

	StageRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pbxsync_stage_runs_total",
			Help: "Total number of stage runs by outcome",
		},
		[]string{"tenant", "stage", "outcome"}, // outcome: "ok", "error"
	)

	TunnelsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pbxsync_tunnels_open",
			Help: "Current number of cached SSH tunnels/pools",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pbxsync_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"tenant", "stage"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pbxsync_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"tenant", "stage", "from_state", "to_state"},
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pbxsync_circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive stage failures",
		},
		[]string{"tenant", "stage"},
	)
)

// RecordStageResult updates the per-tenant, per-stage counters and
// duration histogram for one completed stage run.
func RecordStageResult(tenant, stage string, synced, skipped, errs int, duration time.Duration, runErr error) {
	StageRecordsSynced.WithLabelValues(tenant, stage).Add(float64(synced))
	StageRecordsSkipped.WithLabelValues(tenant, stage).Add(float64(skipped))
	StageRecordErrors.WithLabelValues(tenant, stage).Add(float64(errs))
	StageDuration.WithLabelValues(tenant, stage).Observe(duration.Seconds())
	if runErr != nil {
		StageRunsTotal.WithLabelValues(tenant, stage, "error").Inc()
	} else {
		StageRunsTotal.WithLabelValues(tenant, stage, "ok").Inc()
	}
}

// circuitStateValue maps gobreaker's State to the same 0/1/2 convention
// the teacher's dashboards already expect.
func circuitStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RecordCircuitBreakerTransition records a state change for one tenant's
// stage breaker, mirroring gobreaker's OnStateChange callback shape.
func RecordCircuitBreakerTransition(tenant, stage, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(tenant, stage, from, to).Inc()
	CircuitBreakerState.WithLabelValues(tenant, stage).Set(circuitStateValue(to))
}

// SetCircuitBreakerConsecutiveFailures updates the consecutive-failure gauge
// for one tenant's stage breaker.
func SetCircuitBreakerConsecutiveFailures(tenant, stage string, count uint32) {
	CircuitBreakerConsecutiveFailures.WithLabelValues(tenant, stage).Set(float64(count))
}

// SetTunnelsOpen updates the cached-tunnel gauge.
func SetTunnelsOpen(n int) {
	TunnelsOpen.Set(float64(n))
}
