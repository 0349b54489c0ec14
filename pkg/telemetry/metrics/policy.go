package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"policykeeper-hq/policykeeper/pkg/config"
)

// Lifecycle states reported by the policies gauge.
const (
	StateActive       = "active"
	StateExpiringSoon = "expiring_soon"
	StateExpired      = "expired"
)

// PolicyMetrics tracks policy operations and lifecycle state.
//
// Metrics:
//   - <ns>_<sub>_policy_operations_total: service operations by operation, outcome
//   - <ns>_<sub>_policy_validation_failures_total: rejected fields
//   - <ns>_<sub>_policies: policies by lifecycle state, refreshed by the sweep
//   - <ns>_<sub>_sweep_runs_total: sweep runs by outcome
//   - <ns>_<sub>_sweep_duration_seconds: sweep duration
//   - <ns>_<sub>_sweep_last_success_timestamp_seconds: last successful sweep
type PolicyMetrics struct {
	operationsTotal    *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	policies           *prometheus.GaugeVec

	sweepRuns        *prometheus.CounterVec
	sweepDuration    prometheus.Histogram
	sweepLastSuccess prometheus.Gauge
}

// NewPolicyMetrics creates and registers policy metrics.
func NewPolicyMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PolicyMetrics {
	pm := &PolicyMetrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_operations_total",
				Help:      "Total number of policy operations by outcome",
			},
			[]string{"operation", "outcome"},
		),

		validationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_validation_failures_total",
				Help:      "Total number of rejected policy fields",
			},
			[]string{"field"},
		),

		policies: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policies",
				Help:      "Number of stored policies by lifecycle state",
			},
			[]string{"state"},
		),

		sweepRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sweep_runs_total",
				Help:      "Total number of lifecycle sweeps by outcome",
			},
			[]string{"outcome"},
		),

		sweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sweep_duration_seconds",
				Help:      "Duration of lifecycle sweeps in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),

		sweepLastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sweep_last_success_timestamp_seconds",
				Help:      "Unix time of the last successful lifecycle sweep",
			},
		),
	}

	registry.MustRegister(
		pm.operationsTotal,
		pm.validationFailures,
		pm.policies,
		pm.sweepRuns,
		pm.sweepDuration,
		pm.sweepLastSuccess,
	)

	return pm
}

// SetCounts sets the lifecycle gauge for every state.
func (pm *PolicyMetrics) SetCounts(active, expiringSoon, expired int) {
	pm.policies.WithLabelValues(StateActive).Set(float64(active))
	pm.policies.WithLabelValues(StateExpiringSoon).Set(float64(expiringSoon))
	pm.policies.WithLabelValues(StateExpired).Set(float64(expired))
}

// RecordSweep records the outcome and duration of a sweep.
func (pm *PolicyMetrics) RecordSweep(success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	pm.sweepRuns.WithLabelValues(outcome).Inc()
	pm.sweepDuration.Observe(duration.Seconds())
	if success {
		pm.sweepLastSuccess.SetToCurrentTime()
	}
}
