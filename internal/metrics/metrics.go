// Package metrics provides Prometheus metrics for the workout tracker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	OperationsTotal     *prometheus.CounterVec
	OperationDuration   *prometheus.HistogramVec
	SessionsDiscarded   *prometheus.CounterVec
	SessionsUnplaceable prometheus.Counter
	NormalizeFailures   prometheus.Counter
	SnapshotsTotal      *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workout_week_operations_total",
				Help: "Week operations by name and outcome.",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workout_week_operation_duration_seconds",
				Help:    "Week operation duration including repository calls.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		SessionsDiscarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workout_sessions_discarded_total",
				Help: "Sessions discarded during reconciliation by rule.",
			},
			[]string{"rule"},
		),
		SessionsUnplaceable: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "workout_sessions_unplaceable_total",
				Help: "Sessions that could not be assigned to a day.",
			},
		),
		NormalizeFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "workout_week_normalize_failures_total",
				Help: "Weekly documents whose day order could not be repaired in place.",
			},
		),
		SnapshotsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workout_week_snapshots_total",
				Help: "Snapshots written before replacing a weekly document.",
			},
			[]string{"status"},
		),
		registry: reg,
	}

	reg.MustRegister(m.OperationsTotal)
	reg.MustRegister(m.OperationDuration)
	reg.MustRegister(m.SessionsDiscarded)
	reg.MustRegister(m.SessionsUnplaceable)
	reg.MustRegister(m.NormalizeFailures)
	reg.MustRegister(m.SnapshotsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordOperation counts one operation and its duration.
func (m *Metrics) RecordOperation(operation, status string, seconds float64) {
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordDiscarded adds n discarded sessions under rule.
func (m *Metrics) RecordDiscarded(rule string, n int) {
	m.SessionsDiscarded.WithLabelValues(rule).Add(float64(n))
}

// RecordUnplaceable adds n unplaceable sessions.
func (m *Metrics) RecordUnplaceable(n int) {
	m.SessionsUnplaceable.Add(float64(n))
}

// RecordNormalizeFailure counts a failed in-place repair.
func (m *Metrics) RecordNormalizeFailure() {
	m.NormalizeFailures.Inc()
}

// RecordSnapshot counts a snapshot attempt.
func (m *Metrics) RecordSnapshot(status string) {
	m.SnapshotsTotal.WithLabelValues(status).Inc()
}
