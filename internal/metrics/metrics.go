// Package metrics defines the Prometheus collectors for graph operations.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the operation collectors.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	conflicts  *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg creates a private
// registry, which keeps tests independent.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "graf_operations_total",
			Help: "Operations handled, by action and result status.",
		}, []string{"action", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "graf_operation_duration_seconds",
			Help:    "Time spent dispatching an operation, including store access.",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
		conflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "graf_tx_conflicts_total",
			Help: "Transactions re-run after a uniqueness conflict.",
		}, []string{"action"}),
	}
}

// ObserveOperation records one dispatched operation.
func (m *Metrics) ObserveOperation(action string, status int, elapsed time.Duration) {
	if action == "" {
		action = "none"
	}
	m.operations.WithLabelValues(action, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// ObserveConflict records a retried transaction.
func (m *Metrics) ObserveConflict(action string) {
	m.conflicts.WithLabelValues(action).Inc()
}
