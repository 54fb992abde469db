// Package metrics provides Prometheus metrics collection.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds all Prometheus metrics for the record backend.
type Collector struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Record operation metrics
	RecordOperations *prometheus.CounterVec
	OperationErrors  *prometheus.CounterVec

	// Auth metrics
	AuthFailures prometheus.Counter

	// Task runner metrics
	TaskRuns *prometheus.CounterVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
}

// New creates a collector registered on the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a collector registered on the given registry
// (tests use a private registry to avoid duplicate registration).
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := func(c prometheus.Collector) {
		reg.MustRegister(c)
	}

	m := &Collector{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "recordbase",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "recordbase",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		RecordOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "recordbase",
				Name:      "record_operations_total",
				Help:      "Total record operations by resource and action",
			},
			[]string{"resource", "action"},
		),
		OperationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "recordbase",
				Name:      "operation_errors_total",
				Help:      "Record operation failures by resource and status code",
			},
			[]string{"resource", "code"},
		),
		AuthFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "recordbase",
				Name:      "auth_failures_total",
				Help:      "Failed authentication attempts",
			},
		),
		TaskRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "recordbase",
				Name:      "task_runs_total",
				Help:      "Maintenance task runs by task and outcome",
			},
			[]string{"task", "status"},
		),
		ConfigReloads: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "recordbase",
				Name:      "config_reloads_total",
				Help:      "Successful configuration reloads",
			},
		),
		ConfigReloadErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "recordbase",
				Name:      "config_reload_errors_total",
				Help:      "Failed configuration reloads",
			},
		),
	}

	factory(m.RequestsTotal)
	factory(m.RequestDuration)
	factory(m.RecordOperations)
	factory(m.OperationErrors)
	factory(m.AuthFailures)
	factory(m.TaskRuns)
	factory(m.ConfigReloads)
	factory(m.ConfigReloadErrors)

	return m
}
