package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics for the action logger.
type Metrics struct {
	// Pipeline metrics
	EntriesWrittenTotal *prometheus.CounterVec
	EntriesDroppedTotal prometheus.Counter
	WriteFailuresTotal  prometheus.Counter
	QueueDepth          prometheus.Gauge

	// Interceptor metrics
	InterceptsTotal      *prometheus.CounterVec
	InterceptPanicsTotal prometheus.Counter

	// Operator API metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Retention metrics
	CleanupDeletedTotal prometheus.Counter
	CleanupRunsTotal    *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all metrics on the given registry.
// A nil registry gets a fresh one (useful in tests).
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		EntriesWrittenTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actionlog_entries_written_total",
				Help: "Audit log entries successfully persisted",
			},
			[]string{"action_type", "risk_level"},
		),
		EntriesDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "actionlog_entries_dropped_total",
				Help: "Audit log entries dropped because the pipeline buffer was full",
			},
		),
		WriteFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "actionlog_write_failures_total",
				Help: "Deferred inserts that failed (at-most-once, not retried)",
			},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "actionlog_pipeline_queue_depth",
				Help: "Entries currently buffered in the write pipeline",
			},
		),
		InterceptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actionlog_intercepts_total",
				Help: "Interceptor phase invocations",
			},
			[]string{"phase", "logged"},
		),
		InterceptPanicsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "actionlog_intercept_panics_total",
				Help: "Panics recovered inside the interceptor",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actionlog_http_requests_total",
				Help: "Operator API requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "actionlog_http_request_duration_seconds",
				Help:    "Operator API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		CleanupDeletedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "actionlog_cleanup_deleted_total",
				Help: "Entries removed by retention cleanup",
			},
		),
		CleanupRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actionlog_cleanup_runs_total",
				Help: "Retention cleanup passes",
			},
			[]string{"outcome"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.EntriesWrittenTotal,
		m.EntriesDroppedTotal,
		m.WriteFailuresTotal,
		m.QueueDepth,
		m.InterceptsTotal,
		m.InterceptPanicsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CleanupDeletedTotal,
		m.CleanupRunsTotal,
	)

	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
