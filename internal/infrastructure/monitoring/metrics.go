package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the command core.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Command execution, labeled by backend ("remote" or "workspace")
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec

	// Session pool
	SessionsActive prometheus.Gauge
	Reconnects     prometheus.Counter
	SessionEvicted *prometheus.CounterVec

	// Sandbox
	PathsClamped prometheus.Counter
}

// NewMetrics creates a metrics collector on a fresh registry-backed set.
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

// NewMetricsFor creates a metrics collector registered against reg,
// so tests can use isolated registries.
func NewMetricsFor(reg prometheus.Registerer) *Metrics {
	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commandx_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "commandx_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commandx_commands_total",
				Help: "Commands executed, by backend and outcome",
			},
			[]string{"backend", "outcome"},
		),
		CommandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "commandx_command_duration_seconds",
				Help:    "Command execution wall time in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
			},
			[]string{"backend"},
		),
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "commandx_ssh_sessions_active",
				Help: "Live SSH sessions currently held by the pool",
			},
		),
		Reconnects: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "commandx_ssh_reconnects_total",
				Help: "SSH dial attempts, including retries",
			},
		),
		SessionEvicted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commandx_ssh_sessions_evicted_total",
				Help: "Pool evictions by reason",
			},
			[]string{"reason"},
		),
		PathsClamped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "commandx_sandbox_paths_clamped_total",
				Help: "Caller paths that resolved outside a workspace root and were clamped",
			},
		),
	}
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordCommand records one executed command.
func (m *Metrics) RecordCommand(backend, outcome string, duration time.Duration) {
	m.CommandsTotal.WithLabelValues(backend, outcome).Inc()
	m.CommandDuration.WithLabelValues(backend).Observe(duration.Seconds())
}
