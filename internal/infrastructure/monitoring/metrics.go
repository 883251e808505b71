// Package monitoring collects Prometheus metrics for the agent: command
// throughput, extraction latency, snapshot cache effectiveness, and channel
// health.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors, registered on a private registry
// so multiple instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	CommandsTotal      *prometheus.CounterVec
	CommandDuration    *prometheus.HistogramVec
	ExtractionDuration *prometheus.HistogramVec
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	Reconnects         prometheus.Counter
	FrameBytes         *prometheus.CounterVec
	UploadFallbacks    prometheus.Counter
	DiagRequests       *prometheus.CounterVec
	DiagDuration       *prometheus.HistogramVec
	Uptime             prometheus.Gauge

	startTime time.Time
}

// NewMetrics creates a metrics collector with its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry:  registry,
		startTime: time.Now(),

		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_commands_total",
				Help: "Total commands processed, by command and outcome",
			},
			[]string{"command", "status"},
		),
		CommandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_command_duration_seconds",
				Help:    "Command duration end to end",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"command"},
		),
		ExtractionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_extraction_duration_seconds",
				Help:    "Element tree extraction duration, by backend",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"backend"},
		),
		CacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "agent_snapshot_cache_hits_total",
				Help: "Snapshot cache hits",
			},
		),
		CacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "agent_snapshot_cache_misses_total",
				Help: "Snapshot cache misses",
			},
		),
		Reconnects: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "agent_channel_reconnects_total",
				Help: "Successful channel reconnects",
			},
		),
		FrameBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_frame_bytes_total",
				Help: "Bulk frame bytes shipped, by payload kind",
			},
			[]string{"payload_kind"},
		),
		UploadFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "agent_upload_fallbacks_total",
				Help: "Bulk payloads served through the upload fallback",
			},
		),
		DiagRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_diag_requests_total",
				Help: "Diagnostics endpoint requests, by path and status",
			},
			[]string{"path", "status"},
		),
		DiagDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_diag_request_duration_seconds",
				Help:    "Diagnostics endpoint request duration",
				Buckets: []float64{.001, .005, .01, .05, .1, .5},
			},
			[]string{"path"},
		),
		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "agent_uptime_seconds",
				Help: "Agent uptime",
			},
		),
	}
	return m
}

// Registry exposes the backing registry for the metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveCommand records one processed command's duration.
func (m *Metrics) ObserveCommand(command string, d time.Duration) {
	m.CommandDuration.WithLabelValues(command).Observe(d.Seconds())
}

// CommandResult counts one command outcome.
func (m *Metrics) CommandResult(command, status string) {
	m.CommandsTotal.WithLabelValues(command, status).Inc()
}

// ObserveExtraction records one extraction pass.
func (m *Metrics) ObserveExtraction(backend string, d time.Duration) {
	m.ExtractionDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// CacheHit counts a snapshot served from the cache.
func (m *Metrics) CacheHit() { m.CacheHits.Inc() }

// CacheMiss counts a snapshot that required extraction.
func (m *Metrics) CacheMiss() { m.CacheMisses.Inc() }

// Reconnect counts a successful channel reconnect.
func (m *Metrics) Reconnect() { m.Reconnects.Inc() }

// AddFrameBytes accounts bulk bytes shipped on the binary channel.
func (m *Metrics) AddFrameBytes(payloadKind string, n int) {
	m.FrameBytes.WithLabelValues(payloadKind).Add(float64(n))
}

// UploadFallback counts one payload pushed through the upload path.
func (m *Metrics) UploadFallback() { m.UploadFallbacks.Inc() }

// TickUptime refreshes the uptime gauge; call it from a periodic task.
func (m *Metrics) TickUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}
