// Package metrics exposes Prometheus instrumentation for the monitor.
// All methods are safe on a nil *Metrics so components can run uninstrumented.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector, registered on a private registry
type Metrics struct {
	registry *prometheus.Registry

	FetchTotal    *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	RejectedRows  *prometheus.CounterVec
	Envelopes     *prometheus.CounterVec
	Reconnects    prometheus.Counter
	PushStatus    prometheus.Gauge
	SignalBuffer  prometheus.Gauge
}

// New creates and registers all monitor metrics
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		FetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_fetch_total",
				Help: "Backend fetches by resource and result",
			},
			[]string{"resource", "result"},
		),

		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "monitor_fetch_duration_seconds",
				Help:    "Backend fetch latency in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"resource"},
		),

		RejectedRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_rejected_rows_total",
				Help: "Polled rows dropped for failing validation, by resource",
			},
			[]string{"resource"},
		),

		Envelopes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_push_envelopes_total",
				Help: "Push envelopes by type and handling result",
			},
			[]string{"type", "result"},
		),

		Reconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "monitor_push_reconnects_total",
				Help: "Reconnect attempts scheduled on the push channel",
			},
		),

		PushStatus: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "monitor_push_status",
				Help: "Push channel status (0 idle, 1 connecting, 2 open, 3 closed, 4 failed)",
			},
		),

		SignalBuffer: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "monitor_signal_buffer_size",
				Help: "Signals currently held in the live buffer",
			},
		),
	}

	m.registry.MustRegister(
		m.FetchTotal,
		m.FetchDuration,
		m.RejectedRows,
		m.Envelopes,
		m.Reconnects,
		m.PushStatus,
		m.SignalBuffer,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveFetch records one fetch of resource
func (m *Metrics) ObserveFetch(resource string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.FetchTotal.WithLabelValues(resource, result).Inc()
	m.FetchDuration.WithLabelValues(resource).Observe(elapsed.Seconds())
}

// ObserveRejected records n invalid rows dropped from a polled resource
func (m *Metrics) ObserveRejected(resource string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RejectedRows.WithLabelValues(resource).Add(float64(n))
}

// ObserveEnvelope records one push envelope
func (m *Metrics) ObserveEnvelope(envelopeType, result string) {
	if m == nil {
		return
	}
	m.Envelopes.WithLabelValues(envelopeType, result).Inc()
}

func (m *Metrics) IncReconnect() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

func (m *Metrics) SetPushStatus(status int) {
	if m == nil {
		return
	}
	m.PushStatus.Set(float64(status))
}

func (m *Metrics) SetSignalBuffer(n int) {
	if m == nil {
		return
	}
	m.SignalBuffer.Set(float64(n))
}
