package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcome label values.
const (
	OutcomeSuccess          = "success"
	OutcomeExhausted        = "exhausted"
	OutcomeValidationFailed = "validation_failed"
	OutcomeCancelled        = "cancelled"
)

// Cache event label values.
const (
	CacheEventHit  = "hit"
	CacheEventMiss = "miss"
	CacheEventSet  = "set"
)

// Metrics collects application metrics. All collectors live on a private
// registry so independent instances never collide. A nil *Metrics is a
// no-op recorder, which keeps tests quiet.
type Metrics struct {
	registry *prometheus.Registry

	// Request metrics
	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Provider metrics
	DispatchCount   *prometheus.CounterVec
	ProviderHealthy *prometheus.GaugeVec

	// Cache metrics
	CacheEvents *prometheus.CounterVec
}

// NewMetrics creates a metrics collector with its own Prometheus registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		RequestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "chatmux",
				Name:      "requests_total",
				Help:      "Chat requests by mode and terminal outcome",
			},
			[]string{"mode", "outcome"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "chatmux",
				Name:      "request_duration_seconds",
				Help:      "End-to-end chat request duration in seconds",
				Buckets:   []float64{.005, .025, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"mode"},
		),

		DispatchCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "chatmux",
				Name:      "provider_dispatches_total",
				Help:      "Provider dispatch attempts by provider and result",
			},
			[]string{"provider", "result"},
		),

		ProviderHealthy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "chatmux",
				Name:      "provider_healthy",
				Help:      "Whether a provider is currently considered healthy (1) or not (0)",
			},
			[]string{"provider"},
		),

		CacheEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "chatmux",
				Name:      "cache_events_total",
				Help:      "Response cache events (hit, miss, set)",
			},
			[]string{"event"},
		),
	}

	m.registry.MustRegister(
		m.RequestCount,
		m.RequestDuration,
		m.DispatchCount,
		m.ProviderHealthy,
		m.CacheEvents,
	)

	return m
}

// RecordRequest counts one terminal request outcome
func (m *Metrics) RecordRequest(mode, outcome string) {
	if m == nil {
		return
	}
	m.RequestCount.WithLabelValues(mode, outcome).Inc()
}

// ObserveRequestDuration records an end-to-end request duration
func (m *Metrics) ObserveRequestDuration(mode string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(mode).Observe(seconds)
}

// RecordDispatch counts one provider dispatch attempt; result is "success"
// or the provider error kind
func (m *Metrics) RecordDispatch(provider, result string) {
	if m == nil {
		return
	}
	m.DispatchCount.WithLabelValues(provider, result).Inc()
}

// SetProviderHealthy reflects a provider health transition on the gauge
func (m *Metrics) SetProviderHealthy(provider string, healthy bool) {
	if m == nil {
		return
	}
	v := 0.0
	if healthy {
		v = 1.0
	}
	m.ProviderHealthy.WithLabelValues(provider).Set(v)
}

// RecordCacheEvent counts one cache event
func (m *Metrics) RecordCacheEvent(event string) {
	if m == nil {
		return
	}
	m.CacheEvents.WithLabelValues(event).Inc()
}

// Handler returns the HTTP handler serving this collector's registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
