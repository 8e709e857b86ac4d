// Package metrics exposes Prometheus instrumentation for the coordinator.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "streamflow"

// Metrics holds the service collectors.
type Metrics struct {
	Live        prometheus.Gauge
	Viewers     prometheus.Gauge
	Subscribers prometheus.Gauge
	Decisions   *prometheus.CounterVec
	Broadcasts  *prometheus.CounterVec
	Dropped     prometheus.Counter
	Logins      *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Live: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "live",
			Help:      "1 while the stream is live.",
		}),
		Viewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "viewers",
			Help:      "Viewer count of the current live session.",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Connected WebSocket subscribers.",
		}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "publish_decisions_total",
			Help:      "Publish authorization outcomes.",
		}, []string{"outcome", "reason"}),
		Broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "broadcasts_total",
			Help:      "Events fanned out to subscribers.",
		}, []string{"kind"}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "dropped_subscribers_total",
			Help:      "Subscribers dropped after a failed or timed out send.",
		}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admin",
			Name:      "logins_total",
			Help:      "Admin login attempts.",
		}, []string{"outcome"}),
	}

	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.registry.MustRegister(m.Collectors()...)
	return m
}

// Collectors lists the service collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Live,
		m.Viewers,
		m.Subscribers,
		m.Decisions,
		m.Broadcasts,
		m.Dropped,
		m.Logins,
	}
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// SetStream records liveness and viewer count.
func (m *Metrics) SetStream(live bool, viewers int) {
	if m == nil {
		return
	}
	if live {
		m.Live.Set(1)
	} else {
		m.Live.Set(0)
	}
	m.Viewers.Set(float64(viewers))
}

// PublishDecision counts a gate decision.
func (m *Metrics) PublishDecision(allowed bool, reason string) {
	if m == nil {
		return
	}
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.Decisions.WithLabelValues(outcome, reason).Inc()
}

// SetSubscribers records the connected subscriber count.
func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.Subscribers.Set(float64(n))
}

// Broadcast counts one fan-out of kind.
func (m *Metrics) Broadcast(kind string) {
	if m == nil {
		return
	}
	m.Broadcasts.WithLabelValues(kind).Inc()
}

// SubscriberDropped counts a dropped subscriber.
func (m *Metrics) SubscriberDropped() {
	if m == nil {
		return
	}
	m.Dropped.Inc()
}

// Login counts an admin login attempt.
func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(outcome).Inc()
}
