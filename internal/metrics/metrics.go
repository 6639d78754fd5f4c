// Package metrics exposes Prometheus counters for the identity core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors recorded by services and the notifier.
type Metrics struct {
	registry *prometheus.Registry

	// AuthEvents counts identity operations by operation and outcome,
	// e.g. op="login", outcome="invalid_credentials".
	AuthEvents *prometheus.CounterVec

	// Notifications counts verification mail dispatches by outcome:
	// sent, failed, dropped.
	Notifications *prometheus.CounterVec

	// NotifyQueueDepth is the number of messages waiting for a worker.
	NotifyQueueDepth prometheus.Gauge
}

// New registers the collectors on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		AuthEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netsync",
			Subsystem: "auth",
			Name:      "events_total",
			Help:      "Identity operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netsync",
			Subsystem: "notify",
			Name:      "messages_total",
			Help:      "Verification messages by dispatch outcome.",
		}, []string{"outcome"}),
		NotifyQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "netsync",
			Subsystem: "notify",
			Name:      "queue_depth",
			Help:      "Verification messages waiting for a worker.",
		}),
	}
	reg.MustRegister(m.AuthEvents, m.Notifications, m.NotifyQueueDepth)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Auth records an identity operation outcome. It is safe on a nil receiver.
func (m *Metrics) Auth(op, outcome string) {
	if m == nil {
		return
	}
	m.AuthEvents.WithLabelValues(op, outcome).Inc()
}

// Notification records a dispatch outcome. It is safe on a nil receiver.
func (m *Metrics) Notification(outcome string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(outcome).Inc()
}

// QueueDepth sets the current notifier backlog. It is safe on a nil receiver.
func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.NotifyQueueDepth.Set(float64(n))
}
