package chat

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Delivery failure reasons (label values, wire-stable).
const (
	reasonClosed = "listener_closed"
	reasonSlow   = "queue_full"
)

// Metrics holds the chat subsystem's Prometheus instruments.
// All Registry call sites tolerate a nil *Metrics so tests can skip it.
type Metrics struct {
	listeners        prometheus.Gauge
	publishes        prometheus.Counter
	deliveries       prometheus.Counter
	deliveryFailures *prometheus.CounterVec
}

// NewMetrics constructs and registers the chat instruments on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		listeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gather_chat_listeners",
			Help: "Currently connected chat stream listeners.",
		}),
		publishes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gather_chat_publishes_total",
			Help: "Payloads published to the broadcast registry.",
		}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gather_chat_deliveries_total",
			Help: "Payloads delivered to individual listeners.",
		}),
		deliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gather_chat_delivery_failures_total",
			Help: "Per-listener delivery failures, local to the listener.",
		}, []string{"reason"}),
	}

	if reg != nil {
		reg.MustRegister(m.listeners, m.publishes, m.deliveries, m.deliveryFailures)
	}
	return m
}

func (m *Metrics) listenerAdded() {
	if m == nil {
		return
	}
	m.listeners.Inc()
}

func (m *Metrics) listenerRemoved() {
	if m == nil {
		return
	}
	m.listeners.Dec()
}

func (m *Metrics) published() {
	if m == nil {
		return
	}
	m.publishes.Inc()
}

func (m *Metrics) delivered() {
	if m == nil {
		return
	}
	m.deliveries.Inc()
}

func (m *Metrics) deliveryFailed(reason string) {
	if m == nil {
		return
	}
	m.deliveryFailures.WithLabelValues(reason).Inc()
}
