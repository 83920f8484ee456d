package client

import (
	"github.com/prometheus/client_golang/prometheus"

	"nostrcore/internal/relay"
)

// Metrics is the small set of gauges/counters the facade keeps current
// against a caller-supplied registerer. A nil Registerer means "don't
// register" — every method is nil-safe so callers
// that don't care about Prometheus can simply not build one.
type Metrics struct {
	reliability *prometheus.GaugeVec
	publishes   *prometheus.CounterVec
	queueSize   prometheus.Gauge
}

// NewMetrics constructs and registers the facade's metrics against reg.
// A nil reg skips registration: the collectors are still built and updated
// but are not exposed through any registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reliability: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relay_reliability_score",
			Help: "Current reliability score (0-100) per relay URL.",
		}, []string{"url"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_publish_total",
			Help: "Publish attempts per relay URL, labeled by outcome.",
		}, []string{"url", "outcome"}),
		queueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_queue_size",
			Help: "Current number of events held in the outbox queue.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.reliability, m.publishes, m.queueSize)
	}
	return m
}

func (m *Metrics) recordReliability(relays []*relay.Relay) {
	if m == nil {
		return
	}
	for _, r := range relays {
		m.reliability.WithLabelValues(r.URL).Set(r.ReliabilityScore())
	}
}

func (m *Metrics) recordPublish(url string, success bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.publishes.WithLabelValues(url, outcome).Inc()
}

func (m *Metrics) recordQueueSize(size int) {
	if m == nil {
		return
	}
	m.queueSize.Set(float64(size))
}
