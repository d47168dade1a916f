package mockserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts socket traffic on a private registry.
type Metrics struct {
	registry *prometheus.Registry
	sent     *prometheus.CounterVec
	received *prometheus.CounterVec
	clients  prometheus.Gauge
}

// NewMetrics registers the mock server collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoicedash_mock_events_sent_total",
			Help: "Frames written to dashboard clients by event name.",
		}, []string{"event"}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoicedash_mock_events_received_total",
			Help: "Frames read from dashboard clients by event name.",
		}, []string{"event"}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "invoicedash_mock_clients_connected",
			Help: "Open dashboard sockets.",
		}),
	}

	m.registry.MustRegister(
		m.sent,
		m.received,
		m.clients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
