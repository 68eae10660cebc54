package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Tyrowin/teamchat/internal/chat"
)

// Metrics exposes fan-out and connection counters. It implements
// chat.Observer so the dispatcher can report delivery outcomes directly.
type Metrics struct {
	registry *prometheus.Registry

	eventsPublished *prometheus.CounterVec
	deliveries      *prometheus.CounterVec
	fanout          prometheus.Histogram
	connections     prometheus.Gauge
	rateLimited     *prometheus.CounterVec
}

var _ chat.Observer = (*Metrics)(nil)

// NewMetrics creates the collectors on a private registry, together with the
// standard Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamchat",
			Name:      "events_published_total",
			Help:      "Channel events published, by kind.",
		}, []string{"kind"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamchat",
			Name:      "event_deliveries_total",
			Help:      "Per-subscriber delivery outcomes, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		fanout: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "teamchat",
			Name:      "event_fanout_subscribers",
			Help:      "Number of subscribers an event was offered to.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 1000},
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "teamchat",
			Name:      "websocket_connections",
			Help:      "Currently registered WebSocket connections.",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamchat",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by rate limiting, by surface.",
		}, []string{"surface"}),
	}

	m.registry.MustRegister(
		m.eventsPublished,
		m.deliveries,
		m.fanout,
		m.connections,
		m.rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Published implements chat.Observer.
func (m *Metrics) Published(ev chat.Event, subscribers int) {
	m.eventsPublished.WithLabelValues(ev.Kind.String()).Inc()
	m.fanout.Observe(float64(subscribers))
}

// Delivered implements chat.Observer.
func (m *Metrics) Delivered(_ chat.ConnectionID, ev chat.Event) {
	m.deliveries.WithLabelValues(ev.Kind.String(), "delivered").Inc()
}

// Dropped implements chat.Observer.
func (m *Metrics) Dropped(_ chat.ConnectionID, ev chat.Event) {
	m.deliveries.WithLabelValues(ev.Kind.String(), "dropped").Inc()
}

func (m *Metrics) sendBufferFull(ev chat.Event) {
	m.deliveries.WithLabelValues(ev.Kind.String(), "send_buffer_full").Inc()
}

func (m *Metrics) connectionOpened() { m.connections.Inc() }
func (m *Metrics) connectionClosed() { m.connections.Dec() }

func (m *Metrics) rejected(surface string) {
	m.rateLimited.WithLabelValues(surface).Inc()
}
