package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the relay.
type Metrics struct {
	EventsTotal          *prometheus.CounterVec
	DeliveriesTotal      *prometheus.CounterVec
	DeliveryDurationSecs *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a Metrics instance backed by its own registry.
func New() *Metrics {
	m := &Metrics{
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sale_notifier_events_total",
			Help: "Inbound webhook events by provider and outcome",
		}, []string{"provider", "outcome"}),
		DeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sale_notifier_deliveries_total",
			Help: "Outbound notification deliveries by sink and outcome",
		}, []string{"sink", "outcome"}),
		DeliveryDurationSecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sale_notifier_delivery_duration_seconds",
			Help:    "Duration of outbound notification deliveries in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"sink"}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(m.EventsTotal, m.DeliveriesTotal, m.DeliveryDurationSecs)

	return m
}

// RecordEvent counts one inbound webhook event.
// Outcomes: rejected, ignored, processed, failed.
func (m *Metrics) RecordEvent(provider, outcome string) {
	m.EventsTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordDelivery counts one sink delivery and its latency.
func (m *Metrics) RecordDelivery(sink string, elapsed time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.DeliveriesTotal.WithLabelValues(sink, outcome).Inc()
	m.DeliveryDurationSecs.WithLabelValues(sink).Observe(elapsed.Seconds())
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
