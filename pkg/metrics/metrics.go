// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OrderMetrics counts broker-facing work.
type OrderMetrics struct {
	Messages    *prometheus.CounterVec
	Settlements *prometheus.CounterVec
}

// NewOrderMetrics registers the order-service collectors with the default
// registry.
func NewOrderMetrics(service string) *OrderMetrics {
	messages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ordersvc",
		Subsystem: service,
		Name:      "messages_total",
		Help:      "Broker messages handled, by pattern and outcome.",
	}, []string{"pattern", "outcome"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ordersvc",
		Subsystem: service,
		Name:      "settlements_total",
		Help:      "Payment settlement events, by result.",
	}, []string{"result"})

	prometheus.MustRegister(messages, settlements)
	return &OrderMetrics{Messages: messages, Settlements: settlements}
}

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
