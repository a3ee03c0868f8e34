package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	deliveriesTotal  *prometheus.CounterVec
	deliveryDuration *prometheus.HistogramVec
)

// InitPrometheusMetrics registers the delivery metrics. Call once from
// main before any delivery runs.
func InitPrometheusMetrics() {
	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trackverse",
			Name:      "webhook_deliveries_total",
			Help:      "Total webhook delivery attempts by event and outcome.",
		},
		[]string{"event", "status"},
	)
	deliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trackverse",
			Name:      "webhook_delivery_duration_seconds",
			Help:      "Histogram of webhook delivery durations in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"event"},
	)
	prometheus.MustRegister(deliveriesTotal, deliveryDuration)
}

// observeDelivery records one finished attempt. No-op when metrics are
// not registered (unit tests).
func observeDelivery(event, status string, durationMs int64) {
	if deliveriesTotal == nil || deliveryDuration == nil {
		return
	}
	deliveriesTotal.WithLabelValues(event, status).Inc()
	deliveryDuration.WithLabelValues(event).Observe(float64(durationMs) / 1000.0)
}
