// Package metrics defines Prometheus collectors for SDK instrumentation
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "varinode_api_requests_total",
			Help: "Total number of Varinode API requests",
		},
		[]string{"method", "status"},
	)

	APIRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "varinode_api_request_duration_seconds",
			Help:    "Duration of Varinode API round trips in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	CartSavesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "varinode_cart_saves_total",
			Help: "Total number of cart save operations",
		},
		[]string{"status"},
	)

	OrdersSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "varinode_orders_submitted_total",
			Help: "Total number of order submissions",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		APIRequestsTotal,
		APIRequestDurationSeconds,
		CartSavesTotal,
		OrdersSubmittedTotal,
	)
}

// RecordAPIRequest records a completed API round trip.
func RecordAPIRequest(method, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, status).Inc()
	APIRequestDurationSeconds.WithLabelValues(method).Observe(duration.Seconds())
}
