// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration on the backend.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "status"},
	)

	// RequestsTotal tracks total HTTP requests on the backend.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// MessagesSent tracks messages accepted by the backend.
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_sent_total",
			Help: "Total messages sent",
		},
		[]string{"sender_type", "priority"},
	)

	// NotificationsCreated tracks notifications derived from sent messages.
	NotificationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Total message notifications created",
		},
	)

	// NotificationPublishFailures tracks notifications the bus rejected.
	NotificationPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_publish_failures_total",
			Help: "Notifications that could not be published to NATS",
		},
	)

	// SSEConnectionsActive tracks open notification streams.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active notification stream connections",
		},
	)

	// NATSPublished tracks notification events acknowledged by JetStream.
	NATSPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_notifications_published_total",
			Help: "Notification events acknowledged by JetStream",
		},
		[]string{"type"},
	)

	// ClientRequestsTotal tracks messaging client calls by outcome.
	ClientRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_client_requests_total",
			Help: "Messaging client requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	// ClientRequestDuration tracks messaging client round trips.
	ClientRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messaging_client_request_duration_seconds",
			Help:    "Messaging client round trip duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)
)

// RecordRequest records metrics for a backend HTTP request.
func RecordRequest(method, route, status string, duration float64) {
	RequestDuration.WithLabelValues(method, route, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, route, status).Inc()
}

// RecordClientCall records one messaging client round trip.
func RecordClientCall(endpoint, outcome string, duration float64) {
	ClientRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	ClientRequestDuration.WithLabelValues(endpoint).Observe(duration)
}

// IncrementSSEConnections increments the active stream connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active stream connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
