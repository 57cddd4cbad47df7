// Package metrics holds the Prometheus collectors shared by the api and the workers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	messagesPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qbcart_messages_published_total",
			Help: "Messages handed to the broker",
		},
		[]string{"queue"},
	)

	messagesDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qbcart_messages_dropped_total",
			Help: "Messages lost before reaching the broker",
		},
		[]string{"queue", "reason"},
	)

	messagesConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qbcart_messages_consumed_total",
			Help: "Messages settled by a consumer, by outcome",
		},
		[]string{"queue", "outcome"},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qbcart_notifications_total",
			Help: "Emails attempted, by kind and result",
		},
		[]string{"kind", "result"},
	)

	reconcilerOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qbcart_reconciler_operations_total",
			Help: "Cart and order transitions, by outcome",
		},
		[]string{"operation", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		messagesPublishedTotal,
		messagesDroppedTotal,
		messagesConsumedTotal,
		notificationsTotal,
		reconcilerOpsTotal,
	)
}

func Handler() http.Handler { return promhttp.Handler() }

func RecordPublished(queue string) { messagesPublishedTotal.WithLabelValues(queue).Inc() }

func RecordDropped(queue, reason string) { messagesDroppedTotal.WithLabelValues(queue, reason).Inc() }

func RecordConsumed(queue, outcome string) {
	messagesConsumedTotal.WithLabelValues(queue, outcome).Inc()
}

func RecordNotification(kind string, ok bool) {
	result := "sent"
	if !ok {
		result = "failed"
	}
	notificationsTotal.WithLabelValues(kind, result).Inc()
}

func RecordOperation(operation, outcome string) {
	reconcilerOpsTotal.WithLabelValues(operation, outcome).Inc()
}
