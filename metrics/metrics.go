// Package metrics exposes the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsCreated counts in-app notifications written, by type.
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placeshare_notifications_created_total",
			Help: "In-app notifications written, by type",
		},
		[]string{"type"},
	)

	// PushDeliveries counts web push attempts, by result (sent, expired, failed).
	PushDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placeshare_push_deliveries_total",
			Help: "Web push delivery attempts, by result",
		},
		[]string{"result"},
	)

	// FanoutFailures counts follower notifications that could not be written after a place was created.
	FanoutFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "placeshare_fanout_failures_total",
			Help: "Errors swallowed while notifying followers of a new place",
		},
	)

	// GeocodeRequests counts address resolutions, by result (ok, zero_results, error).
	GeocodeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placeshare_geocode_requests_total",
			Help: "Address geocoding requests, by result",
		},
		[]string{"result"},
	)

	// MediaOperations counts media host calls, by operation and result.
	MediaOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placeshare_media_operations_total",
			Help: "Media host uploads and deletions, by operation and result",
		},
		[]string{"operation", "result"},
	)

	// APIRequestDuration tracks HTTP handler latency, by route, method and response code.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "placeshare_api_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "code"},
	)
)
