// Package metrics defines Prometheus instrumentation for the notification
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Label values for the status dimension.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// NotifierMetrics contains Prometheus metrics for the change notification
// publisher and its handler dispatch loop.
type NotifierMetrics struct {
	NotificationsPublished *prometheus.CounterVec
	PublishDuration        *prometheus.HistogramVec
	HandlerRetries         *prometheus.CounterVec
	HandlerFailures        *prometheus.CounterVec
}

// NewNotifierMetrics creates and registers notifier metrics with the given registerer.
func NewNotifierMetrics(registerer prometheus.Registerer) *NotifierMetrics {
	m := &NotifierMetrics{
		NotificationsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "querydeck_notifications_published_total",
				Help: "Total number of change notifications published to Redis",
			},
			[]string{"event", "status"},
		),
		PublishDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "querydeck_notification_publish_duration_seconds",
				Help:    "Time to publish a change notification to Redis",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"event"},
		),
		HandlerRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "querydeck_notification_handler_retries_total",
				Help: "Total number of retry attempts for failed notification handlers",
			},
			[]string{"event"},
		),
		HandlerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "querydeck_notification_handler_failures_total",
				Help: "Total number of notification handlers that exhausted all retries",
			},
			[]string{"event"},
		),
	}

	registerer.MustRegister(
		m.NotificationsPublished,
		m.PublishDuration,
		m.HandlerRetries,
		m.HandlerFailures,
	)

	return m
}
