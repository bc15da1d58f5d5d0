// Package metrics exposes Prometheus instrumentation for the webhook-to-light
// pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookRequests counts webhook requests by response status
	// (ok, forbidden, ignored_player, ...).
	WebhookRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_requests_total",
			Help: "Total number of webhook requests by response status",
		},
		[]string{"status"},
	)

	// ProviderDispatches counts provider call outcomes.
	ProviderDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_dispatches_total",
			Help: "Total number of provider dispatches by outcome",
		},
		[]string{"provider", "result"},
	)

	// ProviderDispatchDuration tracks how long provider calls take.
	ProviderDispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_dispatch_duration_seconds",
			Help:    "Duration of provider dispatches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// HistoryRecordsDropped counts dispatch records dropped because the
	// history queue was full.
	HistoryRecordsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "history_records_dropped_total",
			Help: "Total number of dispatch history records dropped on a full queue",
		},
	)
)

// RecordWebhook records one webhook request and the status it was answered with.
func RecordWebhook(status string) {
	WebhookRequests.WithLabelValues(status).Inc()
}

// RecordDispatch records one provider dispatch outcome and its duration.
func RecordDispatch(provider string, success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	ProviderDispatches.WithLabelValues(provider, result).Inc()
	ProviderDispatchDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordHistoryDrop records a dispatch record lost to a full history queue.
func RecordHistoryDrop() {
	HistoryRecordsDropped.Inc()
}
