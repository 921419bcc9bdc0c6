package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansReceived The total number of decoded scans by gate outcome (counter)
	ScansReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kiosk",
			Name:      "scans_received_total",
			Help:      "The total number of decoded scans by gate outcome",
		},
		[]string{"outcome"},
	)

	// BadgeRequests The total number of finished badge requests by result (counter)
	BadgeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kiosk",
			Name:      "badge_requests_total",
			Help:      "The total number of finished badge requests by result",
		},
		[]string{"result"},
	)

	// BadgeRequestDuration Time spent waiting for the badge backend (histogram)
	BadgeRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "kiosk",
			Name:      "badge_request_duration_seconds",
			Help:      "Time spent waiting for the badge backend",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// BadgesRendered The total number of badge PDFs rendered by the backend (counter)
	BadgesRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "badges",
			Name:      "rendered_total",
			Help:      "The total number of badge PDFs rendered",
		},
		[]string{"endpoint"},
	)

	// MessagesProcessed The total number of processed messages (counter)
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messages",
			Name:      "processed_total",
			Help:      "The total number of processed messages",
		},
		[]string{"topic", "handler"},
	)

	// MessagesProcessingFailed total number of message processing failures (counter)
	MessagesProcessingFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messages",
			Name:      "processing_failed_total",
			Help:      "The total number of message processing failures",
		},
		[]string{"topic", "handler"},
	)

	// MessagesProcessingDuration The total time spent processing messages (summary with quantiles 0.5, 0.9, and 0.99)
	MessagesProcessingDuration = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace:  "messages",
			Name:       "processing_duration_seconds",
			Help:       "The total time spent processing messages",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"topic", "handler"},
	)
)
