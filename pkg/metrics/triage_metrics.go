// Package metrics exposes prometheus instrumentation for the pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Classification outcomes.
const (
	OutcomeClassified = "classified"
	OutcomeFailed     = "failed"
	OutcomeUnparsed   = "unparsed"
)

var (
	// ClassificationCount counts per-message classification outcomes.
	ClassificationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_classification_count",
			Help: "Total number of messages classified, by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	// ProviderCallLatency measures one model provider round trip.
	ProviderCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "triage_provider_call_latency_ms",
			Help:    "Model provider call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"provider", "status"},
	)

	// FetchLatency measures one mailbox fetch round trip.
	FetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "triage_fetch_latency_ms",
			Help:    "Mailbox fetch latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(50, 2, 10), // 50ms to ~50s
		},
		[]string{"provider", "status"},
	)

	// HTTPRequestDuration measures inbound HTTP request handling time.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "triage_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// BatchSize observes how many messages each batch run classified.
	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "triage_batch_size",
			Help:    "Number of messages per classification batch",
			Buckets: prometheus.LinearBuckets(0, 5, 8), // 0 to 35
		},
	)
)

// RecordClassification increments the outcome counter for one message.
func RecordClassification(provider, outcome string) {
	ClassificationCount.WithLabelValues(provider, outcome).Inc()
}

// RecordProviderCall records one model provider round trip.
func RecordProviderCall(provider, status string, duration time.Duration) {
	ProviderCallLatency.WithLabelValues(provider, status).Observe(float64(duration.Milliseconds()))
}

// RecordFetch records one mailbox fetch round trip.
func RecordFetch(provider, status string, duration time.Duration) {
	FetchLatency.WithLabelValues(provider, status).Observe(float64(duration.Milliseconds()))
}

// RecordHTTPRequest records one inbound HTTP request.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
