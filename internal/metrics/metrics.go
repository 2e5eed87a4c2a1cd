// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "linkpage"

var (
	TrackedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracked_events_total",
			Help:      "Total number of tracking events stored, by event type.",
		},
		[]string{"event_type"},
	)

	IgnoredEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ignored_events_total",
			Help:      "Tracking requests acknowledged but not stored, by reason.",
		},
		[]string{"reason"},
	)

	ReportDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_duration_seconds",
			Help:      "Time spent assembling a page analytics report.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	DegradedSections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_degraded_sections_total",
			Help:      "Report sections replaced by their empty value after a query failure.",
		},
		[]string{"section"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"route", "method", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			TrackedEvents,
			IgnoredEvents,
			ReportDuration,
			DegradedSections,
			HTTPRequests,
			HTTPDuration,
		)
	})
}
