// Package metrics provides Prometheus instrumentation for the Flagwise
// moderation service. It exposes counters for check outcomes, a histogram
// for check latency, and gauges for registry size and event-stream clients.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ChecksTotal counts completed moderation checks, labeled by outcome:
	// "valid", "violated", "cached" or "unavailable".
	ChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flagwise_checks_total",
		Help: "Total number of moderation checks by outcome",
	}, []string{"outcome"})

	// CheckDuration records end-to-end check latency in seconds, including
	// the completion backend call.
	CheckDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flagwise_check_duration_seconds",
		Help:    "Moderation check latency in seconds",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	})

	// CompletionErrors counts failed completion backend calls (transport
	// errors, timeouts, malformed responses).
	CompletionErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flagwise_completion_errors_total",
		Help: "Total number of failed completion backend calls",
	})

	// Communities tracks the current number of registered communities.
	Communities = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flagwise_communities",
		Help: "Current number of registered communities",
	})

	// EventClients tracks the current number of WebSocket event-stream
	// clients.
	EventClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flagwise_event_clients",
		Help: "Current number of connected event-stream clients",
	})
)

func init() {
	prometheus.MustRegister(
		ChecksTotal,
		CheckDuration,
		CompletionErrors,
		Communities,
		EventClients,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
