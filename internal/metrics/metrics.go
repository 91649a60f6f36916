// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Jobs counts implementation jobs reaching a terminal state.
	Jobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "implementation_jobs_total",
			Help: "Total number of implementation jobs by terminal status",
		},
		[]string{"status"},
	)

	// JobDuration observes wall time from job start to terminal state.
	JobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "implementation_job_duration_seconds",
			Help:    "Duration of implementation jobs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	// GeminiRuns counts Gemini CLI invocations by outcome (success, failure, timeout).
	GeminiRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gemini_cli_runs_total",
			Help: "Total number of Gemini CLI runs by outcome",
		},
		[]string{"outcome"},
	)

	// HTTPRequests counts served requests by method and status code.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by method and status code",
		},
		[]string{"method", "code"},
	)
)
