package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query outcomes used as the "outcome" label of QueriesTotal.
const (
	OutcomeResponse = "response"
	OutcomeTimeout  = "timeout"
	OutcomeError    = "error"
)

var (
	// QueriesTotal tracks queries sent to servers under test
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dnsdiff_queries_total",
		Help: "Total number of queries sent to servers under test",
	}, []string{"implementation", "outcome"})

	// QueryDuration tracks round trip time per implementation
	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dnsdiff_query_duration_seconds",
		Help:    "Histogram of query round trip duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"implementation"})

	// ServerRestarts counts forced restarts after a non-message response
	ServerRestarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dnsdiff_server_restarts_total",
		Help: "Total number of server restarts triggered by missing responses",
	}, []string{"implementation"})

	// DifferencesTotal counts recorded differences
	DifferencesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dnsdiff_differences_total",
		Help: "Total number of queries on which implementations disagreed",
	})

	// TestsSkipped counts tests dropped from a run
	TestsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dnsdiff_tests_skipped_total",
		Help: "Total number of tests skipped, by reason",
	}, []string{"reason"})

	// ActiveWorkers tracks implementations currently being prepared or queried
	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dnsdiff_active_workers",
		Help: "Number of active per-implementation workers",
	})
)
