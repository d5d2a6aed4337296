package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal counts searches.
	// Labels: scope (index, project), result (success, error kind)
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vectord",
			Subsystem: "search",
			Name:      "queries_total",
			Help:      "Total number of searches",
		},
		[]string{"scope", "result"},
	)

	// QueryDuration tracks search latency.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vectord",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Duration of searches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"scope"},
	)

	// IndexFailuresTotal counts per-index failures absorbed by project search.
	IndexFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vectord",
			Subsystem: "search",
			Name:      "index_failures_total",
			Help:      "Total number of index queries that failed during project search",
		},
	)

	// OrphansTotal counts vector hits with no chunk row.
	OrphansTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vectord",
			Subsystem: "search",
			Name:      "orphans_total",
			Help:      "Total number of vector hits dropped for lacking a chunk row",
		},
	)
)
