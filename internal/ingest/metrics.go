package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FilesTotal counts ingestions.
	// Labels: source (file, text), result (success, error kind)
	FilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vectord",
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Total number of ingestion attempts",
		},
		[]string{"source", "result"},
	)

	// ChunksTotal counts chunks written.
	ChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vectord",
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Total number of chunks persisted",
		},
	)

	// Duration tracks end-to-end ingestion latency.
	Duration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vectord",
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Duration of ingestions in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"source"},
	)

	// ReconcileTotal counts intents handled by the reconciler.
	// Labels: outcome (completed, removed, failed)
	ReconcileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vectord",
			Subsystem: "ingest",
			Name:      "reconciled_intents_total",
			Help:      "Total number of pending intents resolved by the reconciler",
		},
		[]string{"outcome"},
	)

	// OrphanVectorsTotal counts vectors deleted because no chunk row referenced them.
	OrphanVectorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vectord",
			Subsystem: "ingest",
			Name:      "orphan_vectors_deleted_total",
			Help:      "Total number of orphaned vectors removed",
		},
	)
)
