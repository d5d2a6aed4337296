package vectorstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationDuration tracks vector store call latency.
	// Labels: backend (chromem, qdrant, memory), operation (upsert, query, delete)
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vectord",
			Subsystem: "vectorstore",
			Name:      "operation_duration_seconds",
			Help:      "Duration of vector store operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	// OperationsTotal counts vector store calls.
	// Labels: backend, operation, result (success, error)
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vectord",
			Subsystem: "vectorstore",
			Name:      "operations_total",
			Help:      "Total number of vector store operations",
		},
		[]string{"backend", "operation", "result"},
	)
)

func observe(backend, operation string, start time.Time, err error) {
	OperationDuration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
	result := "success"
	if err != nil {
		result = "error"
	}
	OperationsTotal.WithLabelValues(backend, operation, result).Inc()
}
