package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/catalog"
)

func newTestMetrics(t *testing.T) (*toolMetrics, *metric.ManualReader) {
	t.Helper()
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	return newToolMetrics(mp.Meter(instrumentationName), zap.NewNop()), reader
}

func collectSum(t *testing.T, reader *metric.ManualReader, name string) metricdata.Sum[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, mt := range sm.Metrics {
			if mt.Name != name {
				continue
			}
			sum, ok := mt.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			return sum
		}
	}
	t.Fatalf("metric %s not found", name)
	return metricdata.Sum[int64]{}
}

func total(sum metricdata.Sum[int64]) int64 {
	var n int64
	for _, dp := range sum.DataPoints {
		n += dp.Value
	}
	return n
}

func TestToolMetrics_Outcomes(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.begin(ctx, "index_search")(nil)
	m.begin(ctx, "index_search")(&ToolError{Code: catalog.CodeValidation, Message: "Query is required"})

	calls := collectSum(t, reader, "vectord.mcp.tool.invocations_total")
	assert.EqualValues(t, 2, total(calls))

	outcomes := map[string]int64{}
	for _, dp := range calls.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("outcome"))
		outcomes[v.AsString()] += dp.Value
	}
	assert.Equal(t, map[string]int64{"ok": 1, catalog.CodeValidation: 1}, outcomes)
	assert.EqualValues(t, 1, total(collectSum(t, reader, "vectord.mcp.tool.errors_total")))
}

func TestToolMetrics_InFlight(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	first := m.begin(ctx, "ingest_text")
	m.begin(ctx, "ingest_text")
	first(nil)

	assert.EqualValues(t, 1, total(collectSum(t, reader, "vectord.mcp.tool.active_requests")))
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"success", nil, "ok"},
		{"envelope code", &ToolError{Code: catalog.CodeNotFound}, catalog.CodeNotFound},
		{"wrapped envelope code", fmt.Errorf("tool: %w", &ToolError{Code: catalog.CodeDependency}), catalog.CodeDependency},
		{"timeout", context.DeadlineExceeded, "timeout"},
		{"canceled", context.Canceled, "canceled"},
		{"generic error", errors.New("something went wrong"), "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, outcomeOf(tt.err))
		})
	}
}
