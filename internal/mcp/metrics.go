package mcp

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/vectord/internal/mcp"

// toolMetrics counts tool calls by tool name and outcome code.
type toolMetrics struct {
	calls    metric.Int64Counter
	failures metric.Int64Counter
	latency  metric.Float64Histogram
	inflight metric.Int64UpDownCounter
}

func newToolMetrics(meter metric.Meter, logger *zap.Logger) *toolMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	warn := func(name string, err error) {
		if err != nil {
			logger.Warn("mcp instrument unavailable", zap.String("instrument", name), zap.Error(err))
		}
	}

	m := &toolMetrics{}
	var err error
	m.calls, err = meter.Int64Counter("vectord.mcp.tool.invocations_total",
		metric.WithDescription("MCP tool calls by tool and outcome"),
		metric.WithUnit("{invocation}"))
	warn("invocations_total", err)

	m.failures, err = meter.Int64Counter("vectord.mcp.tool.errors_total",
		metric.WithDescription("MCP tool calls that returned an envelope error"),
		metric.WithUnit("{error}"))
	warn("errors_total", err)

	m.latency, err = meter.Float64Histogram("vectord.mcp.tool.duration_seconds",
		metric.WithDescription("MCP tool call latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30))
	warn("duration_seconds", err)

	m.inflight, err = meter.Int64UpDownCounter("vectord.mcp.tool.active_requests",
		metric.WithDescription("MCP tool calls in progress"),
		metric.WithUnit("{request}"))
	warn("active_requests", err)
	return m
}

func defaultToolMetrics(logger *zap.Logger) *toolMetrics {
	return newToolMetrics(otel.Meter(instrumentationName), logger)
}

// begin marks a call in flight. The returned func ends it and records the
// outcome of err.
func (m *toolMetrics) begin(ctx context.Context, tool string) func(error) {
	toolAttr := attribute.String("tool", tool)
	if m.inflight != nil {
		m.inflight.Add(ctx, 1, metric.WithAttributes(toolAttr))
	}
	start := time.Now()

	return func(err error) {
		if m.inflight != nil {
			m.inflight.Add(ctx, -1, metric.WithAttributes(toolAttr))
		}
		outcome := attribute.String("outcome", outcomeOf(err))
		if m.calls != nil {
			m.calls.Add(ctx, 1, metric.WithAttributes(toolAttr, outcome))
		}
		if m.latency != nil {
			m.latency.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(toolAttr))
		}
		if err != nil && m.failures != nil {
			m.failures.Add(ctx, 1, metric.WithAttributes(toolAttr, outcome))
		}
	}
}

// outcomeOf maps a tool error to its envelope code, "ok" for success.
func outcomeOf(err error) string {
	var te *ToolError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &te):
		return te.Code
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}
