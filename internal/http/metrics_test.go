package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func TestHTTPMetrics_MetricsMiddleware(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))

	m := &HTTPMetrics{
		meter:  mp.Meter(httpInstrumentationName),
		logger: zap.NewNop(),
	}
	m.init()

	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/api/v1/projects/:id", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"id": c.Param("id")})
	})
	e.DELETE("/api/v1/files/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot)
	})

	for _, target := range []string{"/api/v1/projects/a", "/api/v1/projects/b"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/v1/files/x", nil))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	var durations uint64
	foundSize := false
	for _, sm := range rm.ScopeMetrics {
		for _, mt := range sm.Metrics {
			switch mt.Name {
			case "vectord.http.requests_total":
				sum, ok := mt.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				for _, dp := range sum.DataPoints {
					endpoint, _ := dp.Attributes.Value(attribute.Key("endpoint"))
					status, _ := dp.Attributes.Value(attribute.Key("status"))
					counts[endpoint.AsString()+" "+status.Emit()] += dp.Value
				}
			case "vectord.http.request_duration_seconds":
				hist, ok := mt.Data.(metricdata.Histogram[float64])
				require.True(t, ok)
				for _, dp := range hist.DataPoints {
					durations += dp.Count
				}
			case "vectord.http.response_size_bytes":
				foundSize = true
			}
		}
	}

	assert.Equal(t, map[string]int64{
		"/api/v1/projects/:id 200": 2,
		"/api/v1/files/:id 418":    1,
	}, counts, "ids are collapsed into the route template")
	assert.EqualValues(t, 3, durations)
	assert.True(t, foundSize)
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "unmatched"},
		{"/*", "unmatched"},
		{"/health", "/health"},
		{"/api/v1/indexes/:id/search", "/api/v1/indexes/:id/search"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizePath(tt.input), tt.input)
	}
}
