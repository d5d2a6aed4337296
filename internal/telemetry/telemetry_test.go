package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig(), nil)
	require.NoError(t, err)

	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.False(t, tel.IsEnabled())
	assert.Equal(t, HealthStatus{Healthy: true}, tel.Health())
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.False(t, tel.Health().Healthy)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = ""

	tel, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Nil(t, tel)
	assert.Contains(t, err.Error(), "invalid telemetry config")
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry
	assert.NotNil(t, tel.Tracer("x"))
	assert.NotNil(t, tel.Meter("x"))
	assert.False(t, tel.IsEnabled())
	assert.True(t, tel.Health().Degraded)
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.NoError(t, tel.ForceFlush(context.Background()))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults disabled", func(c *Config) {}, false},
		{"enabled local", func(c *Config) { c.Enabled = true }, false},
		{"enabled http", func(c *Config) { c.Enabled = true; c.Protocol = ProtocolHTTP; c.Endpoint = "http://127.0.0.1:4318" }, false},
		{"ipv6 loopback", func(c *Config) { c.Enabled = true; c.Endpoint = "[::1]:4317" }, false},
		{"insecure remote", func(c *Config) { c.Enabled = true; c.Endpoint = "otel.example.com:4317" }, true},
		{"secure remote", func(c *Config) { c.Enabled = true; c.Insecure = false; c.Endpoint = "otel.example.com:4317" }, false},
		{"bad protocol", func(c *Config) { c.Enabled = true; c.Protocol = "udp" }, true},
		{"bad rate", func(c *Config) { c.Enabled = true; c.Sampling.Rate = 1.5 }, true},
		{"zero interval", func(c *Config) { c.Enabled = true; c.Metrics.ExportInterval = 0 }, true},
		{"zero shutdown", func(c *Config) { c.Enabled = true; c.ShutdownWait = 0 }, true},
		{"no service", func(c *Config) { c.Enabled = true; c.ServiceName = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestNewSampler(t *testing.T) {
	assert.Contains(t, newSampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, newSampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, newSampler(0.5).Description(), "TraceIDRatioBased")
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "collector:4318", stripScheme("https://collector:4318"))
	assert.Equal(t, "collector:4318", stripScheme("http://collector:4318"))
	assert.Equal(t, "collector:4317", stripScheme("collector:4317"))
}

func TestTestTelemetry_RecordsSpansAndMetrics(t *testing.T) {
	ctx := context.Background()
	tt := NewTestTelemetry()

	_, span := tt.Tracer("test").Start(ctx, "search.project")
	span.End()
	tt.AssertSpanExists(t, "search.project")

	counter, err := tt.Meter("test").Int64Counter("vectord.test.calls")
	require.NoError(t, err)
	counter.Add(ctx, 2)
	assert.True(t, tt.HasMetric(ctx, "vectord.test.calls"))

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	assert.NoError(t, tt.Shutdown(shutdownCtx))
}

func TestMetricsHandler(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig(), nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	tel.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
