package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNewLogger_JSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Sampling.Enabled = false

	l, err := newLogger(cfg, &buf, nil)
	require.NoError(t, err)

	ctx := WithOwnerID(WithRequestID(context.Background(), "req-1"), "owner-1")
	l.Info(ctx, "index created", zap.String("index", "docs"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "index created", lines[0]["msg"])
	assert.Equal(t, "vectord", lines[0]["service"])
	assert.Equal(t, "req-1", lines[0]["request.id"])
	assert.Equal(t, "owner-1", lines[0]["owner.id"])
	assert.Equal(t, "docs", lines[0]["index"])
	assert.Contains(t, lines[0], "ts")
}

func TestNewLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Sampling.Enabled = false

	l, err := newLogger(cfg, &buf, nil)
	require.NoError(t, err)

	l.Info(context.Background(), "auth",
		zap.String("api_key", "sk-live-123"),
		zap.String("header", "Bearer abc.def"),
		zap.String("note", "plain"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "[REDACTED]", lines[0]["api_key"])
	assert.Equal(t, "[REDACTED:pattern]", lines[0]["header"])
	assert.Equal(t, "plain", lines[0]["note"])
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Level = "warn"

	l, err := newLogger(cfg, &buf, nil)
	require.NoError(t, err)

	l.Info(context.Background(), "dropped")
	l.Warn(context.Background(), "kept")
	l.Error(context.Background(), "also kept")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "kept", lines[0]["msg"])
	assert.False(t, l.Enabled(zapcore.InfoLevel))
}

func TestSampling_ErrorsNeverSampled(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Sampling.Initial = 1
	cfg.Sampling.Thereafter = 0

	l, err := newLogger(cfg, &buf, nil)
	require.NoError(t, err)

	for range 5 {
		l.Info(context.Background(), "repeated info")
		l.Error(context.Background(), "repeated error")
	}

	var infos, errs int
	for _, line := range decodeLines(t, &buf) {
		switch line["msg"] {
		case "repeated info":
			infos++
		case "repeated error":
			errs++
		}
	}
	assert.Equal(t, 1, infos)
	assert.Equal(t, 5, errs)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad level", func(c *Config) { c.Level = "loud" }},
		{"bad format", func(c *Config) { c.Format = "xml" }},
		{"no outputs", func(c *Config) { c.Output = OutputConfig{} }},
		{"zero tick", func(c *Config) { c.Sampling.Tick = 0 }},
		{"bad pattern", func(c *Config) { c.Redaction.Patterns = []string{"("} }},
		{"empty field value", func(c *Config) { c.Fields["env"] = "" }},
	}
	require.NoError(t, NewDefaultConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLevelFromString(t *testing.T) {
	l, err := LevelFromString("trace")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, l)

	l, err = LevelFromString("debug")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, l)

	_, err = LevelFromString("nope")
	assert.Error(t, err)
}

func TestContextFields(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))

	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	keys := map[string]bool{}
	for _, f := range ContextFields(WithRequestID(ctx, strings.Repeat("x", 200))) {
		keys[f.Key] = true
		if f.Key == "request.id" {
			assert.Len(t, f.String, maxIDLen)
		}
	}
	assert.True(t, keys["trace_id"])
	assert.True(t, keys["span_id"])
	assert.True(t, keys["request.id"])
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	tl := NewTestLogger()
	ctx := WithLogger(WithOwnerID(context.Background(), "u1"), tl.Logger)
	FromContext(ctx).Info(ctx, "hello")

	tl.AssertLogged(t, zapcore.InfoLevel, "hello")
	tl.AssertField(t, "hello", "owner.id", "u1")
}

type fakeSecret string

func (s fakeSecret) Value() string { return string(s) }

func TestSecretHelpers(t *testing.T) {
	tl := NewTestLogger()
	tl.Info(context.Background(), "loaded", Secret("api_key", fakeSecret("abcdef")))
	tl.AssertField(t, "loaded", "api_key", "[REDACTED:6]")
}
