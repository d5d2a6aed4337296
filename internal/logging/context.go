package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type (
	requestCtxKey struct{}
	ownerCtxKey   struct{}
	loggerCtxKey  struct{}
)

// maxIDLen bounds correlation ids copied from untrusted headers.
const maxIDLen = 128

// ContextFields extracts correlation fields from ctx.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 4)

	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	if id := OwnerIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("owner.id", id))
	}
	return fields
}

// WithRequestID stores a request id. Ids longer than 128 bytes are truncated.
func WithRequestID(ctx context.Context, id string) context.Context {
	if len(id) > maxIDLen {
		id = id[:maxIDLen]
	}
	return context.WithValue(ctx, requestCtxKey{}, id)
}

// RequestIDFromContext returns the request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestCtxKey{}).(string)
	return id
}

// WithOwnerID stores the authenticated owner id.
func WithOwnerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ownerCtxKey{}, id)
}

// OwnerIDFromContext returns the owner id, or "".
func OwnerIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ownerCtxKey{}).(string)
	return id
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a no-op logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return Nop()
}
