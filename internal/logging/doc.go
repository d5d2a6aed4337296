// Package logging builds the zap loggers used across vectord.
//
// A Logger wraps *zap.Logger with context-aware methods that attach
// correlation fields taken from the request context:
//
//	trace_id, span_id   OpenTelemetry span, when one is active
//	request.id          set by the HTTP middleware
//	owner.id            the authenticated owner
//
// Most packages accept a plain *zap.Logger; obtain one with Underlying.
//
// Output goes to stdout (JSON or console encoding, ISO8601 timestamps) and,
// when an OpenTelemetry LoggerProvider is supplied, through the otelzap
// bridge. Values of sensitive keys and strings matching the configured
// patterns are redacted by the stdout encoder. Levels below error are
// sampled when sampling is enabled.
//
// Tests use NewTestLogger, which records entries with zaptest/observer.
package logging
