// Package telemetry sets up OpenTelemetry tracing and metrics for vectord
// and exposes the Prometheus registry that package-level collectors
// register with.
//
// When disabled, Tracer and Meter fall back to the global no-op providers,
// so instrumented code never needs to check whether telemetry is on.
// Exporter failures degrade the instance instead of failing startup.
package telemetry
