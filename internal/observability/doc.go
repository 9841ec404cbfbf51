// Package observability groups the service's logging, metrics and tracing.
//
// Subpackages:
//   - logging: slog logger construction and request-scoped loggers
//   - metrics: Prometheus collectors for HTTP traffic and the resilience layer
//   - tracing: OpenTelemetry tracer and HTTP server spans
package observability
