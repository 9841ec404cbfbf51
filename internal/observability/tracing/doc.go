// Package tracing provides the OpenTelemetry tracer shared by the service and
// an HTTP middleware that opens a server span per request.
//
// The tracer comes from the global provider, so installing an SDK provider with
// otel.SetTracerProvider at startup (or in a test's TestMain) is enough for
// invoker and HTTP spans to be recorded.
//
//	ctx, span := tracing.GetTracer().Start(ctx, "invoker.ai-completion")
//	defer span.End()
package tracing
