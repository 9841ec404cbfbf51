package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies spans created by this service.
const TracerName = "diet-cookbook"

var tracer = otel.Tracer(TracerName)

// GetTracer returns the service tracer.
func GetTracer() trace.Tracer {
	return tracer
}
