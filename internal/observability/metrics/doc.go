// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes the resilience metrics of the application:
//   - HTTP request metrics (duration, count)
//   - Circuit breaker state, transitions and rejections
//   - Retry attempts per dependency
//   - Invocation outcomes and latency per protected dependency
//   - Metered usage (spend, units, ceiling) and budget denials
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "diet-cookbook/internal/observability/metrics"
//
//	func callDependency() {
//	    start := time.Now()
//	    // ... invoke ...
//	    metrics.RecordInvocation("ai-completion", "admitted", time.Since(start))
//	}
package metrics
