// Package resilience provides reliability and fault tolerance patterns for calls to
// unreliable external dependencies (the AI completion provider and blob storage).
//
// The package itself holds the shared error taxonomy and outcome classification.
// The patterns live in subpackages:
//   - circuitbreaker: per-dependency Closed/Open/HalfOpen state machine (sony/gobreaker)
//   - retry: bounded attempts with exponential backoff and jitter
//   - invoker: the façade composing rate limiting, budget checks, retry and breaker
//
// Sliding-window rate limiting lives in pkg/ratelimit and spend enforcement in
// internal/usage.
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.AICompletionConfig())
//	inv := invoker.New[*completion.Response](invoker.Options{
//	    Name:    "ai-completion",
//	    Limiter: aiLimiter,
//	    Guard:   guard,
//	    Breaker: cb,
//	    Retry:   retry.AIAPIConfig(),
//	    Timeout: 25 * time.Second,
//	    Pricing: usage.GPT35TurboPricing,
//	})
//	resp, err := inv.Invoke(ctx, clientIP, 0.01, op)
//	switch resilience.OutcomeOf(err) {
//	case resilience.OutcomeRateLimited:
//	    // ...
//	}
package resilience
