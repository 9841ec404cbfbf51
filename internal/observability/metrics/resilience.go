package metrics

import "time"

// breakerStateValue maps a breaker state name to its gauge value.
func breakerStateValue(state string) float64 {
	switch state {
	case "open":
		return 1
	case "half-open":
		return 2
	default:
		return 0
	}
}

// RecordBreakerState sets the state gauge of the named breaker.
// Unknown states are reported as closed.
func RecordBreakerState(breaker, state string) {
	BreakerState.WithLabelValues(breaker).Set(breakerStateValue(state))
}

// RecordBreakerTransition records a state change and updates the state gauge.
func RecordBreakerTransition(breaker, from, to string) {
	BreakerTransitionsTotal.WithLabelValues(breaker, from, to).Inc()
	RecordBreakerState(breaker, to)
}

// RecordBreakerRejection records a call refused by an open breaker.
func RecordBreakerRejection(breaker string) {
	BreakerRejectionsTotal.WithLabelValues(breaker).Inc()
}

// RecordRetry records one retry attempt against a dependency.
func RecordRetry(dependency string) {
	RetryAttemptsTotal.WithLabelValues(dependency).Inc()
}

// RecordInvocation records the outcome and latency of a protected invocation.
func RecordInvocation(dependency, outcome string, duration time.Duration) {
	InvocationsTotal.WithLabelValues(dependency, outcome).Inc()
	InvocationDuration.WithLabelValues(dependency).Observe(duration.Seconds())
}

// SetUsage publishes the ledger of a metered resource.
func SetUsage(resource string, spend float64, units int64, ceiling float64) {
	UsageSpend.WithLabelValues(resource).Set(spend)
	UsageUnits.WithLabelValues(resource).Set(float64(units))
	UsageCeiling.WithLabelValues(resource).Set(ceiling)
}

// RecordUsageDenied records an operation refused by the usage guard.
func RecordUsageDenied(resource string) {
	UsageDenialsTotal.WithLabelValues(resource).Inc()
}

// RecordCompletion records one provider round trip and, on success, its token usage.
func RecordCompletion(provider string, success bool, duration time.Duration, tokensIn, tokensOut int64) {
	status := "success"
	if !success {
		status = "error"
	}
	CompletionDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
	if success {
		CompletionTokensTotal.WithLabelValues(provider, "in").Add(float64(tokensIn))
		CompletionTokensTotal.WithLabelValues(provider, "out").Add(float64(tokensOut))
	}
}
