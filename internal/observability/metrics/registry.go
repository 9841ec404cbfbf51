package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics track HTTP request patterns and performance
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path", "status"},
	)
)

// Circuit breaker metrics
var (
	// BreakerState tracks the current state of each circuit breaker.
	// Values: 0=closed, 1=open, 2=half-open
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"breaker"},
	)

	// BreakerTransitionsTotal counts state transitions by breaker, source and target state
	BreakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"breaker", "from", "to"},
	)

	// BreakerRejectionsTotal counts calls rejected without invoking the protected operation
	BreakerRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_rejections_total",
			Help: "Total calls rejected by an open circuit breaker",
		},
		[]string{"breaker"},
	)
)

// Invocation metrics
var (
	// RetryAttemptsTotal counts retries (attempts after the first) per dependency
	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_retry_attempts_total",
			Help: "Total retry attempts after a failed call",
		},
		[]string{"dependency"},
	)

	// InvocationsTotal counts invoker results by dependency and outcome
	InvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_invocations_total",
			Help: "Total protected invocations by outcome",
		},
		[]string{"dependency", "outcome"},
	)

	// InvocationDuration measures end-to-end invocation latency including retries
	InvocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resilience_invocation_duration_seconds",
			Help:    "Protected invocation duration in seconds, retries included",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 25, 45, 90},
		},
		[]string{"dependency"},
	)
)

// Usage metrics
var (
	// UsageSpend tracks cumulative spend of a metered resource since process start
	UsageSpend = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "usage_spend_total",
			Help: "Cumulative spend of a metered resource since process start",
		},
		[]string{"resource"},
	)

	// UsageUnits tracks cumulative raw units (e.g. tokens) since process start
	UsageUnits = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "usage_units_total",
			Help: "Cumulative units consumed of a metered resource since process start",
		},
		[]string{"resource"},
	)

	// UsageCeiling exposes the configured spend ceiling
	UsageCeiling = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "usage_spend_ceiling",
			Help: "Configured spend ceiling of a metered resource",
		},
		[]string{"resource"},
	)

	// UsageDenialsTotal counts operations refused because the ceiling would be exceeded
	UsageDenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usage_denials_total",
			Help: "Total operations refused by the usage guard",
		},
		[]string{"resource"},
	)
)

// AI completion provider metrics
var (
	// CompletionDuration measures provider round-trip latency of a single attempt
	CompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_completion_duration_seconds",
			Help:    "AI completion request duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 25, 45, 60},
		},
		[]string{"provider", "status"},
	)

	// CompletionTokensTotal counts tokens reported by the provider
	CompletionTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_completion_tokens_total",
			Help: "Total tokens reported by the AI provider",
		},
		[]string{"provider", "direction"},
	)
)
