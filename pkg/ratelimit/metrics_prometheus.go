package ratelimit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements the RateLimitMetrics interface using Prometheus.
//
// All metrics live in a custom registry so tests stay isolated and several
// instances can coexist. Expose it with promhttp.HandlerFor, or pass it to
// a prometheus.Gatherers alongside the default registry.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// requestsTotal counts checks by limiter and status ("allowed" or "denied").
	requestsTotal *prometheus.CounterVec

	// checkDuration observes check latency. In-memory checks should stay well under 1ms.
	checkDuration *prometheus.HistogramVec

	// activeKeys tracks keys held per limiter.
	activeKeys *prometheus.GaugeVec

	// evictionsTotal counts keys evicted because the store was full.
	evictionsTotal *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance with a custom registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total rate limit checks by limiter and status",
		},
		[]string{"limiter", "status"},
	)

	checkDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rate_limit_check_duration_seconds",
			Help:    "Duration of rate limit check operations",
			Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		},
		[]string{"limiter"},
	)

	activeKeys := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rate_limit_active_keys",
			Help: "Current number of tracked keys by limiter",
		},
		[]string{"limiter"},
	)

	evictionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_evictions_total",
			Help: "Total LRU evictions by limiter",
		},
		[]string{"limiter"},
	)

	registry.MustRegister(requestsTotal, checkDuration, activeKeys, evictionsTotal)

	return &PrometheusMetrics{
		registry:       registry,
		requestsTotal:  requestsTotal,
		checkDuration:  checkDuration,
		activeKeys:     activeKeys,
		evictionsTotal: evictionsTotal,
	}
}

// Registry returns the Prometheus registry containing all rate limit metrics.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordAllowed records an admitted request.
func (m *PrometheusMetrics) RecordAllowed(limiter string) {
	m.requestsTotal.WithLabelValues(limiter, "allowed").Inc()
}

// RecordDenied records a rejected request.
func (m *PrometheusMetrics) RecordDenied(limiter string) {
	m.requestsTotal.WithLabelValues(limiter, "denied").Inc()
}

// RecordCheckDuration records the duration of a rate limit check operation.
func (m *PrometheusMetrics) RecordCheckDuration(limiter string, duration time.Duration) {
	m.checkDuration.WithLabelValues(limiter).Observe(duration.Seconds())
}

// SetActiveKeys records the current number of keys in the limiter.
func (m *PrometheusMetrics) SetActiveKeys(limiter string, count int) {
	m.activeKeys.WithLabelValues(limiter).Set(float64(count))
}

// RecordEviction records that keys were evicted from the store.
// A sustained eviction rate usually means many distinct callers, or MaxKeys set too low.
func (m *PrometheusMetrics) RecordEviction(limiter string, count int) {
	m.evictionsTotal.WithLabelValues(limiter).Add(float64(count))
}
