package ratelimit

import "time"

// NoOpMetrics implements the RateLimitMetrics interface with no-op implementations.
// It is the default when no metrics collector is supplied.
type NoOpMetrics struct{}

// NewNoOpMetrics creates a new NoOpMetrics instance.
func NewNoOpMetrics() *NoOpMetrics {
	return &NoOpMetrics{}
}

func (m *NoOpMetrics) RecordAllowed(limiter string)                               {}
func (m *NoOpMetrics) RecordDenied(limiter string)                                {}
func (m *NoOpMetrics) RecordCheckDuration(limiter string, duration time.Duration) {}
func (m *NoOpMetrics) SetActiveKeys(limiter string, count int)                    {}
func (m *NoOpMetrics) RecordEviction(limiter string, count int)                   {}
