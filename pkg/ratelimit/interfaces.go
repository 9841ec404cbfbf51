// Package ratelimit provides framework-agnostic rate limiting functionality.
//
// A Limiter admits at most Limit requests per key within any sliding Window.
// State lives in a pluggable RateLimitStore; the in-memory store shards keys
// over independent locks so unrelated callers never contend. Limiter instances
// never share state, so each traffic class gets its own.
package ratelimit

import (
	"context"
	"time"
)

// WindowState describes a key's window as observed by a single check.
type WindowState struct {
	// Count is the number of requests inside the window,
	// including the current one when it was admitted.
	Count int

	// Oldest is the oldest timestamp still inside the window.
	// Zero when the window is empty.
	Oldest time.Time

	// Now is the effective time of the check after clock-skew correction.
	Now time.Time
}

// RateLimitStore defines the interface for storing rate limit state.
//
// All methods must be thread-safe. CheckAndAddRequest MUST prune, check and
// record within a single critical section for the key to prevent TOCTOU races.
type RateLimitStore interface {
	// CheckAndAddRequest drops the key's timestamps that are not newer than
	// timestamp-window, then records timestamp if fewer than limit remain.
	// A rejected request is not recorded.
	CheckAndAddRequest(ctx context.Context, key string, timestamp time.Time, window time.Duration, limit int) (allowed bool, state WindowState, err error)

	// GetRequestCount returns the number of requests for key newer than cutoff.
	GetRequestCount(ctx context.Context, key string, cutoff time.Time) (int, error)

	// Cleanup removes timestamps not newer than cutoff and drops keys left empty.
	// It returns the number of keys removed.
	Cleanup(ctx context.Context, cutoff time.Time) (int, error)

	// KeyCount returns the number of keys currently tracked.
	KeyCount(ctx context.Context) (int, error)
}

// RateLimitMetrics defines the interface for recording rate limiting metrics.
//
// Implementations can use Prometheus, StatsD, or custom metrics systems.
type RateLimitMetrics interface {
	// RecordAllowed records an admitted request.
	RecordAllowed(limiter string)

	// RecordDenied records a rejected request.
	RecordDenied(limiter string)

	// RecordCheckDuration records how long a check took.
	RecordCheckDuration(limiter string, duration time.Duration)

	// SetActiveKeys records the number of keys tracked by the limiter.
	SetActiveKeys(limiter string, count int)

	// RecordEviction records keys evicted because the store was full.
	RecordEviction(limiter string, count int)
}

// Clock provides an abstraction for time operations to enable testing.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// SystemClock is a Clock implementation that uses the system time.
// time.Now carries a monotonic reading, so window arithmetic is unaffected by wall-clock jumps.
type SystemClock struct{}

// Now returns the current system time.
func (c *SystemClock) Now() time.Time {
	return time.Now()
}
