package ratelimit

import (
	"fmt"
	"time"
)

// RateLimitDecision represents the result of a rate limit check.
type RateLimitDecision struct {
	// Key is the identifier used for rate limiting (e.g., client IP, user ID).
	Key string

	// Allowed indicates whether the request should be permitted.
	Allowed bool

	// Limit is the maximum number of requests allowed in the window.
	Limit int

	// Remaining is the number of requests still admissible in the current window.
	Remaining int

	// ResetAt is when the oldest request in the window expires and capacity frees up.
	ResetAt time.Time

	// RetryAfter is how long a denied caller should wait. Zero when allowed.
	RetryAfter time.Duration

	// Limiter names the limiter that made this decision (e.g., "auth").
	Limiter string
}

// String returns a human-readable representation of the decision.
func (d *RateLimitDecision) String() string {
	if d.Allowed {
		return fmt.Sprintf("RateLimitDecision{Allowed: true, Key: %s, Limiter: %s, Remaining: %d/%d}",
			d.Key, d.Limiter, d.Remaining, d.Limit)
	}
	return fmt.Sprintf("RateLimitDecision{Allowed: false, Key: %s, Limiter: %s, Limit: %d, RetryAfter: %s}",
		d.Key, d.Limiter, d.Limit, d.RetryAfter)
}

// ResetAtUnix returns the reset time as a Unix timestamp, for X-RateLimit-Reset.
func (d *RateLimitDecision) ResetAtUnix() int64 {
	return d.ResetAt.Unix()
}

// RetryAfterSeconds returns the retry delay in whole seconds, rounded up, for Retry-After.
func (d *RateLimitDecision) RetryAfterSeconds() int64 {
	if d.RetryAfter <= 0 {
		return 0
	}
	seconds := int64(d.RetryAfter / time.Second)
	if d.RetryAfter%time.Second != 0 {
		seconds++
	}
	return seconds
}

// newDecision builds a decision from the window observed by the store.
func newDecision(limiter, key string, limit int, window time.Duration, allowed bool, state WindowState) *RateLimitDecision {
	resetAt := state.Now.Add(window)
	if !state.Oldest.IsZero() {
		resetAt = state.Oldest.Add(window)
	}

	d := &RateLimitDecision{
		Key:       key,
		Allowed:   allowed,
		Limit:     limit,
		Remaining: max(limit-state.Count, 0),
		ResetAt:   resetAt,
		Limiter:   limiter,
	}
	if !allowed {
		d.Remaining = 0
		d.RetryAfter = max(resetAt.Sub(state.Now), 0)
	}
	return d
}
