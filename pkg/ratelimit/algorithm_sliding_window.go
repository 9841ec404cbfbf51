package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// SlidingWindowAlgorithm implements a sliding window rate limiting algorithm.
//
// It tracks individual request timestamps and admits a request only when fewer
// than limit requests fall within the trailing window. Unlike a fixed window it
// has no boundary at which a burst of 2x limit can slip through.
//
// Algorithm:
//  1. Read the current time from the Clock
//  2. Drop the key's timestamps that are not newer than now-window
//  3. If the remaining count is below limit, record now and allow
//  4. Otherwise deny without recording, and report when the oldest entry expires
//
// Steps 2 to 4 run atomically inside the store, per key.
type SlidingWindowAlgorithm struct {
	clock Clock
}

// NewSlidingWindowAlgorithm creates a new sliding window rate limiting algorithm.
// A nil clock falls back to SystemClock.
func NewSlidingWindowAlgorithm(clock Clock) *SlidingWindowAlgorithm {
	if clock == nil {
		clock = &SystemClock{}
	}
	return &SlidingWindowAlgorithm{clock: clock}
}

// IsAllowed determines whether a request for key is admitted, recording it when it is.
func (a *SlidingWindowAlgorithm) IsAllowed(
	ctx context.Context,
	limiter string,
	key string,
	store RateLimitStore,
	limit int,
	window time.Duration,
) (*RateLimitDecision, error) {
	allowed, state, err := store.CheckAndAddRequest(ctx, key, a.clock.Now(), window, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to check and add request: %w", err)
	}
	return newDecision(limiter, key, limit, window, allowed, state), nil
}
