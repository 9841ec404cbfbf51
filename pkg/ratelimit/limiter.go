package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Limiter admits at most Limit requests per key within a sliding Window.
type Limiter struct {
	name      string
	limit     int
	window    time.Duration
	store     RateLimitStore
	algorithm *SlidingWindowAlgorithm
	metrics   RateLimitMetrics
}

// Dependencies are the optional collaborators of a Limiter.
// Zero values select an in-memory store, the system clock and no-op metrics.
type Dependencies struct {
	Store   RateLimitStore
	Clock   Clock
	Metrics RateLimitMetrics
}

// NewLimiter creates a Limiter. It returns an error if cfg is invalid.
func NewLimiter(cfg Config, deps Dependencies) (*Limiter, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rate limiter config: %w", err)
	}

	if deps.Metrics == nil {
		deps.Metrics = NewNoOpMetrics()
	}
	if deps.Store == nil {
		metrics := deps.Metrics
		deps.Store = NewInMemoryRateLimitStore(InMemoryStoreConfig{
			MaxKeys: cfg.MaxKeys,
			OnEvict: func(count int) { metrics.RecordEviction(cfg.Name, count) },
		})
	}

	return &Limiter{
		name:      cfg.Name,
		limit:     cfg.Limit,
		window:    cfg.Window,
		store:     deps.Store,
		algorithm: NewSlidingWindowAlgorithm(deps.Clock),
		metrics:   deps.Metrics,
	}, nil
}

// MustNewLimiter is like NewLimiter but panics on an invalid config.
// Intended for presets known to be valid.
func MustNewLimiter(cfg Config, deps Dependencies) *Limiter {
	l, err := NewLimiter(cfg, deps)
	if err != nil {
		panic(err)
	}
	return l
}

// Check runs a rate limit check for key and returns the full decision.
// An admitted request is recorded; a denied one is not.
func (l *Limiter) Check(ctx context.Context, key string) (*RateLimitDecision, error) {
	start := time.Now()
	decision, err := l.algorithm.IsAllowed(ctx, l.name, key, l.store, l.limit, l.window)
	l.metrics.RecordCheckDuration(l.name, time.Since(start))
	if err != nil {
		return nil, err
	}

	if decision.Allowed {
		l.metrics.RecordAllowed(l.name)
	} else {
		l.metrics.RecordDenied(l.name)
	}
	return decision, nil
}

// IsAllowed reports whether a request for key is admitted.
// A store failure denies the request and is logged.
func (l *Limiter) IsAllowed(ctx context.Context, key string) bool {
	decision, err := l.Check(ctx, key)
	if err != nil {
		slog.Error("rate limit check failed",
			slog.String("limiter", l.name),
			slog.String("key", key),
			slog.Any("error", err))
		return false
	}
	return decision.Allowed
}

// Count returns the number of requests for key inside the current window, without recording one.
func (l *Limiter) Count(ctx context.Context, key string) (int, error) {
	return l.store.GetRequestCount(ctx, key, l.algorithm.clock.Now().Add(-l.window))
}

// Cleanup drops keys whose requests have all left the window and refreshes the active-keys gauge.
func (l *Limiter) Cleanup(ctx context.Context) (int, error) {
	removed, err := l.store.Cleanup(ctx, l.algorithm.clock.Now().Add(-l.window))
	if err != nil {
		return removed, fmt.Errorf("cleanup %s limiter: %w", l.name, err)
	}
	if keys, err := l.store.KeyCount(ctx); err == nil {
		l.metrics.SetActiveKeys(l.name, keys)
	}
	return removed, nil
}

// KeyCount returns the number of keys tracked by the limiter.
func (l *Limiter) KeyCount(ctx context.Context) (int, error) {
	return l.store.KeyCount(ctx)
}

// Name returns the limiter's traffic class name.
func (l *Limiter) Name() string { return l.name }

// Limit returns the maximum requests per key per window.
func (l *Limiter) Limit() int { return l.limit }

// Window returns the sliding window length.
func (l *Limiter) Window() time.Duration { return l.window }
