// Package retry provides retry logic with exponential backoff and jitter.
// It absorbs transient failures of breaker-protected operations without defeating the breaker:
// a call rejected by an open circuit is surfaced immediately, never retried.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"diet-cookbook/internal/observability/metrics"
	"diet-cookbook/internal/resilience"
)

// ErrAborted is returned when the caller's context ends before retries are exhausted.
var ErrAborted = errors.New("retry aborted")

// Config holds the configuration for retry logic.
type Config struct {
	// Name labels log entries and the retry counter. Optional.
	Name string

	// MaxAttempts is the total number of invocations, including the first one
	MaxAttempts int

	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration

	// Multiplier is the multiplier for exponential backoff
	Multiplier float64

	// JitterFraction is the fraction of delay to add as random jitter (0.0 to 1.0)
	JitterFraction float64

	// OnRetry, if set, is called before each backoff wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultConfig returns a default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   1 * time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// AIAPIConfig returns configuration for AI completion calls.
// Conservative because every attempt is billed.
func AIAPIConfig() Config {
	return Config{
		Name:           "ai-completion",
		MaxAttempts:    2,
		InitialDelay:   1 * time.Second,
		MaxDelay:       4 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// StorageConfig returns configuration for blob-storage verification.
func StorageConfig() Config {
	return Config{
		Name:           "storage",
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       2 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.InitialDelay < 0 {
		return fmt.Errorf("initial delay must not be negative, got %v", c.InitialDelay)
	}
	if c.MaxDelay < c.InitialDelay {
		return fmt.Errorf("max delay (%v) must be >= initial delay (%v)", c.MaxDelay, c.InitialDelay)
	}
	if c.Multiplier < 1 {
		return fmt.Errorf("multiplier must be >= 1, got %v", c.Multiplier)
	}
	if c.JitterFraction < 0 || c.JitterFraction > 1 {
		return fmt.Errorf("jitter fraction must be within [0, 1], got %v", c.JitterFraction)
	}
	return nil
}

// Backoff returns the delay that follows the given failed attempt (1-based), before jitter:
// min(InitialDelay * Multiplier^(attempt-1), MaxDelay).
func Backoff(cfg Config, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	multiplier := cfg.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := float64(cfg.InitialDelay) * math.Pow(multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		return cfg.MaxDelay
	}
	return time.Duration(delay)
}

// Do executes fn with retry logic and exponential backoff.
//
// It returns nil as soon as fn succeeds. Errors matching resilience.ErrBreakerOpen and
// errors marked with Permanent are returned at once. When every attempt fails, the last
// attempt's error is returned unchanged. If ctx ends first, Do stops and returns ErrAborted
// joined with the context error and the last attempt error.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			if attempt > 1 {
				slog.Info("operation succeeded after retry",
					slog.String("dependency", cfg.Name),
					slog.Int("attempt", attempt))
			}
			return nil
		}

		if !IsRetryable(lastErr) {
			return lastErr
		}

		if ctx.Err() != nil {
			return errors.Join(ErrAborted, ctx.Err(), lastErr)
		}

		// Don't wait after last attempt
		if attempt == maxAttempts {
			break
		}

		delay := addJitter(Backoff(cfg, attempt), cfg.JitterFraction)

		slog.Warn("operation failed, retrying",
			slog.String("dependency", cfg.Name),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Duration("delay", delay),
			slog.Any("error", lastErr))
		if cfg.Name != "" {
			metrics.RecordRetry(cfg.Name)
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, delay, lastErr)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(ErrAborted, ctx.Err(), lastErr)
		}
	}

	return lastErr
}

// IsRetryable determines if an error is worth retrying.
// Anything but nil, an open-circuit rejection, or a permanent error is retryable,
// including per-call timeouts.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, resilience.ErrBreakerOpen) {
		return false
	}
	return !resilience.IsPermanent(err)
}

// Permanent marks err as not worth retrying. See resilience.Permanent.
func Permanent(err error) error {
	return resilience.Permanent(err)
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	return resilience.IsPermanent(err)
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// addJitter adds random jitter to a duration to prevent thundering herd.
func addJitter(duration time.Duration, jitterFraction float64) time.Duration {
	if jitterFraction <= 0 {
		return duration
	}
	if jitterFraction > 1.0 {
		jitterFraction = 1.0
	}
	// #nosec G404 -- Using math/rand is acceptable for jitter calculation.
	// Cryptographic randomness is not required for retry backoff jitter.
	jitter := time.Duration(rand.Float64() * float64(duration) * jitterFraction)
	return duration + jitter
}
