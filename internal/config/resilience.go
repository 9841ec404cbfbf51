// Package config aggregates the service configuration loaded from the environment.
package config

import (
	"fmt"
	"log/slog"
	"time"

	pkgconfig "diet-cookbook/internal/pkg/config"
	"diet-cookbook/internal/resilience/circuitbreaker"
	"diet-cookbook/internal/resilience/retry"
	"diet-cookbook/internal/usage"
	"diet-cookbook/pkg/ratelimit"
)

// DefaultCleanupSchedule is how often idle rate-limit keys are pruned.
const DefaultCleanupSchedule = "@every 5m"

// ResilienceConfig holds the breaker, retry, timeout, rate-limit and budget
// settings for every protected dependency.
type ResilienceConfig struct {
	AIBreaker      circuitbreaker.Config
	StorageBreaker circuitbreaker.Config

	AIRetry      retry.Config
	StorageRetry retry.Config

	// AITimeout bounds one text completion attempt. Default: 25s
	AITimeout time.Duration
	// VisionTimeout bounds one completion attempt carrying a photo. Default: 45s
	VisionTimeout time.Duration
	// StorageTimeout bounds one upload verification attempt. Default: 10s
	StorageTimeout time.Duration

	AuthLimit ratelimit.Config
	AILimit   ratelimit.Config
	// CleanupSchedule is a cron expression for pruning idle limiter keys.
	CleanupSchedule string

	// SpendCeiling is the hard cap on cumulative AI spend, in USD.
	SpendCeiling float64
	Pricing      usage.Pricing

	// Fallbacks lists the variables that were invalid and replaced by defaults.
	Fallbacks []string
}

// loader collects fallback warnings while reading variables.
type loader struct {
	fallbacks []string
}

func track[T any](l *loader, r pkgconfig.LoadResult[T]) T {
	if r.FallbackApplied {
		slog.Warn("configuration fallback applied",
			slog.String("key", r.Key),
			slog.String("warning", r.Warning))
		l.fallbacks = append(l.fallbacks, r.Key)
	}
	return r.Value
}

func (l *loader) duration(key string, def time.Duration) time.Duration {
	return track(l, pkgconfig.LoadEnvDuration(key, def, pkgconfig.ValidatePositiveDuration))
}

func (l *loader) integer(key string, def, min, max int) int {
	return track(l, pkgconfig.LoadEnvInt(key, def, pkgconfig.IntRange(min, max)))
}

func (l *loader) number(key string, def float64) float64 {
	return track(l, pkgconfig.LoadEnvFloat(key, def, pkgconfig.ValidateNonNegativeFloat))
}

func (l *loader) breakerConfig(prefix string, base circuitbreaker.Config) circuitbreaker.Config {
	base.FailureThreshold = uint32(l.integer(prefix+"_CB_FAILURE_THRESHOLD", int(base.FailureThreshold), 1, 1000))
	base.RecoveryTimeout = l.duration(prefix+"_CB_RECOVERY_TIMEOUT", base.RecoveryTimeout)
	return base
}

func (l *loader) retryConfig(prefix string, base retry.Config) retry.Config {
	base.MaxAttempts = l.integer(prefix+"_RETRY_MAX_ATTEMPTS", base.MaxAttempts, 1, 10)
	base.InitialDelay = l.duration(prefix+"_RETRY_BASE_DELAY", base.InitialDelay)
	base.MaxDelay = l.duration(prefix+"_RETRY_MAX_DELAY", base.MaxDelay)
	return base
}

func (l *loader) limiterConfig(prefix string, base ratelimit.Config, maxKeys int) ratelimit.Config {
	base.Limit = l.integer(prefix+"_LIMIT", base.Limit, 1, 1_000_000)
	base.Window = l.duration(prefix+"_WINDOW", base.Window)
	base.MaxKeys = maxKeys
	return base
}

// LoadResilienceConfig reads the resilience settings.
//
// Environment variables (defaults in parentheses):
//   - AI_CB_FAILURE_THRESHOLD (5), AI_CB_RECOVERY_TIMEOUT (60s)
//   - STORAGE_CB_FAILURE_THRESHOLD (5), STORAGE_CB_RECOVERY_TIMEOUT (60s)
//   - AI_RETRY_MAX_ATTEMPTS (2), AI_RETRY_BASE_DELAY (1s), AI_RETRY_MAX_DELAY (4s)
//   - STORAGE_RETRY_MAX_ATTEMPTS (3), STORAGE_RETRY_BASE_DELAY (200ms), STORAGE_RETRY_MAX_DELAY (2s)
//   - AI_TIMEOUT (25s), AI_VISION_TIMEOUT (45s), STORAGE_TIMEOUT (10s)
//   - RATELIMIT_AUTH_LIMIT (5), RATELIMIT_AUTH_WINDOW (60s)
//   - RATELIMIT_AI_LIMIT (10), RATELIMIT_AI_WINDOW (1h)
//   - RATELIMIT_MAX_KEYS (10000), RATELIMIT_CLEANUP_SCHEDULE (@every 5m)
//   - AI_SPEND_CEILING (5.0), AI_PRICE_IN_PER_1K (0.0005), AI_PRICE_OUT_PER_1K (0.0015)
//
// Invalid values fall back to their defaults with a warning and are listed in
// Fallbacks. metrics may be nil. The returned error covers combinations that
// are individually valid but inconsistent, such as a max delay below the base delay.
func LoadResilienceConfig(metrics *pkgconfig.ConfigMetrics) (*ResilienceConfig, error) {
	l := &loader{}
	maxKeys := l.integer("RATELIMIT_MAX_KEYS", 10000, 1, 10_000_000)

	cfg := &ResilienceConfig{
		AIBreaker:      l.breakerConfig("AI", circuitbreaker.AICompletionConfig()),
		StorageBreaker: l.breakerConfig("STORAGE", circuitbreaker.StorageConfig()),

		AIRetry:      l.retryConfig("AI", retry.AIAPIConfig()),
		StorageRetry: l.retryConfig("STORAGE", retry.StorageConfig()),

		AITimeout:      l.duration("AI_TIMEOUT", 25*time.Second),
		VisionTimeout:  l.duration("AI_VISION_TIMEOUT", 45*time.Second),
		StorageTimeout: l.duration("STORAGE_TIMEOUT", 10*time.Second),

		AuthLimit: l.limiterConfig("RATELIMIT_AUTH", ratelimit.AuthConfig(), maxKeys),
		AILimit:   l.limiterConfig("RATELIMIT_AI", ratelimit.AIGenerationConfig(), maxKeys),
		CleanupSchedule: track(l, pkgconfig.LoadEnvString("RATELIMIT_CLEANUP_SCHEDULE",
			DefaultCleanupSchedule, pkgconfig.ValidateCronSchedule)),

		SpendCeiling: l.number("AI_SPEND_CEILING", 5.0),
		Pricing: usage.PricingPer1K(
			l.number("AI_PRICE_IN_PER_1K", 0.0005),
			l.number("AI_PRICE_OUT_PER_1K", 0.0015),
		),
	}
	cfg.Fallbacks = l.fallbacks
	metrics.RecordLoad(cfg.Fallbacks)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid resilience configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every component configuration.
func (c *ResilienceConfig) Validate() error {
	checks := []struct {
		name string
		err  error
	}{
		{"ai circuit breaker", c.AIBreaker.Validate()},
		{"storage circuit breaker", c.StorageBreaker.Validate()},
		{"ai retry", c.AIRetry.Validate()},
		{"storage retry", c.StorageRetry.Validate()},
		{"auth rate limit", c.AuthLimit.Validate()},
		{"ai rate limit", c.AILimit.Validate()},
	}
	for _, check := range checks {
		if check.err != nil {
			return fmt.Errorf("%s: %w", check.name, check.err)
		}
	}
	if c.VisionTimeout < c.AITimeout {
		return fmt.Errorf("AI_VISION_TIMEOUT (%v) must be >= AI_TIMEOUT (%v)", c.VisionTimeout, c.AITimeout)
	}
	return nil
}
