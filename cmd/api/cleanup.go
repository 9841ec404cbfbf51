package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"diet-cookbook/pkg/ratelimit"
)

const cleanupTimeout = 30 * time.Second

// startLimiterCleanup prunes idle keys from every limiter on schedule.
// The caller stops the returned scheduler.
func startLimiterCleanup(schedule string, limiters []*ratelimit.Limiter, logger *slog.Logger) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { cleanupLimiters(limiters, logger) }); err != nil {
		return nil, fmt.Errorf("schedule limiter cleanup %q: %w", schedule, err)
	}
	c.Start()
	logger.Info("rate limit cleanup scheduled",
		slog.String("schedule", schedule),
		slog.Int("limiters", len(limiters)))
	return c, nil
}

func cleanupLimiters(limiters []*ratelimit.Limiter, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	for _, l := range limiters {
		removed, err := l.Cleanup(ctx)
		if err != nil {
			logger.Warn("rate limit cleanup failed",
				slog.String("limiter", l.Name()),
				slog.Any("error", err))
			continue
		}
		if removed > 0 {
			logger.Debug("rate limit cleanup",
				slog.String("limiter", l.Name()),
				slog.Int("removed_keys", removed))
		}
	}
}
