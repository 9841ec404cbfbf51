package config

import (
	"fmt"
	"math"
	"time"

	"github.com/robfig/cron/v3"
)

// scheduleParser accepts standard five-field expressions and descriptors
// such as "@hourly" or "@every 5m", the same set cron.New understands.
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateCronSchedule validates a cron expression with the robfig/cron/v3 parser.
//
//	"*/5 * * * *"   every five minutes
//	"@every 10m"    every ten minutes
//	"@hourly"       at minute zero
func ValidateCronSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("invalid cron schedule: cannot be empty")
	}
	if _, err := scheduleParser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", schedule, err)
	}
	return nil
}

// ValidateIntRange checks min <= value <= max.
func ValidateIntRange(value, min, max int) error {
	if min > max {
		return fmt.Errorf("invalid range: min (%d) cannot be greater than max (%d)", min, max)
	}
	if value < min {
		return fmt.Errorf("value %d is below minimum %d", value, min)
	}
	if value > max {
		return fmt.Errorf("value %d exceeds maximum %d", value, max)
	}
	return nil
}

// IntRange returns a validator for ValidateIntRange.
func IntRange(min, max int) func(int) error {
	return func(v int) error { return ValidateIntRange(v, min, max) }
}

// ValidateDuration checks min <= duration <= max.
func ValidateDuration(duration, min, max time.Duration) error {
	if min > max {
		return fmt.Errorf("invalid range: min (%v) cannot be greater than max (%v)", min, max)
	}
	if duration < min {
		return fmt.Errorf("duration %v is below minimum %v", duration, min)
	}
	if duration > max {
		return fmt.Errorf("duration %v exceeds maximum %v", duration, max)
	}
	return nil
}

// DurationRange returns a validator for ValidateDuration.
func DurationRange(min, max time.Duration) func(time.Duration) error {
	return func(d time.Duration) error { return ValidateDuration(d, min, max) }
}

// ValidatePositiveDuration rejects zero and negative durations.
func ValidatePositiveDuration(duration time.Duration) error {
	if duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", duration)
	}
	return nil
}

// ValidateNonNegativeFloat rejects negative, NaN and infinite values.
func ValidateNonNegativeFloat(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("value must be a finite number, got %v", v)
	}
	if v < 0 {
		return fmt.Errorf("value must not be negative, got %v", v)
	}
	return nil
}
