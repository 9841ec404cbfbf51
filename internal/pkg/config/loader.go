// Package config loads environment configuration with validation and
// warn-and-fallback semantics: an invalid value never stops the process, it is
// replaced by the default and reported as a warning.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// LoadResult is the outcome of loading one value.
//
// Warning is empty unless FallbackApplied is true.
//
// Example:
//
//	result := LoadEnvDuration("AI_TIMEOUT", 25*time.Second, ValidatePositiveDuration)
//	if result.FallbackApplied {
//	    slog.Warn(result.Warning)
//	}
//	timeout := result.Value
type LoadResult[T any] struct {
	Key             string
	Value           T
	Warning         string
	FallbackApplied bool
}

// LoadEnv reads key, parses it and validates it.
//
//  1. Not set or empty: the default is used without a warning.
//  2. Parse or validation failure: the default is used and a warning is produced.
//  3. Otherwise the parsed value is used.
//
// validate may be nil.
func LoadEnv[T any](key string, defaultValue T, parse func(string) (T, error), validate func(T) error) LoadResult[T] {
	raw := os.Getenv(key)
	if raw == "" {
		return LoadResult[T]{Key: key, Value: defaultValue}
	}

	value, err := parse(raw)
	if err == nil && validate != nil {
		err = validate(value)
	}
	if err != nil {
		return LoadResult[T]{
			Key:             key,
			Value:           defaultValue,
			Warning:         fmt.Sprintf("invalid %s=%q: %v, falling back to default %v", key, raw, err, defaultValue),
			FallbackApplied: true,
		}
	}
	return LoadResult[T]{Key: key, Value: value}
}

// LoadEnvString loads a string. An empty value counts as unset.
func LoadEnvString(key, defaultValue string, validate func(string) error) LoadResult[string] {
	return LoadEnv(key, defaultValue, func(s string) (string, error) { return s, nil }, validate)
}

// LoadEnvInt loads a base-10 integer.
func LoadEnvInt(key string, defaultValue int, validate func(int) error) LoadResult[int] {
	return LoadEnv(key, defaultValue, func(s string) (int, error) {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid integer format")
		}
		return v, nil
	}, validate)
}

// LoadEnvFloat loads a float64.
func LoadEnvFloat(key string, defaultValue float64, validate func(float64) error) LoadResult[float64] {
	return LoadEnv(key, defaultValue, func(s string) (float64, error) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number format")
		}
		return v, nil
	}, validate)
}

// LoadEnvDuration loads a duration in time.ParseDuration format ("30s", "1h").
func LoadEnvDuration(key string, defaultValue time.Duration, validate func(time.Duration) error) LoadResult[time.Duration] {
	return LoadEnv(key, defaultValue, time.ParseDuration, validate)
}
