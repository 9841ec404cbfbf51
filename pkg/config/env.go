// Package config reads typed values from environment variables.
//
// Unset or empty variables yield the default silently. Values that fail to
// parse yield the default and log a warning, so a typo never stops startup.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnvString returns the value of key, or defaultValue if it is unset or empty.
//
// Example:
//
//	endpoint := GetEnvString("STORAGE_ENDPOINT", "http://localhost:9000")
func GetEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt returns the value of key as an int.
//
// Example:
//
//	port := GetEnvInt("PORT", 8080)
func GetEnvInt(key string, defaultValue int) int {
	return getEnv(key, defaultValue, strconv.Atoi)
}

// GetEnvFloat returns the value of key as a float64.
//
// Example:
//
//	ceiling := GetEnvFloat("AI_SPEND_CEILING", 5.0)
func GetEnvFloat(key string, defaultValue float64) float64 {
	return getEnv(key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// GetEnvBool returns the value of key as a bool.
//
// Accepted values are those of strconv.ParseBool: 1, t, T, TRUE, true, True,
// 0, f, F, FALSE, false, False.
func GetEnvBool(key string, defaultValue bool) bool {
	return getEnv(key, defaultValue, strconv.ParseBool)
}

// GetEnvDuration returns the value of key parsed by time.ParseDuration ("30s", "1h30m").
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	return getEnv(key, defaultValue, time.ParseDuration)
}

// GetEnvStringList returns a comma-separated list with blank entries dropped.
//
//	RATELIMIT_TRUSTED_PROXIES="10.0.0.0/8, 172.16.0.0/12"
//	// ["10.0.0.0/8", "172.16.0.0/12"]
func GetEnvStringList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}

func getEnv[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := parse(valueStr)
	if err != nil {
		slog.Warn("invalid value for environment variable, using default",
			slog.String("key", key),
			slog.String("value", valueStr),
			slog.Any("default", defaultValue),
			slog.String("error", err.Error()))
		return defaultValue
	}
	return value
}
