package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the configuration of one Limiter.
type Config struct {
	// Name identifies the traffic class in logs and metrics (e.g., "auth").
	Name string

	// Limit is the maximum number of requests per key within Window. Must be >= 1.
	Limit int

	// Window is the sliding window length. Must be positive.
	Window time.Duration

	// MaxKeys bounds the number of keys held in memory. Default: 10000
	MaxKeys int
}

// AuthConfig returns the limits for login and registration attempts: 5 per minute.
func AuthConfig() Config {
	return Config{
		Name:    "auth",
		Limit:   5,
		Window:  60 * time.Second,
		MaxKeys: 10000,
	}
}

// AIGenerationConfig returns the limits for AI generation: 10 per hour.
func AIGenerationConfig() Config {
	return Config{
		Name:    "ai-generation",
		Limit:   10,
		Window:  time.Hour,
		MaxKeys: 10000,
	}
}

// ApplyDefaults fills zero optional fields.
func (c *Config) ApplyDefaults() {
	if c.MaxKeys <= 0 {
		c.MaxKeys = 10000
	}
}

// Validate checks if the Config is valid.
func (c Config) Validate() error {
	if c.Name == "" {
		return errors.New("limiter name cannot be empty")
	}
	if c.Limit < 1 {
		return fmt.Errorf("limit must be at least 1, got %d", c.Limit)
	}
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive, got %v", c.Window)
	}
	if c.MaxKeys < 0 {
		return fmt.Errorf("max keys must be non-negative, got %d", c.MaxKeys)
	}
	return nil
}
