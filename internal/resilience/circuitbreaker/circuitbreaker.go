// Package circuitbreaker provides circuit breaker implementations for external service calls.
// It uses the github.com/sony/gobreaker library to prevent cascading failures.
//
// A breaker trips after FailureThreshold consecutive failures, rejects calls while open,
// and lets a single probe through once RecoveryTimeout has elapsed. The probe's result
// closes the breaker or re-opens it.
package circuitbreaker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"diet-cookbook/internal/observability/metrics"
	"diet-cookbook/internal/resilience"
)

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name is the circuit breaker name for logging and metrics
	Name string

	// FailureThreshold is the number of consecutive failures that trips the circuit.
	// Must be at least 1.
	FailureThreshold uint32

	// RecoveryTimeout is how long to stay open before a probe is allowed
	RecoveryTimeout time.Duration

	// IsSuccessful reports whether an error returned by the protected operation
	// should be counted as a success. Default: nil errors and errors marked with
	// resilience.Permanent.
	IsSuccessful func(err error) bool
}

// DefaultConfig returns a default configuration for circuit breakers.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
	}
}

// AICompletionConfig returns configuration for the AI completion provider.
func AICompletionConfig() Config {
	return DefaultConfig("ai-completion")
}

// StorageConfig returns configuration for blob-storage verification calls.
func StorageConfig() Config {
	return DefaultConfig("storage")
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Name == "" {
		return errors.New("circuit breaker name cannot be empty")
	}
	if c.FailureThreshold < 1 {
		return fmt.Errorf("failure threshold must be at least 1, got %d", c.FailureThreshold)
	}
	if c.RecoveryTimeout <= 0 {
		return fmt.Errorf("recovery timeout must be positive, got %v", c.RecoveryTimeout)
	}
	return nil
}

// Snapshot is a point-in-time view of a breaker, used by health endpoints.
type Snapshot struct {
	Name                string    `json:"name"`
	State               string    `json:"state"`
	ConsecutiveFailures uint32    `json:"consecutive_failures"`
	LastFailureAt       time.Time `json:"last_failure_at,omitzero"`
	FailureThreshold    uint32    `json:"failure_threshold"`
	RecoveryTimeout     string    `json:"recovery_timeout"`
}

// CircuitBreaker wraps gobreaker.CircuitBreaker with additional functionality.
type CircuitBreaker struct {
	name     string
	config   Config
	settings gobreaker.Settings

	mu            sync.RWMutex
	breaker       *gobreaker.CircuitBreaker
	lastFailureAt time.Time

	now func() time.Time
}

// New creates a new circuit breaker with the given configuration.
// A zero FailureThreshold or RecoveryTimeout falls back to DefaultConfig values.
func New(cfg Config) *CircuitBreaker {
	defaults := DefaultConfig(cfg.Name)
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = defaults.RecoveryTimeout
	}
	if cfg.IsSuccessful == nil {
		cfg.IsSuccessful = func(err error) bool {
			return err == nil || resilience.IsPermanent(err)
		}
	}

	threshold := cfg.FailureThreshold
	settings := gobreaker.Settings{
		Name: cfg.Name,
		// One probe at a time while half-open; its success closes the circuit.
		MaxRequests: 1,
		// Zero interval keeps closed-state counts until a success resets them.
		Interval: 0,
		Timeout:  cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: cfg.IsSuccessful,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			metrics.RecordBreakerTransition(name, from.String(), to.String())
		},
	}

	metrics.RecordBreakerState(cfg.Name, gobreaker.StateClosed.String())

	return &CircuitBreaker{
		name:     cfg.Name,
		config:   cfg,
		settings: settings,
		breaker:  gobreaker.NewCircuitBreaker(settings),
		now:      time.Now,
	}
}

// Execute runs the given function through the circuit breaker.
//
// On success it returns fn's result. While the circuit is open (or a half-open probe
// is already in flight) it returns an error matching resilience.ErrBreakerOpen without
// calling fn. A failure of fn is recorded and fn's own error is returned unchanged.
//
// LastFailureAt is stamped when the failing fn returns, before gobreaker counts the
// failure, and only ever moves forward. Concurrent failures therefore report the
// latest of their return times.
func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	breaker := cb.current()

	result, err := breaker.Execute(func() (interface{}, error) {
		result, err := fn()
		if err != nil && !cb.config.IsSuccessful(err) {
			cb.markFailure(cb.now())
		}
		return result, err
	})
	if err == nil {
		return result, nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.RecordBreakerRejection(cb.name)
		return nil, fmt.Errorf("%w: %s: %w", resilience.ErrBreakerOpen, cb.name, err)
	}

	return result, err
}

func (cb *CircuitBreaker) markFailure(at time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if at.After(cb.lastFailureAt) {
		cb.lastFailureAt = at
	}
}

// Reset forces the circuit closed with zero failures.
// It is meant for administrative recovery once the dependency is known to be healthy.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	previous := cb.breaker.State()
	cb.breaker = gobreaker.NewCircuitBreaker(cb.settings)
	cb.lastFailureAt = time.Time{}
	cb.mu.Unlock()

	slog.Warn("circuit breaker reset",
		slog.String("circuit", cb.name),
		slog.String("from", previous.String()))
	if previous != gobreaker.StateClosed {
		metrics.RecordBreakerTransition(cb.name, previous.String(), gobreaker.StateClosed.String())
	}
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.current().State()
}

// Counts returns the request counts of the current generation.
func (cb *CircuitBreaker) Counts() gobreaker.Counts {
	return cb.current().Counts()
}

// ConsecutiveFailures returns the number of failures since the last success.
func (cb *CircuitBreaker) ConsecutiveFailures() uint32 {
	return cb.Counts().ConsecutiveFailures
}

// LastFailureAt returns the time of the most recent recorded failure.
// The zero time means no failure was recorded since creation or the last Reset.
func (cb *CircuitBreaker) LastFailureAt() time.Time {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.lastFailureAt
}

// Name returns the name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// IsOpen returns true if the circuit breaker is in the open state.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == gobreaker.StateOpen
}

// Snapshot returns the breaker's current state for reporting.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	return Snapshot{
		Name:                cb.name,
		State:               cb.State().String(),
		ConsecutiveFailures: cb.ConsecutiveFailures(),
		LastFailureAt:       cb.LastFailureAt(),
		FailureThreshold:    cb.config.FailureThreshold,
		RecoveryTimeout:     cb.config.RecoveryTimeout.String(),
	}
}

func (cb *CircuitBreaker) current() *gobreaker.CircuitBreaker {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.breaker
}

// ErrOpen is returned when the circuit rejects a call. It is resilience.ErrBreakerOpen.
var ErrOpen = resilience.ErrBreakerOpen
