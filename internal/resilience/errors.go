package resilience

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrRateLimited is returned when the caller exceeded the admission rate of its
	// traffic class. The caller may retry after the window slides.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrBudgetExceeded is returned when the estimated cost would push cumulative spend
	// past the configured ceiling. It requires operator intervention and is not retryable.
	ErrBudgetExceeded = errors.New("usage budget exceeded")

	// ErrBreakerOpen is returned when a dependency's circuit breaker refuses the call.
	// The protected operation was not invoked.
	ErrBreakerOpen = errors.New("circuit breaker open")
)

// UpstreamError is returned when the protected operation failed on every attempt.
// It carries the error of the final attempt.
type UpstreamError struct {
	Dependency string
	Attempts   int
	Err        error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream failure after %d attempt(s): %v", e.Dependency, e.Attempts, e.Err)
}

// Unwrap returns the underlying failure.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// permanentError marks a failure that must not be retried and must not count
// against a circuit breaker (e.g. the dependency answered, but the input was invalid).
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable. A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or any error it wraps, was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Outcome classifies the result of a protected invocation. Call sites switch on it
// instead of matching error strings.
type Outcome int

const (
	// OutcomeAdmitted means the operation ran and succeeded.
	OutcomeAdmitted Outcome = iota
	// OutcomeRateLimited means the call was refused by the rate limiter.
	OutcomeRateLimited
	// OutcomeBudgetExceeded means the call was refused by the usage guard.
	OutcomeBudgetExceeded
	// OutcomeBreakerOpen means the circuit breaker refused the call.
	OutcomeBreakerOpen
	// OutcomeUpstream means the operation failed after exhausting its attempts.
	OutcomeUpstream
	// OutcomeCanceled means the caller's context ended before a result was produced.
	OutcomeCanceled
)

// String returns the label used for logs and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeAdmitted:
		return "admitted"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeBudgetExceeded:
		return "budget_exceeded"
	case OutcomeBreakerOpen:
		return "breaker_open"
	case OutcomeUpstream:
		return "upstream_failure"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// OutcomeOf maps an error returned by the invoker to its Outcome.
// A nil error is OutcomeAdmitted. A bare context error means the caller gave up;
// a per-call timeout arrives wrapped in *UpstreamError and stays OutcomeUpstream.
// Errors outside the taxonomy are OutcomeUpstream.
func OutcomeOf(err error) Outcome {
	var upstream *UpstreamError
	switch {
	case err == nil:
		return OutcomeAdmitted
	case errors.Is(err, ErrRateLimited):
		return OutcomeRateLimited
	case errors.Is(err, ErrBudgetExceeded):
		return OutcomeBudgetExceeded
	case errors.Is(err, ErrBreakerOpen):
		return OutcomeBreakerOpen
	case errors.As(err, &upstream):
		return OutcomeUpstream
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeUpstream
	}
}
