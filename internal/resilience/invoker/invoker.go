// Package invoker composes rate limiting, the usage guard, retry and the circuit
// breaker into the single entry point every external call site goes through.
//
// Checks run in a fixed order: the caller's rate limit, then the spend ceiling,
// then the operation itself under retry and breaker protection with a per-call
// timeout. Usage is recorded for every attempt that reports consumption,
// whether or not its result was usable.
package invoker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"diet-cookbook/internal/observability/metrics"
	"diet-cookbook/internal/observability/tracing"
	"diet-cookbook/internal/resilience"
	"diet-cookbook/internal/resilience/retry"
	"diet-cookbook/internal/usage"
)

// Operation is the protected I/O call. It returns its result and the usage it consumed.
type Operation[T any] func(ctx context.Context) (T, usage.Report, error)

// Limiter admits or refuses a caller. *ratelimit.Limiter satisfies it.
type Limiter interface {
	IsAllowed(ctx context.Context, key string) bool
}

// Guard enforces the spend ceiling. *usage.Guard satisfies it.
type Guard interface {
	CanProceed(estimatedCost float64) bool
	Record(r usage.Report, p usage.Pricing) (float64, error)
}

// Breaker protects a dependency. *circuitbreaker.CircuitBreaker satisfies it.
type Breaker interface {
	Execute(fn func() (interface{}, error)) (interface{}, error)
}

// Options configures an Invoker. Name and Breaker are required.
type Options struct {
	// Name identifies the dependency in errors, logs, spans and metrics.
	Name string

	// Limiter is optional. When nil every caller is admitted.
	Limiter Limiter

	// Guard is optional. When nil no budget is enforced and no usage is recorded.
	Guard Guard

	Breaker Breaker
	Retry   retry.Config

	// Timeout bounds each attempt. Zero disables the per-call timeout.
	Timeout time.Duration

	// Pricing converts reported usage into spend.
	Pricing usage.Pricing
}

// Invoker runs operations returning T against one protected dependency.
type Invoker[T any] struct {
	name    string
	limiter Limiter
	guard   Guard
	breaker Breaker
	retry   retry.Config
	timeout time.Duration
	pricing usage.Pricing
}

// New creates an Invoker. It panics if Name or Breaker is missing,
// since that is a wiring mistake rather than a runtime condition.
func New[T any](opts Options) *Invoker[T] {
	if opts.Name == "" {
		panic("invoker: name is required")
	}
	if opts.Breaker == nil {
		panic("invoker: breaker is required")
	}
	if opts.Retry.Name == "" {
		opts.Retry.Name = opts.Name
	}
	return &Invoker[T]{
		name:    opts.Name,
		limiter: opts.Limiter,
		guard:   opts.Guard,
		breaker: opts.Breaker,
		retry:   opts.Retry,
		timeout: opts.Timeout,
		pricing: opts.Pricing,
	}
}

// CallOption adjusts a single invocation.
type CallOption func(*callOptions)

type callOptions struct {
	timeout time.Duration
}

// WithTimeout overrides the per-attempt timeout for one call,
// e.g. for a vision request that needs longer than a text completion.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) { o.timeout = d }
}

// Result is the tagged outcome of an invocation.
type Result[T any] struct {
	Value   T
	Outcome resilience.Outcome
	Err     error
}

// Run is Invoke returning a Result, for call sites that switch on Outcome.
func (i *Invoker[T]) Run(ctx context.Context, callerKey string, estimatedCost float64, op Operation[T], opts ...CallOption) Result[T] {
	value, err := i.Invoke(ctx, callerKey, estimatedCost, op, opts...)
	return Result[T]{Value: value, Outcome: resilience.OutcomeOf(err), Err: err}
}

// Invoke runs op for callerKey.
//
// It returns an error matching resilience.ErrRateLimited or resilience.ErrBudgetExceeded
// without running op when the caller or the budget is refused, one matching
// resilience.ErrBreakerOpen when the circuit rejects the call, and a
// *resilience.UpstreamError carrying the last failure when every attempt failed.
// If ctx ends during an attempt or its backoff the result wraps retry.ErrAborted and
// the context error; a ctx that is already done is refused with its own error.
func (i *Invoker[T]) Invoke(ctx context.Context, callerKey string, estimatedCost float64, op Operation[T], opts ...CallOption) (T, error) {
	call := callOptions{timeout: i.timeout}
	for _, opt := range opts {
		opt(&call)
	}

	invocationID := uuid.NewString()
	start := time.Now()

	ctx, span := tracing.GetTracer().Start(ctx, "invoker."+i.name,
		trace.WithAttributes(
			attribute.String("invoker.dependency", i.name),
			attribute.String("invoker.id", invocationID),
			attribute.Float64("invoker.estimated_cost", estimatedCost),
		))
	defer span.End()

	value, attempts, err := i.invoke(ctx, callerKey, estimatedCost, op, call)

	outcome := resilience.OutcomeOf(err)
	elapsed := time.Since(start)
	span.SetAttributes(
		attribute.String("invoker.outcome", outcome.String()),
		attribute.Int("invoker.attempts", attempts),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome.String())
	}
	metrics.RecordInvocation(i.name, outcome.String(), elapsed)

	attrs := []any{
		slog.String("dependency", i.name),
		slog.String("invocation_id", invocationID),
		slog.String("outcome", outcome.String()),
		slog.Int("attempts", attempts),
		slog.Duration("duration", elapsed),
	}
	switch outcome {
	case resilience.OutcomeAdmitted:
		slog.Debug("invocation succeeded", attrs...)
	case resilience.OutcomeUpstream:
		slog.Error("invocation failed", append(attrs, slog.Any("error", err))...)
	default:
		slog.Warn("invocation refused", append(attrs, slog.Any("error", err))...)
	}

	return value, err
}

func (i *Invoker[T]) invoke(ctx context.Context, callerKey string, estimatedCost float64, op Operation[T], call callOptions) (T, int, error) {
	var zero T

	// A caller that already gave up is neither admitted nor counted against its window.
	if err := ctx.Err(); err != nil {
		return zero, 0, fmt.Errorf("%s: %w", i.name, err)
	}
	if i.limiter != nil && !i.limiter.IsAllowed(ctx, callerKey) {
		return zero, 0, fmt.Errorf("%w: %s", resilience.ErrRateLimited, i.name)
	}
	if i.guard != nil && !i.guard.CanProceed(estimatedCost) {
		return zero, 0, fmt.Errorf("%w: %s: estimated cost %.4f", resilience.ErrBudgetExceeded, i.name, estimatedCost)
	}

	var (
		result   T
		attempts int
	)
	err := retry.Do(ctx, i.retry, func(ctx context.Context) error {
		attempts++
		_, err := i.breaker.Execute(func() (interface{}, error) {
			callCtx, cancel := i.withTimeout(ctx, call.timeout)
			defer cancel()

			v, r, err := op(callCtx)
			// A billed response is recorded even when it turns out to be unusable.
			i.record(r)
			if err != nil {
				if ctx.Err() != nil {
					// The caller left; that says nothing about the dependency.
					return nil, resilience.Permanent(err)
				}
				return nil, err
			}
			result = v
			return nil, nil
		})
		return err
	})

	switch {
	case err == nil:
		return result, attempts, nil
	case errors.Is(err, resilience.ErrBreakerOpen), errors.Is(err, retry.ErrAborted):
		return zero, attempts, err
	case ctx.Err() != nil:
		return zero, attempts, errors.Join(retry.ErrAborted, ctx.Err(), err)
	default:
		return zero, attempts, &resilience.UpstreamError{Dependency: i.name, Attempts: attempts, Err: err}
	}
}

func (i *Invoker[T]) record(r usage.Report) {
	if i.guard == nil || r.Total() == 0 {
		return
	}
	if _, err := i.guard.Record(r, i.pricing); err != nil {
		slog.Error("failed to record usage",
			slog.String("dependency", i.name),
			slog.Any("error", err))
	}
}

func (i *Invoker[T]) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Name returns the dependency name.
func (i *Invoker[T]) Name() string {
	return i.name
}
