package invoker

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"diet-cookbook/internal/resilience"
	"diet-cookbook/internal/resilience/circuitbreaker"
	"diet-cookbook/internal/resilience/retry"
	"diet-cookbook/internal/usage"
	"diet-cookbook/pkg/ratelimit"
)

var spans = tracetest.NewSpanRecorder()

func TestMain(m *testing.M) {
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)))
	os.Exit(m.Run())
}

var errUpstream = errors.New("provider returned 500")

type fixture struct {
	limiter *ratelimit.Limiter
	guard   *usage.Guard
	breaker *circuitbreaker.CircuitBreaker
	calls   atomic.Int32
}

func newFixture(t *testing.T, limit int, ceiling float64, threshold uint32) *fixture {
	t.Helper()
	guard, err := usage.NewGuard("test-"+t.Name(), ceiling)
	require.NoError(t, err)
	return &fixture{
		limiter: ratelimit.MustNewLimiter(ratelimit.Config{Name: "test", Limit: limit, Window: time.Minute}, ratelimit.Dependencies{}),
		guard:   guard,
		breaker: circuitbreaker.New(circuitbreaker.Config{Name: "test-" + t.Name(), FailureThreshold: threshold, RecoveryTimeout: time.Minute}),
	}
}

func (f *fixture) invoker(attempts int) *Invoker[string] {
	return New[string](Options{
		Name:    "test-dependency",
		Limiter: f.limiter,
		Guard:   f.guard,
		Breaker: f.breaker,
		Retry:   retry.Config{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2},
		Timeout: time.Second,
		Pricing: usage.Pricing{PerUnitIn: 0.001, PerUnitOut: 0.002},
	})
}

func (f *fixture) succeed(value string, report usage.Report) Operation[string] {
	return func(ctx context.Context) (string, usage.Report, error) {
		f.calls.Add(1)
		return value, report, nil
	}
}

func (f *fixture) fail() Operation[string] {
	return func(ctx context.Context) (string, usage.Report, error) {
		f.calls.Add(1)
		return "", usage.Report{}, errUpstream
	}
}

func TestInvoke_Success_RecordsUsage(t *testing.T) {
	f := newFixture(t, 10, 5.0, 5)

	got, err := f.invoker(2).Invoke(context.Background(), "1.2.3.4", 0.01, f.succeed("recipe", usage.Report{UnitsIn: 100, UnitsOut: 50}))

	require.NoError(t, err)
	assert.Equal(t, "recipe", got)
	assert.Equal(t, int32(1), f.calls.Load())

	snap := f.guard.Snapshot()
	assert.InDelta(t, 0.2, snap.Spend, 1e-9)
	assert.Equal(t, int64(150), snap.Units)
}

func TestInvoke_RateLimited_SkipsBudgetAndOperation(t *testing.T) {
	f := newFixture(t, 1, 0, 5) // zero ceiling: any budget check would refuse
	inv := f.invoker(1)

	_, err := inv.Invoke(context.Background(), "k", 0, f.succeed("ok", usage.Report{}))
	require.NoError(t, err)

	_, err = inv.Invoke(context.Background(), "k", 1.0, f.succeed("ok", usage.Report{}))
	assert.ErrorIs(t, err, resilience.ErrRateLimited)
	assert.NotErrorIs(t, err, resilience.ErrBudgetExceeded)
	assert.Equal(t, resilience.OutcomeRateLimited, resilience.OutcomeOf(err))
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestInvoke_BudgetExceeded_SkipsOperation(t *testing.T) {
	f := newFixture(t, 10, 5.0, 5)
	_, _ = f.guard.RecordUsage(499, 0, 0.01, 0)

	_, err := f.invoker(2).Invoke(context.Background(), "k", 0.02, f.succeed("ok", usage.Report{}))

	assert.ErrorIs(t, err, resilience.ErrBudgetExceeded)
	assert.Zero(t, f.calls.Load())
}

func TestInvoke_RetriesThenUpstreamError(t *testing.T) {
	f := newFixture(t, 10, 5.0, 5)

	_, err := f.invoker(3).Invoke(context.Background(), "k", 0.01, f.fail())

	var upstream *resilience.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "test-dependency", upstream.Dependency)
	assert.Equal(t, 3, upstream.Attempts)
	assert.ErrorIs(t, err, errUpstream)
	assert.Equal(t, int32(3), f.calls.Load())
	assert.Zero(t, f.guard.Snapshot().Spend, "failed attempts reported no usage")
}

func TestInvoke_RecordsUsageOfFailedAttempts(t *testing.T) {
	f := newFixture(t, 10, 5.0, 5)
	billedButUnusable := func(ctx context.Context) (string, usage.Report, error) {
		f.calls.Add(1)
		return "", usage.Report{UnitsIn: 100, UnitsOut: 50}, errors.New("response is not valid JSON")
	}

	_, err := f.invoker(3).Invoke(context.Background(), "k", 0.01, billedButUnusable)

	require.Equal(t, resilience.OutcomeUpstream, resilience.OutcomeOf(err))
	assert.Equal(t, int32(3), f.calls.Load())
	snap := f.guard.Snapshot()
	assert.InDelta(t, 0.6, snap.Spend, 1e-9)
	assert.Equal(t, int64(450), snap.Units)
}

func TestInvoke_FailedAttemptsCountTowardsCeiling(t *testing.T) {
	f := newFixture(t, 100, 0.5, 100)
	inv := f.invoker(1)
	billedButUnusable := func(ctx context.Context) (string, usage.Report, error) {
		f.calls.Add(1)
		return "", usage.Report{UnitsIn: 100, UnitsOut: 50}, errors.New("response is not valid JSON")
	}

	var err error
	for i := 0; i < 10; i++ {
		_, err = inv.Invoke(context.Background(), "k", 0.01, billedButUnusable)
		if errors.Is(err, resilience.ErrBudgetExceeded) {
			break
		}
	}

	assert.ErrorIs(t, err, resilience.ErrBudgetExceeded)
	assert.Equal(t, int32(3), f.calls.Load(), "three billed attempts at 0.2 each exhaust a 0.5 ceiling")
}

func TestInvoke_SucceedsAfterTransientFailure(t *testing.T) {
	f := newFixture(t, 10, 5.0, 5)
	op := func(ctx context.Context) (string, usage.Report, error) {
		if f.calls.Add(1) == 1 {
			return "", usage.Report{}, errUpstream
		}
		return "ok", usage.Report{UnitsIn: 10}, nil
	}

	got, err := f.invoker(2).Invoke(context.Background(), "k", 0.01, op)

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, int32(2), f.calls.Load())
	assert.Zero(t, f.breaker.ConsecutiveFailures())
}

func TestInvoke_BreakerOpen(t *testing.T) {
	f := newFixture(t, 100, 5.0, 5)
	inv := f.invoker(1)

	for i := 0; i < 5; i++ {
		_, err := inv.Invoke(context.Background(), "k", 0, f.fail())
		require.Equal(t, resilience.OutcomeUpstream, resilience.OutcomeOf(err))
	}

	_, err := inv.Invoke(context.Background(), "k", 0, f.fail())
	assert.ErrorIs(t, err, resilience.ErrBreakerOpen)
	assert.Equal(t, resilience.OutcomeBreakerOpen, resilience.OutcomeOf(err))
	assert.Equal(t, int32(5), f.calls.Load())
}

func TestInvoke_BreakerTripsDuringRetries(t *testing.T) {
	f := newFixture(t, 100, 5.0, 2)

	_, err := f.invoker(5).Invoke(context.Background(), "k", 0, f.fail())

	assert.ErrorIs(t, err, resilience.ErrBreakerOpen)
	assert.Equal(t, int32(2), f.calls.Load(), "retry must stop once the breaker opens")
}

func TestInvoke_PerCallTimeoutIsFailure(t *testing.T) {
	f := newFixture(t, 10, 5.0, 5)
	inv := f.invoker(2)
	slow := func(ctx context.Context) (string, usage.Report, error) {
		f.calls.Add(1)
		<-ctx.Done()
		return "", usage.Report{}, ctx.Err()
	}

	_, err := inv.Invoke(context.Background(), "k", 0, slow, WithTimeout(5*time.Millisecond))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, resilience.OutcomeUpstream, resilience.OutcomeOf(err))
	assert.Equal(t, int32(2), f.calls.Load())
	assert.Equal(t, uint32(2), f.breaker.ConsecutiveFailures())
}

func TestInvoke_CanceledDuringBackoff(t *testing.T) {
	f := newFixture(t, 10, 5.0, 5)
	inv := New[string](Options{
		Name:    "test-dependency",
		Breaker: f.breaker,
		Retry:   retry.Config{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 2},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	op := func(ctx context.Context) (string, usage.Report, error) {
		f.calls.Add(1)
		time.AfterFunc(10*time.Millisecond, cancel)
		return "", usage.Report{}, errUpstream
	}

	_, err := inv.Invoke(ctx, "k", 0, op)

	assert.ErrorIs(t, err, retry.ErrAborted)
	assert.ErrorIs(t, err, errUpstream)
	assert.Equal(t, resilience.OutcomeCanceled, resilience.OutcomeOf(err))
	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, uint32(1), f.breaker.ConsecutiveFailures(), "the attempt itself failed before the caller left")
}

func TestInvoke_CallerCancellationDoesNotTripBreaker(t *testing.T) {
	f := newFixture(t, 100, 5.0, 1)
	inv := f.invoker(2)
	waitForCaller := func(ctx context.Context) (string, usage.Report, error) {
		f.calls.Add(1)
		<-ctx.Done()
		return "", usage.Report{}, ctx.Err()
	}

	tests := []struct {
		name    string
		ctx     func() (context.Context, context.CancelFunc)
		wantErr error
	}{
		{
			name: "client disconnects",
			ctx: func() (context.Context, context.CancelFunc) {
				ctx, cancel := context.WithCancel(context.Background())
				time.AfterFunc(20*time.Millisecond, cancel)
				return ctx, cancel
			},
			wantErr: context.Canceled,
		},
		{
			name: "caller deadline passes",
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 20*time.Millisecond)
			},
			wantErr: context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				ctx, cancel := tt.ctx()
				_, err := inv.Invoke(ctx, "k", 0, waitForCaller)
				cancel()

				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, resilience.OutcomeCanceled, resilience.OutcomeOf(err))
			}
			assert.False(t, f.breaker.IsOpen())
			assert.Zero(t, f.breaker.ConsecutiveFailures())
		})
	}

	assert.Equal(t, int32(10), f.calls.Load(), "abandoned calls are not retried")
	got, err := inv.Invoke(context.Background(), "k", 0, f.succeed("ok", usage.Report{}))
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestInvoke_CanceledBeforeAdmission(t *testing.T) {
	f := newFixture(t, 1, 5.0, 5)
	inv := f.invoker(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := inv.Invoke(ctx, "k", 0, f.succeed("ok", usage.Report{}))

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, resilience.ErrRateLimited)
	assert.Equal(t, resilience.OutcomeCanceled, resilience.OutcomeOf(err))
	assert.Zero(t, f.calls.Load())

	_, err = inv.Invoke(context.Background(), "k", 0, f.succeed("ok", usage.Report{}))
	assert.NoError(t, err, "the canceled call did not use the caller's window")
}

func TestInvoke_PermanentErrorIsNotRetried(t *testing.T) {
	f := newFixture(t, 10, 5.0, 1)
	invalid := resilience.Permanent(errors.New("object exceeds size limit"))
	op := func(ctx context.Context) (string, usage.Report, error) {
		f.calls.Add(1)
		return "", usage.Report{}, invalid
	}

	_, err := f.invoker(3).Invoke(context.Background(), "k", 0, op)

	assert.True(t, resilience.IsPermanent(err))
	assert.Equal(t, resilience.OutcomeUpstream, resilience.OutcomeOf(err))
	assert.Equal(t, int32(1), f.calls.Load())
	assert.False(t, f.breaker.IsOpen())
}

func TestInvoke_WithoutLimiterOrGuard(t *testing.T) {
	cb := circuitbreaker.New(circuitbreaker.Config{Name: "bare", FailureThreshold: 1, RecoveryTimeout: time.Minute})
	inv := New[int](Options{Name: "bare", Breaker: cb, Retry: retry.Config{MaxAttempts: 1}})

	got, err := inv.Invoke(context.Background(), "", 100, func(ctx context.Context) (int, usage.Report, error) {
		return 42, usage.Report{UnitsIn: 1}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestRun_TaggedOutcome(t *testing.T) {
	f := newFixture(t, 1, 5.0, 5)
	inv := f.invoker(1)

	first := inv.Run(context.Background(), "k", 0, f.succeed("v", usage.Report{}))
	assert.Equal(t, resilience.OutcomeAdmitted, first.Outcome)
	assert.Equal(t, "v", first.Value)
	assert.NoError(t, first.Err)

	second := inv.Run(context.Background(), "k", 0, f.succeed("v", usage.Report{}))
	assert.Equal(t, resilience.OutcomeRateLimited, second.Outcome)
	assert.Empty(t, second.Value)
}

func TestInvoke_RecordsSpan(t *testing.T) {
	f := newFixture(t, 10, 5.0, 5)
	inv := New[string](Options{
		Name:    "span-dependency",
		Guard:   f.guard,
		Breaker: f.breaker,
		Retry:   retry.Config{MaxAttempts: 1},
	})

	_, err := inv.Invoke(context.Background(), "k", 0, f.succeed("ok", usage.Report{}))
	require.NoError(t, err)

	var found bool
	for _, s := range spans.Ended() {
		if s.Name() != "invoker.span-dependency" {
			continue
		}
		found = true
		assert.Contains(t, s.Attributes(), attribute.String("invoker.outcome", "admitted"))
		assert.Contains(t, s.Attributes(), attribute.Int("invoker.attempts", 1))
	}
	assert.True(t, found, "expected an invoker span")
}

func TestNew_PanicsOnMissingWiring(t *testing.T) {
	assert.Panics(t, func() { New[string](Options{Breaker: circuitbreaker.New(circuitbreaker.DefaultConfig("x"))}) })
	assert.Panics(t, func() { New[string](Options{Name: "x"}) })
}
