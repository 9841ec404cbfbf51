package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"diet-cookbook/internal/resilience"
)

func fastConfig(attempts int) Config {
	return Config{
		Name:           "test",
		MaxAttempts:    attempts,
		InitialDelay:   5 * time.Millisecond,
		MaxDelay:       20 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

func TestDo_Success(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3), func(ctx context.Context) error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return &HTTPError{StatusCode: 500, Message: "Server Error"}
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDo_ExhaustedReturnsLastErrorUnchanged(t *testing.T) {
	attempts := 0
	var last error
	err := Do(context.Background(), fastConfig(4), func(ctx context.Context) error {
		attempts++
		last = fmt.Errorf("failure %d", attempts)
		return last
	})

	if attempts != 4 {
		t.Errorf("expected 4 attempts, got %d", attempts)
	}
	if err != last {
		t.Errorf("expected the final attempt's error %v, got %v", last, err)
	}
}

func TestDo_TimeoutIsRetried(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(2), func(ctx context.Context) error {
		attempts++
		callCtx, cancel := context.WithTimeout(ctx, time.Millisecond)
		defer cancel()
		<-callCtx.Done()
		return callCtx.Err()
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestDo_BreakerOpenNotRetried(t *testing.T) {
	cfg := fastConfig(5)
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour

	attempts := 0
	start := time.Now()
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		return fmt.Errorf("%w: ai-completion", resilience.ErrBreakerOpen)
	})

	if !errors.Is(err, resilience.ErrBreakerOpen) {
		t.Errorf("expected breaker open error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
	if time.Since(start) > time.Second {
		t.Error("breaker rejection must not wait")
	}
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	invalid := errors.New("unsupported image type")
	attempts := 0
	err := Do(context.Background(), fastConfig(5), func(ctx context.Context) error {
		attempts++
		return Permanent(invalid)
	})

	if !errors.Is(err, invalid) {
		t.Errorf("expected %v, got %v", invalid, err)
	}
	if !IsPermanent(err) {
		t.Error("expected error to stay permanent")
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	cfg := fastConfig(5)
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	upstream := errors.New("connection reset")
	attempts := 0
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		cancel()
	}

	err := Do(ctx, cfg, func(ctx context.Context) error {
		attempts++
		return upstream
	})

	if !errors.Is(err, ErrAborted) {
		t.Errorf("expected ErrAborted, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
	if !errors.Is(err, upstream) {
		t.Errorf("expected last attempt error in chain, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestDo_OnRetryHook(t *testing.T) {
	var delays []time.Duration
	cfg := fastConfig(3)
	cfg.JitterFraction = 0
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		delays = append(delays, delay)
	}

	_ = Do(context.Background(), cfg, func(ctx context.Context) error {
		return errors.New("boom")
	})

	want := []time.Duration{5 * time.Millisecond, 10 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("expected %d retries, got %d", len(want), len(delays))
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("retry %d: expected delay %v, got %v", i+1, want[i], delays[i])
		}
	}
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	attempts := 0
	_ = Do(context.Background(), Config{}, func(ctx context.Context) error {
		attempts++
		return errors.New("boom")
	})
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestBackoff(t *testing.T) {
	cfg := Config{InitialDelay: time.Second, MaxDelay: 4 * time.Second, Multiplier: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: time.Second},
		{attempt: 1, want: time.Second},
		{attempt: 2, want: 2 * time.Second},
		{attempt: 3, want: 4 * time.Second},
		{attempt: 4, want: 4 * time.Second},
		{attempt: 30, want: 4 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := Backoff(cfg, tt.attempt); got != tt.want {
				t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "generic error", err: errors.New("boom"), want: true},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: true},
		{name: "HTTP 503", err: &HTTPError{StatusCode: 503}, want: true},
		{name: "breaker open", err: resilience.ErrBreakerOpen, want: false},
		{name: "wrapped breaker open", err: fmt.Errorf("call: %w", resilience.ErrBreakerOpen), want: false},
		{name: "permanent", err: Permanent(errors.New("bad input")), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default", cfg: DefaultConfig()},
		{name: "ai", cfg: AIAPIConfig()},
		{name: "storage", cfg: StorageConfig()},
		{name: "zero attempts", cfg: Config{Multiplier: 2}, wantErr: true},
		{name: "max below initial", cfg: Config{MaxAttempts: 1, InitialDelay: time.Second, Multiplier: 2}, wantErr: true},
		{name: "multiplier below one", cfg: Config{MaxAttempts: 1, Multiplier: 0.5}, wantErr: true},
		{name: "jitter above one", cfg: Config{MaxAttempts: 1, Multiplier: 2, JitterFraction: 1.5}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAIAPIConfig(t *testing.T) {
	cfg := AIAPIConfig()
	if cfg.MaxAttempts != 2 {
		t.Errorf("expected MaxAttempts=2, got %d", cfg.MaxAttempts)
	}
	if cfg.InitialDelay != time.Second || cfg.MaxDelay != 4*time.Second {
		t.Errorf("unexpected delays: %v..%v", cfg.InitialDelay, cfg.MaxDelay)
	}
}

func TestHTTPError_Error(t *testing.T) {
	err := &HTTPError{StatusCode: 502, Message: "Bad Gateway"}
	if got := err.Error(); got != "HTTP 502: Bad Gateway" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestAddJitter(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		got := addJitter(base, 0.1)
		if got < base || got > base+10*time.Millisecond {
			t.Fatalf("jittered delay %v out of range", got)
		}
	}
}

func TestAddJitter_ZeroFraction(t *testing.T) {
	if got := addJitter(time.Second, 0); got != time.Second {
		t.Errorf("expected no jitter, got %v", got)
	}
}
