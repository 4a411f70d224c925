package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	errs "enricher/pkg/errors"
	"enricher/pkg/logger"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
		name     string
	}{
		{0, 0, "no attempt"},
		{1, 100 * time.Millisecond, "first retry"},
		{2, 200 * time.Millisecond, "second retry"},
		{3, 400 * time.Millisecond, "third retry"},
		{4, 800 * time.Millisecond, "fourth retry"},
		{5, 1 * time.Second, "capped at max"},
		{9, 1 * time.Second, "still capped"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if delay := backoff.NextDelay(test.attempt); delay != test.expected {
				t.Errorf("expected %v, got %v", test.expected, delay)
			}
		})
	}
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.5,
	}

	for i := 0; i < 50; i++ {
		delay := backoff.NextDelay(2)
		if delay < 100*time.Millisecond || delay > 300*time.Millisecond {
			t.Fatalf("delay %v outside jitter bounds", delay)
		}
	}
}

func TestTypedBackoffHonorsRetryAfter(t *testing.T) {
	tb := &TypedBackoff{
		Network:   &ConstantBackoff{Delay: time.Millisecond},
		RateLimit: &ConstantBackoff{Delay: 2 * time.Millisecond},
		Server:    &ConstantBackoff{Delay: 3 * time.Millisecond},
		Default:   &ConstantBackoff{Delay: 4 * time.Millisecond},
	}

	tests := []struct {
		name string
		err  error
		want time.Duration
	}{
		{"network", errs.New(errs.ErrorTypeNetwork, "reset"), time.Millisecond},
		{"rate limit", errs.New(errs.ErrorTypeRateLimit, "429"), 2 * time.Millisecond},
		{"server", errs.New(errs.ErrorTypeServerError, "502"), 3 * time.Millisecond},
		{"untyped", errors.New("eof"), 4 * time.Millisecond},
		{"retry after wins", &errs.Error{Type: errs.ErrorTypeRateLimit, RetryAfter: time.Second}, time.Second},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := tb.DelayFor(1, test.err); got != test.want {
				t.Errorf("expected %v, got %v", test.want, got)
			}
		})
	}
}

func TestTypedBackoffWithoutGrowthIsFixed(t *testing.T) {
	tb := NewTypedBackoff(10*time.Millisecond, time.Second, 1)

	for _, attempt := range []int{1, 2, 5} {
		if got := tb.DelayFor(attempt, errs.New(errs.ErrorTypeServerError, "503")); got != 50*time.Millisecond {
			t.Errorf("attempt %d: expected 50ms, got %v", attempt, got)
		}
		if got := tb.DelayFor(attempt, errs.New(errs.ErrorTypeNetwork, "reset")); got != 10*time.Millisecond {
			t.Errorf("attempt %d: expected 10ms, got %v", attempt, got)
		}
	}
}

func TestDo(t *testing.T) {
	fast := func() *Config {
		return &Config{
			MaxAttempts: 3,
			Backoff:     &ConstantBackoff{Delay: time.Millisecond},
			RetryIf:     DefaultRetryIf,
			Logger:      logger.NewTestLogger(),
		}
	}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), fast(), func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errs.FromStatusCode(503, "unavailable")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("stops on permanent error", func(t *testing.T) {
		calls := 0
		permanent := errs.FromStatusCode(401, "bad key")
		err := Do(context.Background(), fast(), func(ctx context.Context) error {
			calls++
			return permanent
		})
		if !errors.Is(err, permanent) {
			t.Fatalf("expected permanent error, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		calls := 0
		var retries []int
		cfg := fast()
		cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
			retries = append(retries, attempt)
		}
		err := Do(context.Background(), cfg, func(ctx context.Context) error {
			calls++
			return errs.New(errs.ErrorTypeNetwork, "timeout")
		})
		if err == nil || !strings.Contains(err.Error(), "max retry attempts (3) exceeded") {
			t.Fatalf("expected exhaustion error, got %v", err)
		}
		if !errs.Is(err, errs.ErrorTypeNetwork) {
			t.Errorf("expected wrapped network error, got %v", err)
		}
		if calls != 3 || len(retries) != 2 {
			t.Errorf("expected 3 calls and 2 retries, got %d and %d", calls, len(retries))
		}
	})

	t.Run("context cancellation interrupts wait", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cfg := fast()
		cfg.Backoff = &ConstantBackoff{Delay: time.Minute}
		cfg.OnRetry = func(int, error, time.Duration) { cancel() }

		err := Do(ctx, cfg, func(ctx context.Context) error {
			return errs.New(errs.ErrorTypeServerError, "500")
		})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("single attempt when unset", func(t *testing.T) {
		calls := 0
		cfg := &Config{Backoff: &ConstantBackoff{}}
		_ = Do(context.Background(), cfg, func(ctx context.Context) error {
			calls++
			return errors.New("fail")
		})
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	cfg := &Config{MaxAttempts: 2, Backoff: &ConstantBackoff{Delay: time.Millisecond}}
	got, err := DoWithResult(context.Background(), cfg, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("expected ok, got %q, %v", got, err)
	}
}

func TestRetryPredicates(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		adapter bool
		perUnit bool
	}{
		{"nil", nil, false, false},
		{"network", errs.New(errs.ErrorTypeNetwork, "x"), true, true},
		{"malformed", errs.New(errs.ErrorTypeMalformed, "x"), false, true},
		{"config", errs.Config("missing key"), false, false},
		{"auth", errs.FromStatusCode(401, "x"), false, false},
		{"cancelled ctx", context.Canceled, false, false},
		{"untyped", errors.New("x"), true, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := DefaultRetryIf(test.err); got != test.adapter {
				t.Errorf("DefaultRetryIf = %v, want %v", got, test.adapter)
			}
			if got := UnitRetryIf(test.err); got != test.perUnit {
				t.Errorf("UnitRetryIf = %v, want %v", got, test.perUnit)
			}
		})
	}
}

func TestWait(t *testing.T) {
	if err := Wait(context.Background(), 0); err != nil {
		t.Errorf("zero wait: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Wait(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation, got %v", err)
	}
}
