package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	errs "enricher/pkg/errors"
)

// BackoffStrategy computes the delay before retry number attempt (1-based).
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ErrorAwareBackoff is implemented by strategies that vary the delay with
// the failure that triggered the retry.
type ErrorAwareBackoff interface {
	BackoffStrategy
	DelayFor(attempt int, err error) time.Duration
}

// ExponentialBackoff implements exponential backoff with jitter
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// JitterFactor spreads delays by ±factor (0.0 to 1.0)
	JitterFactor float64
}

// DefaultExponentialBackoff returns a backoff with sensible defaults
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NextDelay calculates the next delay with exponential backoff and jitter
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	multiplier := eb.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := float64(eb.BaseDelay) * math.Pow(multiplier, float64(attempt-1))
	if eb.MaxDelay > 0 && delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.JitterFactor > 0 {
		jitter := delay * eb.JitterFactor
		delay += (rand.Float64() * 2 * jitter) - jitter
	}
	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// TypedBackoff picks a strategy per error type and never waits less than
// a server-provided Retry-After hint.
type TypedBackoff struct {
	Network   BackoffStrategy
	RateLimit BackoffStrategy
	Server    BackoffStrategy
	Default   BackoffStrategy
}

// NewTypedBackoff derives per-type strategies from one base delay. A
// multiplier of 1 or less gives fixed delays.
func NewTypedBackoff(base, maxDelay time.Duration, multiplier float64) *TypedBackoff {
	if maxDelay <= 0 {
		maxDelay = 60 * time.Second
	}
	if multiplier <= 1 {
		return &TypedBackoff{
			Network:   &ConstantBackoff{Delay: base},
			RateLimit: &ConstantBackoff{Delay: 30 * base},
			Server:    &ConstantBackoff{Delay: 5 * base},
			Default:   &ConstantBackoff{Delay: base},
		}
	}
	return &TypedBackoff{
		Network: &ExponentialBackoff{BaseDelay: base, MaxDelay: maxDelay, Multiplier: multiplier, JitterFactor: 0.2},
		// Airtable locks a client out for 30s after a 429
		RateLimit: &ExponentialBackoff{BaseDelay: 30 * base, MaxDelay: 5 * maxDelay, Multiplier: 1.5, JitterFactor: 0.3},
		Server:    &ExponentialBackoff{BaseDelay: 5 * base, MaxDelay: maxDelay, Multiplier: multiplier, JitterFactor: 0.1},
		Default:   &ExponentialBackoff{BaseDelay: base, MaxDelay: maxDelay, Multiplier: multiplier, JitterFactor: 0.1},
	}
}

// NextDelay is used when no error is available.
func (tb *TypedBackoff) NextDelay(attempt int) time.Duration {
	return tb.Default.NextDelay(attempt)
}

// DelayFor returns the delay for err's type, raised to its RetryAfter hint.
func (tb *TypedBackoff) DelayFor(attempt int, err error) time.Duration {
	var delay time.Duration
	switch errs.TypeOf(err) {
	case errs.ErrorTypeNetwork:
		delay = tb.Network.NextDelay(attempt)
	case errs.ErrorTypeRateLimit:
		delay = tb.RateLimit.NextDelay(attempt)
	case errs.ErrorTypeServerError:
		delay = tb.Server.NextDelay(attempt)
	default:
		delay = tb.Default.NextDelay(attempt)
	}

	var e *errs.Error
	if asError(err, &e) && e.RetryAfter > delay {
		delay = e.RetryAfter
	}
	return delay
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
