// Package retry provides bounded retries with backoff for calls to the
// external services the pipeline depends on.
//
// Adapter clients retry transient failures (network errors, 429, 5xx) with a
// TypedBackoff that honors Retry-After hints:
//
//	cfg := retry.FromConfig(appCfg.Retry, log)
//	err := retry.Do(ctx, cfg, func(ctx context.Context) error {
//		return client.send(ctx, req)
//	})
//
// The per-unit trait extraction policy uses UnitRetryIf instead, which also
// retries malformed model replies:
//
//	cfg := &retry.Config{
//		MaxAttempts: 2,
//		Backoff:     &retry.ExponentialBackoff{BaseDelay: time.Second, Multiplier: 2},
//		RetryIf:     retry.UnitRetryIf,
//	}
//
// Do never retries context cancellation and returns the last error wrapped
// as "max retry attempts (N) exceeded" once attempts run out.
package retry
