// Package ratelimit paces calls to the external services.
//
// Implementations:
//   - TokenBucket: fixed capacity refilled once per period; the Airtable
//     client uses 5 requests per second.
//   - SlidingWindow: at most N requests in any moving window; the completion
//     client uses requests-per-minute.
//   - Interval: minimum spacing between consecutive calls, backed by
//     golang.org/x/time/rate; used between record updates and field creation.
//   - Unlimited: never blocks.
//
// Wait honors context cancellation so a cancelled job never sleeps on a
// limiter:
//
//	limiter := ratelimit.NewInterval(500 * time.Millisecond)
//	for _, rec := range records {
//	    if err := limiter.Wait(ctx); err != nil {
//	        return err
//	    }
//	    update(rec)
//	}
package ratelimit
