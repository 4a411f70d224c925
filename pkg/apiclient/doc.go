// Package apiclient is the shared HTTP layer under the Airtable and Apify
// adapters.
//
// A Client sends JSON requests with a fixed header set and, when a token is
// configured, bearer authentication. Every logical call waits on the client's
// rate limiter and runs under a retry policy; the request is rebuilt on each
// attempt so bodies are never consumed twice. Failure statuses are mapped
// onto the pkg/errors taxonomy (401/403 auth, 404 not_found, 429 rate_limit,
// 408/5xx server_error) and carry any Retry-After hint so the typed backoff
// can honor it.
//
//	c := apiclient.New(apiclient.Options{
//		Service: "airtable",
//		BaseURL: "https://api.airtable.com",
//		Token:   cfg.Airtable.APIKey,
//		Limiter: ratelimit.NewTokenBucket(5, time.Second),
//		Retry:   retry.FromConfig(cfg.Retry, log),
//	})
//	var page airtable.Page
//	err := c.GetJSON(ctx, "/v0/appX/tblY", url.Values{"pageSize": {"100"}}, &page)
package apiclient
