package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	errs "enricher/pkg/errors"
	"enricher/pkg/logger"
	"enricher/pkg/ratelimit"
	"enricher/pkg/retry"
)

const bodyPreviewLimit = 200

// Options configures a Client.
type Options struct {
	// Service names the remote API in logs and errors.
	Service string
	BaseURL string
	// Token is sent as a bearer token when set.
	Token   string
	Timeout time.Duration
	Limiter ratelimit.Limiter
	// Retry governs transient failures. Nil means a single attempt.
	Retry      *retry.Config
	HTTPClient *http.Client
	Logger     logger.Logger
}

// Client is a JSON-over-HTTP client with bounded timeouts, pacing and
// retries on transient failures.
type Client struct {
	service    string
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	limiter    ratelimit.Limiter
	retry      *retry.Config
	logger     logger.Logger
}

// New creates a client.
func New(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	rc := opts.Retry
	if rc == nil {
		rc = &retry.Config{MaxAttempts: 1}
	}

	c := &Client{
		service:    opts.Service,
		httpClient: httpClient,
		headers: map[string]string{
			"Accept":       "application/json",
			"Content-Type": "application/json",
			"User-Agent":   "enricher/" + logger.Version,
		},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		limiter: limiter,
		retry:   rc,
		logger:  log.WithField("service", opts.Service),
	}
	if opts.Token != "" {
		c.headers["Authorization"] = "Bearer " + opts.Token
	}
	return c
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetJSON performs a GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

// PostJSON posts body as JSON and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, path string, query url.Values, body, out interface{}) error {
	return c.Do(ctx, http.MethodPost, path, query, body, out)
}

// PatchJSON patches body as JSON and decodes the response into out.
func (c *Client) PatchJSON(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPatch, path, nil, body, out)
}

// Do performs one logical call, retried per the client's retry policy. A
// nil out discards the response body.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return errs.Wrap(errs.ErrorTypeParsing, err, "failed to encode request body")
		}
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	return retry.Do(ctx, c.retry, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create request")
		}

		resp, err := c.doRequest(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := c.checkResponseStatus(req, resp); err != nil {
			return err
		}
		return c.decode(req, resp, out)
	})
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    redact(req.URL),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      redact(req.URL),
			"error":    err.Error(),
			"duration": duration.String(),
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, fmt.Sprintf("%s request failed", c.service))
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      redact(req.URL),
		"status":   resp.StatusCode,
		"duration": duration.String(),
	})
	return resp, nil
}

// checkResponseStatus converts a failure status into a typed error carrying
// a preview of the body and any Retry-After hint.
func (c *Client) checkResponseStatus(req *http.Request, resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	preview := readPreview(resp.Body)
	msg := fmt.Sprintf("%s returned %d", c.service, resp.StatusCode)
	if preview != "" {
		msg += ": " + preview
	}
	e := errs.FromStatusCode(resp.StatusCode, msg)
	e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))

	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    redact(req.URL),
	}
	switch e.Type {
	case errs.ErrorTypeRateLimit:
		c.logger.WarnWithFields("rate limit exceeded", fields)
	case errs.ErrorTypeAuth:
		c.logger.WarnWithFields("authentication error", fields)
	case errs.ErrorTypeNotFound:
		c.logger.WarnWithFields("resource not found", fields)
	case errs.ErrorTypeServerError:
		c.logger.ErrorWithFields("server error", fields)
	default:
		fields["body_preview"] = preview
		c.logger.ErrorWithFields("unexpected API error", fields)
	}
	return e
}

func (c *Client) decode(req *http.Request, resp *http.Response, out interface{}) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeNetwork, err, "failed to read response body")
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          redact(req.URL),
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview(string(body)),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse %s response", c.service),
			Code:    resp.StatusCode,
			Err:     err,
		}
	}
	return nil
}

func readPreview(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, bodyPreviewLimit+1))
	return preview(strings.TrimSpace(string(data)))
}

func preview(s string) string {
	if len(s) > bodyPreviewLimit {
		return s[:bodyPreviewLimit] + "..."
	}
	return s
}

// parseRetryAfter understands delay-seconds only; HTTP dates are ignored.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// redact drops credentials passed as query parameters.
func redact(u *url.URL) string {
	if u == nil {
		return ""
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "REDACTED")
		cp := *u
		cp.RawQuery = q.Encode()
		return cp.String()
	}
	return u.String()
}
