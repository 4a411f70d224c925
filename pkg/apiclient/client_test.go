package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	errs "enricher/pkg/errors"
	"enricher/pkg/logger"
	"enricher/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRoundTripper allows us to intercept HTTP requests
type mockRoundTripper struct {
	handler func(req *http.Request) (*http.Response, error)
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.handler(req)
}

func newMockHTTPClient(handler func(req *http.Request) (*http.Response, error)) *http.Client {
	return &http.Client{
		Transport: &mockRoundTripper{handler: handler},
		Timeout:   5 * time.Second,
	}
}

func newResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func fastRetry(attempts int) *retry.Config {
	return &retry.Config{
		MaxAttempts: attempts,
		Backoff:     &retry.ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     retry.DefaultRetryIf,
	}
}

func TestGetJSONSendsHeadersAndQuery(t *testing.T) {
	var got *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"records":[{"id":"rec1"}]}`))
	}))
	defer server.Close()

	c := New(Options{Service: "airtable", BaseURL: server.URL + "/", Token: "secret", Logger: logger.NewTestLogger()})

	var out struct {
		Records []struct {
			ID string `json:"id"`
		} `json:"records"`
	}
	err := c.GetJSON(context.Background(), "/v0/app/tbl", url.Values{"pageSize": {"100"}}, &out)
	require.NoError(t, err)

	require.Len(t, out.Records, 1)
	assert.Equal(t, "rec1", out.Records[0].ID)
	assert.Equal(t, "/v0/app/tbl", got.URL.Path)
	assert.Equal(t, "100", got.URL.Query().Get("pageSize"))
	assert.Equal(t, "Bearer secret", got.Header.Get("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
}

func TestPostJSONResendsBodyOnRetry(t *testing.T) {
	var calls int32
	var bodies []string
	httpClient := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		data, _ := io.ReadAll(req.Body)
		bodies = append(bodies, string(data))
		if atomic.AddInt32(&calls, 1) == 1 {
			return newResponse(http.StatusBadGateway, "upstream"), nil
		}
		return newResponse(http.StatusOK, `[{"url":"u1"}]`), nil
	})

	c := New(Options{Service: "apify", HTTPClient: httpClient, Retry: fastRetry(3), Logger: logger.NewTestLogger()})

	var out []map[string]interface{}
	err := c.PostJSON(context.Background(), "/run", nil, map[string][]string{"profileUrls": {"u1"}}, &out)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1])
	assert.JSONEq(t, `{"profileUrls":["u1"]}`, bodies[0])
	assert.Equal(t, "u1", out[0]["url"])
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   errs.ErrorType
	}{
		{"unauthorized", http.StatusUnauthorized, errs.ErrorTypeAuth},
		{"forbidden", http.StatusForbidden, errs.ErrorTypeAuth},
		{"not found", http.StatusNotFound, errs.ErrorTypeNotFound},
		{"rate limited", http.StatusTooManyRequests, errs.ErrorTypeRateLimit},
		{"server error", http.StatusInternalServerError, errs.ErrorTypeServerError},
		{"unprocessable", http.StatusUnprocessableEntity, errs.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpClient := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
				return newResponse(tt.status, `{"error":"nope"}`), nil
			})
			c := New(Options{Service: "airtable", HTTPClient: httpClient, Logger: logger.NewTestLogger()})

			err := c.GetJSON(context.Background(), "/x", nil, nil)
			require.Error(t, err)
			assert.Equal(t, tt.want, errs.TypeOf(err))

			var e *errs.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, tt.status, e.Code)
			assert.Contains(t, e.Message, `{"error":"nope"}`)
		})
	}
}

func TestRetryAfterIsCarried(t *testing.T) {
	httpClient := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		resp := newResponse(http.StatusTooManyRequests, "")
		resp.Header.Set("Retry-After", "30")
		return resp, nil
	})
	log := logger.NewTestLogger()
	c := New(Options{Service: "airtable", HTTPClient: httpClient, Logger: log})

	err := c.GetJSON(context.Background(), "/x", nil, nil)

	var e *errs.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, 30*time.Second, e.RetryAfter)
	assert.True(t, log.HasMessage("rate limit exceeded"))
}

func TestAuthErrorsAreNotRetried(t *testing.T) {
	var calls int32
	httpClient := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return newResponse(http.StatusUnauthorized, ""), nil
	})
	c := New(Options{Service: "airtable", HTTPClient: httpClient, Retry: fastRetry(3), Logger: logger.NewTestLogger()})

	err := c.GetJSON(context.Background(), "/x", nil, nil)
	assert.True(t, errs.Is(err, errs.ErrorTypeAuth))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNetworkErrorIsTyped(t *testing.T) {
	httpClient := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	c := New(Options{Service: "apify", HTTPClient: httpClient, Retry: fastRetry(2), Logger: logger.NewTestLogger()})

	err := c.GetJSON(context.Background(), "/x", nil, nil)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeNetwork))
	assert.Contains(t, err.Error(), "max retry attempts (2) exceeded")
}

func TestParseErrorLogsPreview(t *testing.T) {
	httpClient := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return newResponse(http.StatusOK, "<html>not json</html>"), nil
	})
	log := logger.NewTestLogger()
	c := New(Options{Service: "apify", HTTPClient: httpClient, Logger: log})

	var out map[string]interface{}
	err := c.GetJSON(context.Background(), "/x", nil, &out)
	assert.True(t, errs.Is(err, errs.ErrorTypeParsing))

	msgs := log.GetMessagesByLevel("ERROR")
	require.NotEmpty(t, msgs)
	assert.Equal(t, "<html>not json</html>", msgs[len(msgs)-1].Fields["body_preview"])
}

func TestCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	c := New(Options{Service: "apify", BaseURL: server.URL, Retry: fastRetry(3), Logger: logger.NewTestLogger()})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.GetJSON(ctx, "/slow", nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPatchJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "rec1", "fields": body["fields"]})
	}))
	defer server.Close()

	c := New(Options{Service: "airtable", BaseURL: server.URL, Logger: logger.NewTestLogger()})

	var out struct {
		ID     string                 `json:"id"`
		Fields map[string]interface{} `json:"fields"`
	}
	err := c.PatchJSON(context.Background(), "/v0/a/t/rec1", map[string]interface{}{
		"fields": map[string]interface{}{"AI_Full_Name": "Ada"},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "Ada", out.Fields["AI_Full_Name"])
}

func TestRedact(t *testing.T) {
	u, _ := url.Parse("https://api.apify.com/v2/acts/x/run?token=abc&timeout=60")
	assert.NotContains(t, redact(u), "abc")
	assert.Contains(t, redact(u), "timeout=60")
}
