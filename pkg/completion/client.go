package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"enricher/pkg/config"
	errs "enricher/pkg/errors"
	"enricher/pkg/logger"
	"enricher/pkg/ratelimit"
)

const previewLimit = 500

// Completer turns a document into one structured JSON object.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, document string) (json.RawMessage, error)
}

// Client implements Completer over the Anthropic Messages API.
type Client struct {
	client      sdk.Client
	model       string
	temperature float64
	maxTokens   int64
	limiter     ratelimit.Limiter
	logger      logger.Logger
}

// New creates a completion client from cfg. Extra options are appended to
// the SDK options, after the ones derived from cfg.
func New(cfg config.CompletionConfig, log logger.Logger, opts ...option.RequestOption) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errs.Config("ANTHROPIC_API_KEY environment variable not set")
	}
	if log == nil {
		log = logger.GetLogger()
	}

	sdkOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		sdkOpts = append(sdkOpts, option.WithRequestTimeout(cfg.Timeout))
	}
	sdkOpts = append(sdkOpts, opts...)

	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	if cfg.RequestsPerMinute > 0 {
		limiter = ratelimit.NewSlidingWindow(cfg.RequestsPerMinute, time.Minute)
	}

	return &Client{
		client:      sdk.NewClient(sdkOpts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   int64(cfg.MaxTokens),
		limiter:     limiter,
		logger:      log.WithField("model", cfg.Model),
	}, nil
}

// Complete sends document as the user turn and returns the reply parsed as
// a single JSON object.
func (c *Client) Complete(ctx context.Context, systemPrompt, document string) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: sdk.Float(c.temperature),
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(document))},
	}
	if systemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: systemPrompt}}
	}

	start := time.Now()
	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(ctx, err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	c.logger.DebugWithFields("completion received", map[string]interface{}{
		"duration":      time.Since(start).String(),
		"input_tokens":  msg.Usage.InputTokens,
		"output_tokens": msg.Usage.OutputTokens,
		"stop_reason":   string(msg.StopReason),
	})

	return ParseObject(text.String())
}

// classify maps SDK failures onto the error taxonomy.
func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		e := errs.FromStatusCode(apiErr.StatusCode, "completion request failed")
		e.Err = err
		return e
	}
	return errs.Wrap(errs.ErrorTypeNetwork, err, "completion request failed")
}

// ParseObject strips markdown code fences from a model reply and requires
// what remains to be exactly one JSON object.
func ParseObject(content string) (json.RawMessage, error) {
	body := StripFences(content)

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &obj); err != nil || obj == nil {
		if err == nil {
			err = errors.New("reply is not a JSON object")
		}
		return nil, &errs.Error{
			Type:    errs.ErrorTypeMalformed,
			Message: fmt.Sprintf("model reply is not a JSON object: %q", Preview(content)),
			Err:     err,
		}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(body)); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeMalformed, err, "model reply could not be compacted")
	}
	return json.RawMessage(buf.Bytes()), nil
}

// StripFences removes a leading ```json or ``` fence and a trailing ```.
func StripFences(content string) string {
	s := strings.TrimSpace(content)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = s[len("```json"):]
	case strings.HasPrefix(s, "```"):
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Preview shortens s for log lines and error messages.
func Preview(s string) string {
	if len(s) > previewLimit {
		return s[:previewLimit] + "..."
	}
	return s
}
