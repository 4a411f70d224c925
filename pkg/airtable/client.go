package airtable

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"enricher/pkg/apiclient"
	"enricher/pkg/config"
	errs "enricher/pkg/errors"
	"enricher/pkg/logger"
	"enricher/pkg/ratelimit"
	"enricher/pkg/retry"
)

// MaxPageSize is the largest page the list endpoint serves.
const MaxPageSize = 100

// Record is one table row.
type Record struct {
	ID          string                 `json:"id"`
	CreatedTime string                 `json:"createdTime,omitempty"`
	Fields      map[string]interface{} `json:"fields"`
}

// Page is one response of the list endpoint. Offset is empty on the last page.
type Page struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

// ListOptions narrows a table scan.
type ListOptions struct {
	PageSize int
	// Fields limits the returned columns; empty returns all.
	Fields []string
	View   string
}

// FieldSpec describes a column created through the Meta API.
type FieldSpec struct {
	Name        string                 `json:"name"`
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Options     map[string]interface{} `json:"options,omitempty"`
}

// Client talks to one Airtable table.
type Client struct {
	api     *apiclient.Client
	baseID  string
	tableID string
	logger  logger.Logger
}

// New creates a client for cfg's base and table.
func New(cfg config.AirtableConfig, rc config.RetryConfig, log logger.Logger) (*Client, error) {
	switch {
	case cfg.APIKey == "":
		return nil, errs.Config("AIRTABLE_API_KEY environment variable not set")
	case cfg.BaseID == "" || cfg.TableID == "":
		return nil, errs.Config("airtable base id and table id are required")
	}
	if log == nil {
		log = logger.GetLogger()
	}

	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	if cfg.RequestsPerSecond > 0 {
		limiter = ratelimit.NewTokenBucket(cfg.RequestsPerSecond, time.Second)
	}

	api := apiclient.New(apiclient.Options{
		Service: "airtable",
		BaseURL: cfg.BaseURL,
		Token:   cfg.APIKey,
		Timeout: cfg.Timeout,
		Limiter: limiter,
		Retry:   retry.FromConfig(rc, log),
		Logger:  log,
	})
	return NewWithAPI(api, cfg.BaseID, cfg.TableID, log), nil
}

// NewWithAPI builds a client over an existing HTTP client.
func NewWithAPI(api *apiclient.Client, baseID, tableID string, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Client{
		api:     api,
		baseID:  baseID,
		tableID: tableID,
		logger:  log.WithFields(map[string]interface{}{"base": baseID, "table": tableID}),
	}
}

func (c *Client) tablePath() string {
	return fmt.Sprintf("/v0/%s/%s", url.PathEscape(c.baseID), url.PathEscape(c.tableID))
}

// Iterate walks every page of the table in order, calling fn once per page.
// An error from fn stops the scan and is returned as-is.
func (c *Client) Iterate(ctx context.Context, opts ListOptions, fn func(records []Record) error) error {
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	offset := ""
	for pageNum := 1; ; pageNum++ {
		q := url.Values{}
		q.Set("pageSize", strconv.Itoa(pageSize))
		for _, f := range opts.Fields {
			q.Add("fields[]", f)
		}
		if opts.View != "" {
			q.Set("view", opts.View)
		}
		if offset != "" {
			q.Set("offset", offset)
		}

		var page Page
		if err := c.api.GetJSON(ctx, c.tablePath(), q, &page); err != nil {
			return fmt.Errorf("failed to list records (page %d): %w", pageNum, err)
		}
		c.logger.DebugWithFields("fetched record page", map[string]interface{}{
			"page":    pageNum,
			"records": len(page.Records),
		})

		if err := fn(page.Records); err != nil {
			return err
		}
		if page.Offset == "" {
			return nil
		}
		offset = page.Offset
	}
}

// Update patches fields onto one record and returns the updated record.
func (c *Client) Update(ctx context.Context, recordID string, fields map[string]interface{}) (*Record, error) {
	if recordID == "" {
		return nil, errs.New(errs.ErrorTypeConfig, "record id is required")
	}
	body := map[string]interface{}{"fields": fields}

	var rec Record
	path := c.tablePath() + "/" + url.PathEscape(recordID)
	if err := c.api.PatchJSON(ctx, path, body, &rec); err != nil {
		return nil, fmt.Errorf("failed to update record %s: %w", recordID, err)
	}
	return &rec, nil
}

// CreateField adds a column to the table through the Meta API.
func (c *Client) CreateField(ctx context.Context, spec FieldSpec) error {
	if spec.Name == "" || spec.Type == "" {
		return errs.New(errs.ErrorTypeConfig, "field name and type are required")
	}
	path := fmt.Sprintf("/v0/meta/bases/%s/tables/%s/fields", url.PathEscape(c.baseID), url.PathEscape(c.tableID))
	if err := c.api.PostJSON(ctx, path, nil, spec, nil); err != nil {
		return fmt.Errorf("failed to create field %s: %w", spec.Name, err)
	}
	return nil
}
