package apify

import (
	"context"
	"fmt"
	"net/url"

	"enricher/pkg/apiclient"
	"enricher/pkg/config"
	errs "enricher/pkg/errors"
	"enricher/pkg/logger"
	"enricher/pkg/retry"
)

// DefaultActorID is the LinkedIn profile scraper actor.
const DefaultActorID = "2SyF0bVxmgGr8IVCZ"

// Profile is one dataset item as returned by the actor. It is kept as a
// generic document so fields the actor adds survive the round trip.
type Profile = map[string]interface{}

// Input is the actor's run input.
type Input struct {
	ProfileURLs []string `json:"profileUrls"`
}

// Client runs the scraper actor synchronously.
type Client struct {
	api     *apiclient.Client
	actorID string
	logger  logger.Logger
}

// New creates a client from cfg. The actor run can take minutes, so
// cfg.Timeout bounds every attempt rather than the default HTTP timeout.
func New(cfg config.ApifyConfig, rc config.RetryConfig, log logger.Logger) (*Client, error) {
	if cfg.Token == "" {
		return nil, errs.Config("APIFY_API_KEY environment variable not set")
	}
	if log == nil {
		log = logger.GetLogger()
	}
	api := apiclient.New(apiclient.Options{
		Service: "apify",
		BaseURL: cfg.BaseURL,
		Token:   cfg.Token,
		Timeout: cfg.Timeout,
		Retry:   retry.FromConfig(rc, log),
		Logger:  log,
	})
	return NewWithAPI(api, cfg.ActorID, log), nil
}

// NewWithAPI builds a client over an existing HTTP client.
func NewWithAPI(api *apiclient.Client, actorID string, log logger.Logger) *Client {
	if actorID == "" {
		actorID = DefaultActorID
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Client{api: api, actorID: actorID, logger: log.WithField("actor", actorID)}
}

// Submit scrapes one batch of profile URLs. The reply holds zero or more
// profiles in no guaranteed order; URLs the actor could not resolve are
// simply absent.
func (c *Client) Submit(ctx context.Context, urls []string) ([]Profile, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	path := fmt.Sprintf("/v2/acts/%s/run-sync-get-dataset-items", url.PathEscape(c.actorID))
	var items []Profile
	if err := c.api.PostJSON(ctx, path, nil, Input{ProfileURLs: urls}, &items); err != nil {
		return nil, fmt.Errorf("actor run failed for %d URLs: %w", len(urls), err)
	}

	c.logger.InfoWithFields("actor run completed", map[string]interface{}{
		"urls":     len(urls),
		"profiles": len(items),
	})
	return items, nil
}
