package updater

import (
	"context"
	"fmt"
	"math"
	"time"

	"enricher/pkg/airtable"
	"enricher/pkg/config"
	errs "enricher/pkg/errors"
	"enricher/pkg/extract"
	"enricher/pkg/logger"
	"enricher/pkg/ratelimit"
	"enricher/pkg/traits"
)

// RecordUpdater writes fields onto one Airtable record.
type RecordUpdater interface {
	Update(ctx context.Context, recordID string, fields map[string]interface{}) (*airtable.Record, error)
}

// Canceller is polled before each record. jobs.Handle satisfies it.
type Canceller interface {
	Cancelled() bool
}

// Options control a write-back run.
type Options struct {
	TraitsFile     string
	URLMappingFile string
	Delay          time.Duration
	OnProgress     func(current, total int, message string)
	Token          Canceller
}

// OptionsFromConfig fills Options from the updater and paths sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TraitsFile:     cfg.Paths.TraitsFile(),
		URLMappingFile: cfg.Paths.URLMappingFile(),
		Delay:          cfg.Updater.Delay,
	}
}

// Result summarises a write-back run.
type Result struct {
	TotalTraits       int      `json:"total_traits"`
	SuccessfulUpdates int      `json:"successful_updates"`
	FailedUpdates     int      `json:"failed_updates"`
	MissingMappings   int      `json:"missing_mappings"`
	EmptyTraits       int      `json:"empty_traits"`
	Errors            []string `json:"errors"`
	SuccessRate       float64  `json:"success_rate"`
	TraitsFile        string   `json:"traits_file"`
	URLMappingFile    string   `json:"url_mapping_file"`
}

// Updater writes extracted traits back onto the Airtable records they came
// from.
type Updater struct {
	table   RecordUpdater
	opts    Options
	limiter ratelimit.Limiter
	logger  logger.Logger
}

// New creates an Updater. A nil logger uses the global one.
func New(table RecordUpdater, opts Options, log logger.Logger) *Updater {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Updater{
		table:   table,
		opts:    opts,
		limiter: ratelimit.NewInterval(opts.Delay),
		logger:  log.WithField("component", "updater"),
	}
}

// Run loads the traits and URL mapping files and updates every mapped
// record.
func (u *Updater) Run(ctx context.Context) (*Result, error) {
	u.progress(0, 0, fmt.Sprintf("Loading traits from %s", u.opts.TraitsFile))
	records, err := traits.LoadTraits(u.opts.TraitsFile)
	if err != nil {
		return nil, err
	}
	mapping, err := extract.LoadMapping(u.opts.URLMappingFile)
	if err != nil {
		return nil, err
	}
	return u.Apply(ctx, records, mapping)
}

// Apply updates the record mapped to each trait's linkedin_url, matching
// exactly first and then on the canonical URL form. Traits with
// no mapping or no writable values are counted and skipped. A record the
// table rejects is recorded and the run continues; a network, rate limit or
// server failure left after the client's retries stops the run, returning
// the partial result.
func (u *Updater) Apply(ctx context.Context, records []traits.Traits, mapping map[string]string) (*Result, error) {
	res := &Result{
		TotalTraits:    len(records),
		Errors:         []string{},
		TraitsFile:     u.opts.TraitsFile,
		URLMappingFile: u.opts.URLMappingFile,
	}
	u.logger.InfoWithFields("Updating Airtable records", map[string]interface{}{
		"traits":   len(records),
		"mappings": len(mapping),
	})

	canonical := make(map[string]string, len(mapping))
	for url, id := range mapping {
		canonical[extract.CanonicalProfileURL(url)] = id
	}

	for i, t := range records {
		if u.opts.Token != nil && u.opts.Token.Cancelled() {
			res.finish()
			return res, errs.Cancelled("update cancelled after %d of %d records", i, len(records))
		}
		if err := ctx.Err(); err != nil {
			res.finish()
			return res, err
		}

		recordID, ok := mapping[t.LinkedInURL]
		if !ok && t.LinkedInURL != "" {
			recordID, ok = canonical[extract.CanonicalProfileURL(t.LinkedInURL)]
		}
		if t.LinkedInURL == "" || !ok {
			res.MissingMappings++
			u.logger.WithField("linkedin_url", t.LinkedInURL).Warn("No Airtable record mapped to profile")
			continue
		}

		fields := traits.Format(t)
		if len(fields) == 0 {
			res.EmptyTraits++
			u.logger.WithField("record_id", recordID).Debug("No trait values to write")
			continue
		}

		if err := u.limiter.Wait(ctx); err != nil {
			res.finish()
			return res, err
		}
		if _, err := u.table.Update(ctx, recordID, fields); err != nil {
			res.FailedUpdates++
			res.Errors = append(res.Errors, fmt.Sprintf("Failed to update record %s: %v", recordID, err))
			if errs.IsRetryable(errs.TypeOf(err)) {
				u.logger.WithError(err).WithField("record_id", recordID).Error("Airtable unavailable, stopping update")
				res.finish()
				return res, fmt.Errorf("update stopped at record %d of %d: %w", i+1, len(records), err)
			}
			u.logger.WithError(err).WithField("record_id", recordID).Error("Record update failed")
		} else {
			res.SuccessfulUpdates++
			u.logger.WithFields(map[string]interface{}{
				"record_id": recordID,
				"fields":    len(fields),
			}).Debug("Record updated")
		}
		u.progress(i+1, len(records), fmt.Sprintf("Updated %d/%d records", res.SuccessfulUpdates, len(records)))
	}

	res.finish()
	u.logger.InfoWithFields("Airtable update finished", map[string]interface{}{
		"successful": res.SuccessfulUpdates,
		"failed":     res.FailedUpdates,
		"missing":    res.MissingMappings,
	})
	return res, nil
}

func (r *Result) finish() {
	if r.TotalTraits > 0 {
		r.SuccessRate = math.Round(float64(r.SuccessfulUpdates)/float64(r.TotalTraits)*1000) / 10
	}
}

func (u *Updater) progress(cur, total int, msg string) {
	if u.opts.OnProgress != nil {
		u.opts.OnProgress(cur, total, msg)
	}
}
