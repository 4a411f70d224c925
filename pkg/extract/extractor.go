package extract

import (
	"context"
	"fmt"

	"enricher/pkg/airtable"
	"enricher/pkg/config"
	errs "enricher/pkg/errors"
	"enricher/pkg/logger"
	"enricher/pkg/storage"
)

// MissingReason is recorded for filtered records without a usable URL.
const MissingReason = "No valid LinkedIn URL found in any field"

const progressEvery = 10

// Source is the paged table scan the extractor reads from.
type Source interface {
	Iterate(ctx context.Context, opts airtable.ListOptions, fn func(records []airtable.Record) error) error
}

// Canceller is polled between pages.
type Canceller interface {
	Cancelled() bool
}

// Options selects which records are scanned and where results go.
type Options struct {
	// LinkedInFields are tried in order; the first that yields a valid URL wins.
	LinkedInFields []string
	EventField     string
	// EventFilter keeps only records whose event field equals it; empty disables.
	EventFilter string
	Top100Field string
	// Top100Filter keeps only records whose top-100 field equals it; nil disables.
	Top100Filter *bool
	PageSize     int
	Paths        config.PathsConfig
	OnProgress   func(current, total int, message string)
	Token        Canceller
}

// OptionsFromConfig derives extraction options from the airtable and
// paths configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	top := cfg.Airtable.Top100Filter
	return Options{
		LinkedInFields: cfg.Airtable.LinkedInFields,
		EventField:     cfg.Airtable.EventField,
		EventFilter:    cfg.Airtable.EventFilter,
		Top100Field:    cfg.Airtable.Top100Field,
		Top100Filter:   &top,
		PageSize:       cfg.Airtable.PageSize,
		Paths:          cfg.Paths,
	}
}

// Summary heads the extraction report file.
type Summary struct {
	TotalValidURLs   int `json:"total_valid_urls"`
	TotalInvalidURLs int `json:"total_invalid_urls"`
	TotalMissingURLs int `json:"total_missing_urls"`
}

// Report is the content of the extraction results file.
type Report struct {
	Summary           Summary           `json:"extraction_summary"`
	URLToRecord       map[string]string `json:"url_to_record_mapping"`
	ValidURLs         []string          `json:"valid_urls"`
	InvalidURLs       []string          `json:"invalid_urls"`
	MissingURLRecords map[string]string `json:"missing_url_records"`
}

// Result is what an extraction run reports back.
type Result struct {
	TotalRecords int               `json:"total_records"`
	ValidURLs    int               `json:"valid_urls"`
	InvalidURLs  int               `json:"invalid_urls"`
	MissingURLs  int               `json:"missing_urls"`
	Duplicates   int               `json:"duplicate_urls"`
	SuccessRate  float64           `json:"success_rate"`
	URLToRecord  map[string]string `json:"url_to_record_mapping"`
	URLsForApify []string          `json:"urls_for_apify"`
	FilesCreated []string          `json:"files_created"`
}

// Extractor pulls profile URLs out of the roster table.
type Extractor struct {
	source Source
	opts   Options
	logger logger.Logger
}

// New creates an extractor.
func New(source Source, opts Options, log logger.Logger) *Extractor {
	if len(opts.LinkedInFields) == 0 {
		opts.LinkedInFields = []string{"4. CEO LinkedIn"}
	}
	if opts.EventField == "" {
		opts.EventField = "Event"
	}
	if opts.Top100Field == "" {
		opts.Top100Field = "Top 100"
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Extractor{source: source, opts: opts, logger: log.WithField("stage", "extract")}
}

func (e *Extractor) matches(fields map[string]interface{}) bool {
	if e.opts.EventFilter != "" {
		if v, ok := fields[e.opts.EventField]; !ok || v != e.opts.EventFilter {
			return false
		}
	}
	if e.opts.Top100Filter != nil {
		if v, ok := fields[e.opts.Top100Field]; !ok || v != *e.opts.Top100Filter {
			return false
		}
	}
	return true
}

func (e *Extractor) recordURL(fields map[string]interface{}) string {
	for _, name := range e.opts.LinkedInFields {
		v, ok := fields[name]
		if !ok || v == nil {
			continue
		}
		if u := FieldURL(v); u != "" {
			return u
		}
	}
	return ""
}

func (e *Extractor) progress(current, total int, msg string) {
	if e.opts.OnProgress != nil {
		e.opts.OnProgress(current, total, msg)
	}
}

// Run scans the table, writes the mapping, URL list and report files and
// returns the summary.
func (e *Extractor) Run(ctx context.Context) (*Result, error) {
	e.logger.InfoWithFields("Starting extraction", map[string]interface{}{
		"event_filter":    e.opts.EventFilter,
		"top_100_filter":  e.opts.Top100Filter,
		"linkedin_fields": e.opts.LinkedInFields,
		"prefix":          e.opts.Paths.Prefix,
	})

	report := Report{
		URLToRecord:       make(map[string]string),
		ValidURLs:         []string{},
		InvalidURLs:       []string{},
		MissingURLRecords: make(map[string]string),
	}
	total, duplicates := 0, 0

	err := e.source.Iterate(ctx, airtable.ListOptions{PageSize: e.opts.PageSize}, func(records []airtable.Record) error {
		if e.opts.Token != nil && e.opts.Token.Cancelled() {
			return errs.Cancelled("extraction cancelled")
		}
		for _, rec := range records {
			if !e.matches(rec.Fields) {
				continue
			}
			total++
			if total%progressEvery == 0 {
				e.progress(total, -1, fmt.Sprintf("Processing record %d", total))
			}

			u := e.recordURL(rec.Fields)
			if u == "" {
				report.MissingURLRecords[rec.ID] = MissingReason
				continue
			}
			if first, dup := report.URLToRecord[u]; dup {
				duplicates++
				e.logger.WarnWithFields("Duplicate URL", map[string]interface{}{
					"url":          u,
					"record":       rec.ID,
					"first_record": first,
				})
				continue
			}
			report.URLToRecord[u] = rec.ID
			report.ValidURLs = append(report.ValidURLs, u)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.progress(total, total, "Extraction completed, saving results...")

	report.Summary = Summary{
		TotalValidURLs:   len(report.ValidURLs),
		TotalInvalidURLs: len(report.InvalidURLs),
		TotalMissingURLs: len(report.MissingURLRecords),
	}
	files, err := e.save(report)
	if err != nil {
		return nil, err
	}

	result := &Result{
		TotalRecords: total,
		ValidURLs:    len(report.ValidURLs),
		InvalidURLs:  len(report.InvalidURLs),
		MissingURLs:  len(report.MissingURLRecords),
		Duplicates:   duplicates,
		URLToRecord:  report.URLToRecord,
		URLsForApify: report.ValidURLs,
		FilesCreated: files,
	}
	if total > 0 {
		result.SuccessRate = float64(result.ValidURLs) / float64(total) * 100
	}

	e.logger.InfoWithFields("Extraction completed", map[string]interface{}{
		"total_records": total,
		"valid_urls":    result.ValidURLs,
		"missing_urls":  result.MissingURLs,
		"duplicates":    duplicates,
		"success_rate":  fmt.Sprintf("%.1f%%", result.SuccessRate),
	})
	return result, nil
}

func (e *Extractor) save(report Report) ([]string, error) {
	p := e.opts.Paths
	files := []string{p.URLMappingFile(), p.URLsFile(), p.ExtractionResultsFile()}
	contents := []interface{}{report.URLToRecord, report.ValidURLs, report}

	for i, path := range files {
		if err := storage.WriteJSON(path, contents[i]); err != nil {
			return nil, errs.Wrap(errs.ErrorTypeUnknown, err, "failed to save "+path)
		}
	}
	return files, nil
}
