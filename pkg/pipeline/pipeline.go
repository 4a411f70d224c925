package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"enricher/pkg/airtable"
	"enricher/pkg/apify"
	"enricher/pkg/checkpoint"
	"enricher/pkg/cleaner"
	"enricher/pkg/completion"
	"enricher/pkg/config"
	errs "enricher/pkg/errors"
	"enricher/pkg/extract"
	"enricher/pkg/logger"
	"enricher/pkg/runner"
	"enricher/pkg/storage"
	"enricher/pkg/traits"
	"enricher/pkg/updater"
)

// Stage names, in pipeline order.
const (
	StageExtract = "extract"
	StageScrape  = "scrape"
	StageClean   = "clean"
	StageTraits  = "traits"
	StageUpdate  = "update"
)

// Stages lists every stage in the order RunAll executes them.
var Stages = []string{StageExtract, StageScrape, StageClean, StageTraits, StageUpdate}

// Pipeline binds the stages to their external services.
type Pipeline struct {
	cfg    *config.Config
	logger logger.Logger

	// mu guards the lazily built clients; jobs share one Pipeline.
	mu      sync.Mutex
	table   Table
	scraper Scraper
	model   completion.Completer
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithTable uses t instead of an Airtable client built from configuration.
func WithTable(t Table) Option { return func(p *Pipeline) { p.table = t } }

// WithScraper uses s instead of an Apify client built from configuration.
func WithScraper(s Scraper) Option { return func(p *Pipeline) { p.scraper = s } }

// WithModel uses m instead of a completion client built from configuration.
func WithModel(m completion.Completer) Option { return func(p *Pipeline) { p.model = m } }

// WithLogger sets the logger; the global one is used otherwise.
func WithLogger(l logger.Logger) Option { return func(p *Pipeline) { p.logger = l } }

// New creates a pipeline. Service clients are built on first use so a
// stage only needs the credentials it talks to.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.GetLogger()
	}
	return p
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() *config.Config { return p.cfg }

func (p *Pipeline) airtable() (Table, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.table != nil {
		return p.table, nil
	}
	c, err := airtable.New(p.cfg.Airtable, p.cfg.Retry, p.logger)
	if err != nil {
		return nil, err
	}
	p.table = c
	return c, nil
}

func (p *Pipeline) apify() (Scraper, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.scraper != nil {
		return p.scraper, nil
	}
	if err := p.cfg.RequireApify(); err != nil {
		return nil, err
	}
	c, err := apify.New(p.cfg.Apify, p.cfg.Retry, p.logger)
	if err != nil {
		return nil, err
	}
	p.scraper = c
	return c, nil
}

func (p *Pipeline) completion() (completion.Completer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model != nil {
		return p.model, nil
	}
	if err := p.cfg.RequireCompletion(); err != nil {
		return nil, err
	}
	c, err := completion.New(p.cfg.Completion, p.logger)
	if err != nil {
		return nil, err
	}
	p.model = c
	return c, nil
}

// Extract scans the roster table and writes the URL list and mapping files.
func (p *Pipeline) Extract(ctx context.Context, req ExtractRequest, rep Reporter) (*extract.Result, error) {
	opts := extract.OptionsFromConfig(p.cfg)
	if len(req.LinkedInFields) > 0 {
		opts.LinkedInFields = req.LinkedInFields
	}
	if req.EventFilter != nil {
		opts.EventFilter = *req.EventFilter
	}
	if req.Top100Filter != nil {
		opts.Top100Filter = req.Top100Filter
	}
	if req.OutputPrefix != nil {
		opts.Paths.Prefix = *req.OutputPrefix
	}
	opts.OnProgress = rep.Progress
	opts.Token = rep

	table, err := p.airtable()
	if err != nil {
		return nil, err
	}
	rep.Progress(0, 0, "Starting extraction process...")
	return extract.New(table, opts, p.logger).Run(ctx)
}

// ScrapeResult summarises a scrape run.
type ScrapeResult struct {
	TotalURLs         int      `json:"total_urls"`
	ProcessedProfiles int      `json:"processed_profiles"`
	NewProfiles       int      `json:"new_profiles"`
	Batches           int      `json:"batches"`
	MissingURLs       []string `json:"missing_urls,omitempty"`
	OutputFile        string   `json:"output_file"`
	TestMode          bool     `json:"test_mode"`
}

// Scrape fetches raw profiles for every URL not yet in the output, in
// batches. A failed batch stops the run; committed batches are kept.
func (p *Pipeline) Scrape(ctx context.Context, req ScrapeRequest, rep Reporter) (*ScrapeResult, error) {
	urlsFile := orString(req.URLsFile, p.cfg.Paths.URLsFile())
	urls, err := extract.LoadURLs(urlsFile)
	if err != nil {
		return nil, err
	}

	testMode := p.cfg.Apify.TestMode
	if req.TestMode != nil {
		testMode = *req.TestMode
	}
	batchSize := p.cfg.Apify.BatchSize
	if req.BatchSize > 0 {
		batchSize = req.BatchSize
	}
	output := p.cfg.Paths.ProfilesFile()
	if testMode {
		n := p.cfg.Apify.TestNumURLs
		if req.TestNumURLs > 0 {
			n = req.TestNumURLs
		}
		if n < len(urls) {
			urls = urls[:n]
		}
		batchSize = p.cfg.Apify.TestBatchSize
		output = p.cfg.Paths.TestProfilesFile(n)
	}
	output = orString(req.OutputFile, output)

	rep.Progress(0, len(urls), fmt.Sprintf("Loaded %d URLs from %s", len(urls), urlsFile))

	scraper, err := p.apify()
	if err != nil {
		return nil, err
	}
	r, err := runner.New(runner.Config[string, apify.Profile]{
		Name:       "apify",
		UnitID:     func(u string) string { return u },
		Normalize:  extract.CanonicalProfileURL,
		Call:       scraper.Submit,
		Checkpoint: checkpoint.NewStore(checkpoint.PathFor(output), p.logger),
		Results:    storage.NewAccumulator[apify.Profile](output),
		BatchSize:  batchSize,
		Delay:      p.cfg.Apify.BatchDelay,
		Policy:     runner.AbortOnError,
		OnBatch:    batchReporter(rep),
		Token:      rep,
		Logger:     p.logger,
	})
	if err != nil {
		return nil, err
	}

	out, runErr := r.Run(ctx, urls)
	if out == nil {
		return nil, runErr
	}
	return &ScrapeResult{
		TotalURLs:         out.Total,
		ProcessedProfiles: len(out.Results),
		NewProfiles:       out.Committed,
		Batches:           out.Calls,
		MissingURLs:       out.Missing,
		OutputFile:        output,
		TestMode:          testMode,
	}, runErr
}

// Clean strips noise from the scraped profiles.
func (p *Pipeline) Clean(ctx context.Context, req CleanRequest, rep Reporter) (*cleaner.Result, error) {
	input := orString(req.InputFile, p.cfg.Paths.ProfilesFile())
	output := orString(req.OutputFile, p.cfg.Paths.CleanedFile())
	return cleaner.New(cleaner.Options{}, p.logger).CleanFile(ctx, input, output, rep.Progress)
}

func (p *Pipeline) traitsOptions(req TraitsRequest) traits.Options {
	opts := traits.OptionsFromConfig(p.cfg)
	opts.InputFile = orString(req.InputFile, opts.InputFile)
	opts.OutputFile = orString(req.OutputFile, opts.OutputFile)
	if req.MaxProfiles != nil {
		opts.MaxProfiles = *req.MaxProfiles
	}
	if req.ForceReextraction != nil {
		opts.Force = *req.ForceReextraction
	}
	opts.Delay = seconds(req.DelayBetweenCalls, opts.Delay)
	return opts
}

// Traits runs one trait extraction session over the cleaned profiles.
func (p *Pipeline) Traits(ctx context.Context, req TraitsRequest, rep Reporter) (*traits.Result, error) {
	opts := p.traitsOptions(req)
	opts.OnProgress = batchReporter(rep)
	opts.Token = rep

	model, err := p.completion()
	if err != nil {
		return nil, err
	}
	rep.Progress(0, 0, fmt.Sprintf("Extracting traits from %s", opts.InputFile))
	return traits.New(model, opts, p.logger).Run(ctx)
}

// TraitsProgress reports extraction progress without calling the model.
func (p *Pipeline) TraitsProgress(req TraitsRequest) (*traits.ProgressStats, error) {
	opts := p.traitsOptions(req)
	return traits.CheckProgress(opts.InputFile, opts.OutputFile, p.logger)
}

// Update writes extracted traits onto their Airtable records.
func (p *Pipeline) Update(ctx context.Context, req UpdateRequest, rep Reporter) (*updater.Result, error) {
	opts := updater.OptionsFromConfig(p.cfg)
	opts.TraitsFile = orString(req.TraitsFile, opts.TraitsFile)
	opts.URLMappingFile = orString(req.URLMappingFile, opts.URLMappingFile)
	opts.Delay = seconds(req.DelayBetweenUpdates, opts.Delay)
	opts.OnProgress = rep.Progress
	opts.Token = rep

	table, err := p.airtable()
	if err != nil {
		return nil, err
	}
	return updater.New(table, opts, p.logger).Run(ctx)
}

// Fields creates every AI_* column on the roster table.
func (p *Pipeline) Fields(ctx context.Context, req FieldsRequest, rep Reporter) (*updater.FieldsResult, error) {
	table, err := p.airtable()
	if err != nil {
		return nil, err
	}
	specs := traits.FieldSpecs()
	rep.Progress(0, len(specs), fmt.Sprintf("Creating %d fields", len(specs)))
	return updater.CreateFields(ctx, table, specs, seconds(req.DelayBetweenFields, p.cfg.Updater.FieldDelay), rep, p.logger)
}

// RunRequest selects the stages of a full run.
type RunRequest struct {
	// Stages to run, in pipeline order; empty runs all of them.
	Stages []string `json:"stages,omitempty"`
	// CreateFields creates the AI_* columns before the update stage.
	CreateFields bool `json:"create_fields,omitempty"`
}

// RunAll executes the selected stages in order and stops at the first
// failure. Results holds the outcome of each stage that ran.
func (p *Pipeline) RunAll(ctx context.Context, req RunRequest, rep Reporter) (map[string]interface{}, error) {
	want := make(map[string]bool)
	for _, s := range req.Stages {
		want[s] = true
	}
	results := make(map[string]interface{})
	obs, _ := rep.(StageObserver)

	for _, stage := range Stages {
		if len(want) > 0 && !want[stage] {
			continue
		}
		if rep.Cancelled() {
			return results, errs.Cancelled("run cancelled before stage %s", stage)
		}

		logger.LogStageStart(p.logger, stage, nil)
		rep.Log("INFO", fmt.Sprintf("Starting stage %s", stage))
		if obs != nil {
			obs.StageStarted(stage)
		}
		start := time.Now()

		var err error
		switch stage {
		case StageExtract:
			var r *extract.Result
			r, err = p.Extract(ctx, ExtractRequest{}, rep)
			keep(results, stage, r)
		case StageScrape:
			var r *ScrapeResult
			r, err = p.Scrape(ctx, ScrapeRequest{}, rep)
			keep(results, stage, r)
		case StageClean:
			var r *cleaner.Result
			r, err = p.Clean(ctx, CleanRequest{}, rep)
			keep(results, stage, r)
		case StageTraits:
			var r *traits.Result
			r, err = p.Traits(ctx, TraitsRequest{}, rep)
			keep(results, stage, r)
		case StageUpdate:
			if req.CreateFields {
				fres, ferr := p.Fields(ctx, FieldsRequest{}, rep)
				keep(results, "fields", fres)
				if ferr != nil {
					err = ferr
					break
				}
			}
			var r *updater.Result
			r, err = p.Update(ctx, UpdateRequest{}, rep)
			keep(results, stage, r)
		}

		logger.LogStageStop(p.logger, stage, time.Since(start), err)
		if obs != nil {
			obs.StageFinished(stage, err)
		}
		if err != nil {
			rep.Log("ERROR", fmt.Sprintf("Stage %s failed: %v", stage, err))
			return results, fmt.Errorf("stage %s: %w", stage, err)
		}
		rep.Log("SUCCESS", fmt.Sprintf("Stage %s completed", stage))
	}
	return results, nil
}

// keep stores r under key unless the stage produced nothing.
func keep[T any](results map[string]interface{}, key string, r *T) {
	if r != nil {
		results[key] = r
	}
}

func batchReporter(rep Reporter) func(runner.Progress) {
	return func(pr runner.Progress) {
		rep.Progress(pr.Processed, pr.Total, pr.Message)
	}
}
