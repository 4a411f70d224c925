package traits

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"enricher/pkg/checkpoint"
	"enricher/pkg/completion"
	"enricher/pkg/config"
	errs "enricher/pkg/errors"
	"enricher/pkg/logger"
	"enricher/pkg/retry"
	"enricher/pkg/runner"
	"enricher/pkg/storage"
)

// Options control one extraction session.
type Options struct {
	InputFile  string
	OutputFile string

	// MaxProfiles caps successful extractions this session; -1 or 0 means
	// no cap.
	MaxProfiles int
	Force       bool
	Delay       time.Duration

	MaxAttempts int
	BackoffBase time.Duration

	OnProgress func(runner.Progress)
	Token      runner.Token
}

// OptionsFromConfig fills Options from the traits and paths sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		InputFile:   cfg.Paths.CleanedFile(),
		OutputFile:  cfg.Paths.TraitsFile(),
		MaxProfiles: cfg.Traits.MaxProfiles,
		Force:       cfg.Traits.ForceReextraction,
		Delay:       cfg.Traits.Delay,
		MaxAttempts: cfg.Traits.MaxAttempts,
		BackoffBase: cfg.Traits.BackoffBase,
	}
}

// Result summarises an extraction session.
type Result struct {
	TotalProfiles     int              `json:"total_profiles"`
	SkippedNoURL      int              `json:"skipped_no_url"`
	ProcessedProfiles int              `json:"processed_profiles"`
	NewProfiles       int              `json:"new_profiles"`
	FailedProfiles    int              `json:"failed_profiles"`
	Failures          []runner.Failure `json:"failures,omitempty"`
	RemainingProfiles int              `json:"remaining_profiles"`
	LimitReached      bool             `json:"limit_reached"`
	InputFile         string           `json:"input_file"`
	OutputFile        string           `json:"output_file"`
	MaxProfiles       int              `json:"max_profiles"`
	ForceReextraction bool             `json:"force_reextraction"`
}

// Extractor turns cleaned profiles into trait records.
type Extractor struct {
	model  completion.Completer
	opts   Options
	logger logger.Logger
	now    func() time.Time
}

// New creates an Extractor. A nil logger uses the global one.
func New(model completion.Completer, opts Options, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 2
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}
	return &Extractor{
		model:  model,
		opts:   opts,
		logger: log.WithField("component", "traits"),
		now:    time.Now,
	}
}

// Extract asks the model for one profile's traits.
func (e *Extractor) Extract(ctx context.Context, profile map[string]interface{}) (Traits, error) {
	doc, err := BuildDocument(profile)
	if err != nil {
		return Traits{}, err
	}
	raw, err := e.model.Complete(ctx, SystemPrompt, doc)
	if err != nil {
		return Traits{}, err
	}
	return FromReply(raw, profile)
}

// Run extracts traits for every cleaned profile not yet in the output.
// Failed profiles are skipped and retried on the next session.
func (e *Extractor) Run(ctx context.Context) (*Result, error) {
	profiles, err := LoadProfiles(e.opts.InputFile)
	if err != nil {
		return nil, err
	}

	results := storage.NewAccumulator[Traits](e.opts.OutputFile)
	store := checkpoint.NewStore(checkpoint.PathFor(e.opts.OutputFile), e.logger)
	if e.opts.Force {
		if err := e.reset(store, results); err != nil {
			return nil, err
		}
	} else if err := e.seed(store, results); err != nil {
		return nil, err
	}

	units := make([]map[string]interface{}, 0, len(profiles))
	skipped := 0
	for i, p := range profiles {
		if ProfileURL(p) == "" {
			skipped++
			e.logger.WithField("index", i).Warn("Skipping profile without linkedinUrl")
			continue
		}
		units = append(units, p)
	}

	maxUnits := e.opts.MaxProfiles
	if maxUnits < 0 {
		maxUnits = 0
	}

	r, err := runner.New(runner.Config[map[string]interface{}, Traits]{
		Name:   "traits",
		UnitID: ProfileURL,
		Call: func(ctx context.Context, batch []map[string]interface{}) ([]Traits, error) {
			t, err := e.Extract(ctx, batch[0])
			if err != nil {
				return nil, err
			}
			return []Traits{t}, nil
		},
		Checkpoint: store,
		Results:    results,
		BatchSize:  1,
		Delay:      e.opts.Delay,
		Policy:     runner.SkipOnError,
		Retry: &retry.Config{
			MaxAttempts: e.opts.MaxAttempts,
			Backoff:     &retry.ExponentialBackoff{BaseDelay: e.opts.BackoffBase, MaxDelay: 30 * e.opts.BackoffBase, Multiplier: 2, JitterFactor: 0.1},
			RetryIf:     retry.UnitRetryIf,
			Logger:      e.logger,
		},
		MaxUnits: maxUnits,
		OnBatch:  e.opts.OnProgress,
		Token:    e.opts.Token,
		Logger:   e.logger,
	})
	if err != nil {
		return nil, err
	}

	out, runErr := r.Run(ctx, units)
	if out == nil {
		return nil, runErr
	}

	res := &Result{
		TotalProfiles:     len(profiles),
		SkippedNoURL:      skipped,
		ProcessedProfiles: len(out.Results),
		NewProfiles:       out.Committed,
		FailedProfiles:    len(out.Failed),
		Failures:          out.Failed,
		RemainingProfiles: out.Total - out.Processed,
		LimitReached:      out.LimitReached,
		InputFile:         e.opts.InputFile,
		OutputFile:        e.opts.OutputFile,
		MaxProfiles:       e.opts.MaxProfiles,
		ForceReextraction: e.opts.Force,
	}
	if runErr != nil {
		return res, runErr
	}

	e.logger.InfoWithFields("Trait extraction finished", map[string]interface{}{
		"new":       res.NewProfiles,
		"failed":    res.FailedProfiles,
		"remaining": res.RemainingProfiles,
		"total":     res.ProcessedProfiles,
	})
	return res, nil
}

// reset backs up and clears both the checkpoint and the previous output.
func (e *Extractor) reset(store *checkpoint.Store, results *storage.Accumulator[Traits]) error {
	if _, err := store.Reset(); err != nil {
		return err
	}
	backup, err := storage.Backup(results.Path(), e.now())
	if err != nil {
		return fmt.Errorf("failed to back up %s: %w", results.Path(), err)
	}
	if err := results.Remove(); err != nil {
		return err
	}
	if backup != "" {
		e.logger.WithField("backup", backup).Info("Forced re-extraction, previous traits backed up")
	}
	return nil
}

// seed builds a checkpoint from an output file that predates it, so
// profiles already in the output are not extracted twice.
func (e *Extractor) seed(store *checkpoint.Store, results *storage.Accumulator[Traits]) error {
	if store.Exists() {
		return nil
	}
	existing, err := results.Load()
	if err != nil || len(existing) == 0 {
		return err
	}
	set := checkpoint.NewSet()
	for _, t := range existing {
		set.Add(t.UnitID())
	}
	e.logger.WithField("processed", set.Len()).Info("Seeding checkpoint from existing traits")
	return store.Save(set)
}

// LoadProfiles reads a cleaned profile list.
func LoadProfiles(path string) ([]map[string]interface{}, error) {
	var profiles []map[string]interface{}
	if err := storage.ReadJSON(path, &profiles); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errs.Config("input file %s not found", path)
		}
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, "failed to read "+path)
	}
	return profiles, nil
}

// LoadTraits reads a traits output file.
func LoadTraits(path string) ([]Traits, error) {
	var out []Traits
	if err := storage.ReadJSON(path, &out); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errs.Config("traits file %s not found", path)
		}
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, "failed to read "+path)
	}
	return out, nil
}

// ProgressStats describes how far extraction has come for an input file.
type ProgressStats struct {
	TotalProfiles        int             `json:"total_profiles"`
	ValidProfilesWithURL int             `json:"valid_profiles_with_urls"`
	ProcessedProfiles    int             `json:"processed_profiles"`
	RemainingProfiles    int             `json:"remaining_profiles"`
	CompletionPercentage float64         `json:"completion_percentage"`
	ProcessedURLs        []string        `json:"processed_urls"`
	Checkpoint           checkpoint.Info `json:"checkpoint"`
}

// CheckProgress compares the cleaned profiles in input with the traits
// already extracted to output, without calling the model.
func CheckProgress(input, output string, log logger.Logger) (*ProgressStats, error) {
	profiles, err := LoadProfiles(input)
	if err != nil {
		return nil, err
	}

	store := checkpoint.NewStore(checkpoint.PathFor(output), log)
	done := store.Load()
	if existing, err := storage.NewAccumulator[Traits](output).Load(); err == nil {
		for _, t := range existing {
			done.Add(t.UnitID())
		}
	}

	stats := &ProgressStats{TotalProfiles: len(profiles), ProcessedURLs: []string{}, Checkpoint: store.Info()}
	seen := make(map[string]struct{})
	for _, p := range profiles {
		u := ProfileURL(p)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		stats.ValidProfilesWithURL++
		if done.Has(u) {
			stats.ProcessedProfiles++
			stats.ProcessedURLs = append(stats.ProcessedURLs, u)
		}
	}
	stats.RemainingProfiles = stats.ValidProfilesWithURL - stats.ProcessedProfiles
	if stats.ValidProfilesWithURL > 0 {
		pct := float64(stats.ProcessedProfiles) / float64(stats.ValidProfilesWithURL) * 100
		stats.CompletionPercentage = math.Round(pct*10) / 10
	}
	return stats, nil
}
