package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"enricher/pkg/checkpoint"
	errs "enricher/pkg/errors"
	"enricher/pkg/logger"
	"enricher/pkg/retry"
)

// Policy selects what a failed call does to the rest of the run.
type Policy int

const (
	// AbortOnError stops at the first failed batch. Committed batches stay.
	AbortOnError Policy = iota
	// SkipOnError processes one unit per call, retries it, and moves on
	// when it keeps failing. Skipped units stay eligible for the next run.
	SkipOnError
)

func (p Policy) String() string {
	if p == SkipOnError {
		return "skip"
	}
	return "abort"
}

// Token is polled between calls. jobs.Token satisfies it.
type Token interface {
	Cancelled() bool
	Done() <-chan struct{}
}

// Accumulator is the durable result list a run appends to.
type Accumulator[R any] interface {
	Load() ([]R, error)
	Append(records []R) (int, error)
}

// CheckpointStore persists the processed-id set.
type CheckpointStore interface {
	Load() *checkpoint.Set
	Save(set *checkpoint.Set) error
}

// CallFunc performs one external call for a batch of units.
type CallFunc[U, R any] func(ctx context.Context, batch []U) ([]R, error)

// Progress is reported after every committed or skipped call.
type Progress struct {
	Batch     int
	Batches   int
	Processed int
	Total     int
	Committed int
	Failed    int
	Message   string
}

// Failure is a unit skipped under SkipOnError.
type Failure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Outcome summarizes one run.
type Outcome[R any] struct {
	// Results is the full persisted output after the run.
	Results []R
	// Total counts distinct units.
	Total int
	// Remaining counts units that were not processed when the run started.
	Remaining int
	// Processed counts units in the checkpoint when the run ended.
	Processed int
	// Committed counts units checkpointed by this run.
	Committed int
	Calls     int
	Failed    []Failure
	// Missing holds units sent in a successful call that no result covered.
	Missing      []string
	Cancelled    bool
	LimitReached bool
}

// Config wires a Runner.
type Config[U, R any] struct {
	// Name labels log lines.
	Name string

	UnitID func(U) string
	// ResultID reads the unit id from a result; PayloadID when nil. Results
	// without an id fall back to the unit at the same position in the batch.
	ResultID func(R) string
	// Normalize canonicalizes ids before comparison; strings.TrimSpace
	// when nil.
	Normalize func(string) string

	Call       CallFunc[U, R]
	Checkpoint CheckpointStore
	Results    Accumulator[R]

	BatchSize int
	Delay     time.Duration
	Policy    Policy
	// Retry applies per unit under SkipOnError. Nil means one attempt.
	Retry *retry.Config
	// MaxUnits bounds the units committed by one run; 0 or less is
	// unlimited.
	MaxUnits int

	OnBatch func(Progress)
	Token   Token
	Logger  logger.Logger
}

// Runner drives a resumable batch run.
type Runner[U, R any] struct {
	cfg Config[U, R]
	log logger.Logger
}

type pending[U any] struct {
	id   string
	unit U
}

// New validates cfg and returns a Runner.
func New[U, R any](cfg Config[U, R]) (*Runner[U, R], error) {
	switch {
	case cfg.UnitID == nil:
		return nil, errs.Config("runner %q: unit id function is required", cfg.Name)
	case cfg.Call == nil:
		return nil, errs.Config("runner %q: call function is required", cfg.Name)
	case cfg.Checkpoint == nil:
		return nil, errs.Config("runner %q: checkpoint store is required", cfg.Name)
	case cfg.Results == nil:
		return nil, errs.Config("runner %q: result accumulator is required", cfg.Name)
	}

	if cfg.BatchSize < 1 || cfg.Policy == SkipOnError {
		cfg.BatchSize = 1
	}
	if cfg.Normalize == nil {
		cfg.Normalize = strings.TrimSpace
	}
	if cfg.ResultID == nil {
		cfg.ResultID = func(r R) string { return PayloadID(r) }
	}
	log := cfg.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	return &Runner[U, R]{
		cfg: cfg,
		log: log.WithFields(map[string]interface{}{"runner": cfg.Name, "policy": cfg.Policy.String()}),
	}, nil
}

// Run processes every unit missing from the checkpoint. It returns the
// outcome so far together with any error that ended the run early.
func (r *Runner[U, R]) Run(ctx context.Context, units []U) (*Outcome[R], error) {
	processed := r.normalized(r.cfg.Checkpoint.Load())

	all := r.dedupe(units)
	remaining := make([]pending[U], 0, len(all))
	for _, p := range all {
		if !processed.Has(p.id) {
			remaining = append(remaining, p)
		}
	}

	out := &Outcome[R]{
		Total:     len(all),
		Remaining: len(remaining),
		Processed: len(all) - len(remaining),
	}

	if len(remaining) == 0 {
		results, err := r.cfg.Results.Load()
		if err != nil {
			return nil, err
		}
		out.Results = results
		r.log.WithField("total", out.Total).Info("All units already processed")
		return out, nil
	}

	batches := (len(remaining) + r.cfg.BatchSize - 1) / r.cfg.BatchSize
	r.log.InfoWithFields("Starting run", map[string]interface{}{
		"total":      out.Total,
		"processed":  out.Processed,
		"remaining":  out.Remaining,
		"batch_size": r.cfg.BatchSize,
		"batches":    batches,
	})

	batchNo := 0
	for next := 0; next < len(remaining); {
		if r.cancelled() {
			out.Cancelled = true
			break
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if r.cfg.MaxUnits > 0 && out.Committed >= r.cfg.MaxUnits {
			out.LimitReached = true
			r.log.WithField("max_units", r.cfg.MaxUnits).Info("Reached session limit")
			break
		}

		end := next + r.cfg.BatchSize
		if end > len(remaining) {
			end = len(remaining)
		}
		if r.cfg.MaxUnits > 0 && end-next > r.cfg.MaxUnits-out.Committed {
			end = next + r.cfg.MaxUnits - out.Committed
		}
		batch := unprocessed(remaining[next:end], processed)
		next = end
		if len(batch) == 0 {
			continue
		}
		batchNo++

		results, err := r.call(ctx, batch)
		out.Calls++
		if err != nil {
			if r.cancelled() {
				out.Cancelled = true
				break
			}
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			if r.cfg.Policy == AbortOnError {
				r.log.WithError(err).ErrorWithFields("Batch failed, stopping run", map[string]interface{}{
					"batch":     batchNo,
					"batches":   batches,
					"committed": out.Committed,
				})
				return out, fmt.Errorf("batch %d of %d failed: %w", batchNo, batches, err)
			}

			out.Failed = append(out.Failed, Failure{ID: batch[0].id, Error: err.Error()})
			r.log.WithError(err).WarnWithFields("Unit failed, skipping", map[string]interface{}{
				"unit": batch[0].id,
			})
		} else {
			committed, err := r.commit(batch, results, processed, out)
			if err != nil {
				return out, err
			}
			out.Committed += committed
			out.Processed = countProcessed(all, processed)
			logger.LogBatch(r.log, batchNo, batches, out.Committed, out.Processed, out.Total)
		}

		r.report(Progress{
			Batch:     batchNo,
			Batches:   batches,
			Processed: out.Processed,
			Total:     out.Total,
			Committed: out.Committed,
			Failed:    len(out.Failed),
			Message:   fmt.Sprintf("Processed %d/%d", out.Processed, out.Total),
		})

		if next < len(remaining) && r.cfg.Delay > 0 {
			if err := r.wait(ctx, r.cfg.Delay); err != nil {
				return out, err
			}
		}
	}

	if out.LimitReached || out.Cancelled || len(out.Failed) > 0 || len(out.Missing) > 0 {
		r.log.InfoWithFields("Run ended with units left", map[string]interface{}{
			"committed": out.Committed,
			"failed":    len(out.Failed),
			"missing":   len(out.Missing),
			"left":      out.Total - out.Processed,
		})
	}

	results, err := r.cfg.Results.Load()
	if err != nil {
		return out, err
	}
	out.Results = results

	if out.Cancelled {
		return out, errs.Cancelled("run cancelled after %d of %d units", out.Processed, out.Total)
	}
	return out, nil
}

func (r *Runner[U, R]) dedupe(units []U) []pending[U] {
	seen := make(map[string]struct{}, len(units))
	out := make([]pending[U], 0, len(units))
	for _, u := range units {
		id := r.cfg.Normalize(r.cfg.UnitID(u))
		if id == "" {
			r.log.Debug("Skipping unit without id")
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, pending[U]{id: id, unit: u})
	}
	return out
}

// normalized rebuilds a loaded set with canonical ids, so checkpoints
// written in input form still match.
func (r *Runner[U, R]) normalized(loaded *checkpoint.Set) *checkpoint.Set {
	set := checkpoint.NewSet()
	if loaded == nil {
		return set
	}
	for _, id := range loaded.IDs() {
		set.Add(r.cfg.Normalize(id))
	}
	return set
}

func unprocessed[U any](batch []pending[U], processed *checkpoint.Set) []pending[U] {
	out := batch[:0:0]
	for _, p := range batch {
		if !processed.Has(p.id) {
			out = append(out, p)
		}
	}
	return out
}

func countProcessed[U any](all []pending[U], processed *checkpoint.Set) int {
	n := 0
	for _, p := range all {
		if processed.Has(p.id) {
			n++
		}
	}
	return n
}

func (r *Runner[U, R]) call(ctx context.Context, batch []pending[U]) ([]R, error) {
	units := make([]U, len(batch))
	for i, p := range batch {
		units[i] = p.unit
	}

	if r.cfg.Policy != SkipOnError || r.cfg.Retry == nil {
		return r.cfg.Call(ctx, units)
	}

	rc := *r.cfg.Retry
	retryIf := rc.RetryIf
	if retryIf == nil {
		retryIf = retry.UnitRetryIf
	}
	rc.RetryIf = func(err error) bool {
		return !r.cancelled() && retryIf(err)
	}
	return retry.DoWithResult(ctx, &rc, func(ctx context.Context) ([]R, error) {
		return r.cfg.Call(ctx, units)
	})
}

// commit tags results with unit ids, appends the new ones and then saves the
// extended processed set. It returns how many batch units were committed.
func (r *Runner[U, R]) commit(batch []pending[U], results []R, processed *checkpoint.Set, out *Outcome[R]) (int, error) {
	fresh := make([]R, 0, len(results))
	ids := make([]string, 0, len(results))
	seen := make(map[string]struct{}, len(results))

	for i, res := range results {
		id := r.cfg.Normalize(r.cfg.ResultID(res))
		if id == "" && i < len(batch) {
			id = batch[i].id
		}
		if id == "" {
			r.log.WithField("position", i).Warn("Dropping result without unit id")
			continue
		}
		if _, dup := seen[id]; dup || processed.Has(id) {
			r.log.WithField("unit", id).Debug("Dropping duplicate result")
			continue
		}
		seen[id] = struct{}{}
		fresh = append(fresh, res)
		ids = append(ids, id)
	}

	if len(fresh) > 0 {
		if _, err := r.cfg.Results.Append(fresh); err != nil {
			return 0, fmt.Errorf("failed to persist results: %w", err)
		}
		next := processed.Clone()
		for _, id := range ids {
			next.Add(id)
		}
		if err := r.cfg.Checkpoint.Save(next); err != nil {
			return 0, fmt.Errorf("failed to persist checkpoint: %w", err)
		}
		for _, id := range ids {
			processed.Add(id)
		}
	}

	committed := 0
	for _, p := range batch {
		if processed.Has(p.id) {
			committed++
			continue
		}
		out.Missing = append(out.Missing, p.id)
		r.log.WithField("unit", p.id).Warn("No result returned for unit, leaving it for the next run")
	}
	return committed, nil
}

func (r *Runner[U, R]) report(p Progress) {
	if r.cfg.OnBatch != nil {
		r.cfg.OnBatch(p)
	}
}

func (r *Runner[U, R]) cancelled() bool {
	return r.cfg.Token != nil && r.cfg.Token.Cancelled()
}

// wait sleeps for d. Cancellation of the token ends the wait early without
// error; the loop observes it before the next call.
func (r *Runner[U, R]) wait(ctx context.Context, d time.Duration) error {
	var done <-chan struct{}
	if r.cfg.Token != nil {
		done = r.cfg.Token.Done()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsCancelled reports whether err ended a run through its token.
func IsCancelled(err error) bool {
	return errs.Is(err, errs.ErrorTypeCancelled) || errors.Is(err, context.Canceled)
}
