package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	errs "enricher/pkg/errors"
	"enricher/pkg/logger"
)

// Task is the body of a job. Its result becomes the job's results when it
// returns without error and the job was not cancelled in the meantime.
type Task func(ctx context.Context, h *Handle) (interface{}, error)

// Executor runs job bodies off the caller's goroutine.
type Executor interface {
	Execute(name string, fn func(ctx context.Context)) error
}

// GoExecutor starts one goroutine per job.
type GoExecutor struct{}

func (GoExecutor) Execute(_ string, fn func(ctx context.Context)) error {
	go fn(context.Background())
	return nil
}

// Options configures a Registry. Zero values get defaults.
type Options struct {
	Executor  Executor
	Activity  *ActivityLog
	Processes *ProcessTable
	// HardCancel registers each job's context as a killable process, so a
	// cancel request also aborts in-flight HTTP calls.
	HardCancel bool
	Logger     logger.Logger
	Now        func() time.Time
}

// KindStats counts the jobs of one kind.
type KindStats struct {
	Active int `json:"active"`
	Total  int `json:"total"`
}

// Registry is the in-memory job table. It lives as long as the process.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job

	exec       Executor
	activity   *ActivityLog
	procs      *ProcessTable
	hardCancel bool
	log        logger.Logger
	now        func() time.Time
	wg         sync.WaitGroup
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		jobs:       make(map[string]*Job),
		exec:       opts.Executor,
		activity:   opts.Activity,
		procs:      opts.Processes,
		hardCancel: opts.HardCancel,
		log:        opts.Logger,
		now:        opts.Now,
	}
	if r.exec == nil {
		r.exec = GoExecutor{}
	}
	if r.activity == nil {
		r.activity = NewActivityLog(DefaultMaxEntries)
	}
	if r.procs == nil {
		r.procs = NewProcessTable()
	}
	if r.log == nil {
		r.log = logger.GetLogger()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// NewJobID returns an id of the form job_20060102_150405_1a2b3c4d.
func NewJobID(now time.Time) string {
	return fmt.Sprintf("job_%s_%s", now.Format("20060102_150405"), uuid.NewString()[:8])
}

// Activity returns the registry's activity log.
func (r *Registry) Activity() *ActivityLog { return r.activity }

// Processes returns the process-tracking table.
func (r *Registry) Processes() *ProcessTable { return r.procs }

// Submit registers a queued job and hands task to the executor. An empty
// id is generated; a taken id is a conflict.
func (r *Registry) Submit(kind Kind, id string, config interface{}, task Task) (Snapshot, error) {
	r.mu.Lock()
	if id == "" {
		for id == "" || r.jobs[id] != nil {
			id = NewJobID(r.now())
		}
	} else if _, exists := r.jobs[id]; exists {
		r.mu.Unlock()
		return Snapshot{}, errs.Newf(errs.ErrorTypeConflict, "%s with ID '%s' already exists", kind.Label(), id)
	}
	job := newJob(id, kind, config, r.now())
	r.jobs[id] = job
	r.mu.Unlock()

	r.wg.Add(1)
	err := r.exec.Execute(id, func(ctx context.Context) {
		defer r.wg.Done()
		r.run(ctx, job, task)
	})
	if err != nil {
		r.wg.Done()
		r.mu.Lock()
		delete(r.jobs, id)
		r.mu.Unlock()
		return Snapshot{}, errs.Wrap(errs.ErrorTypeServerError, err, fmt.Sprintf("failed to start %s", kind))
	}

	r.activity.Addf("INFO", "[%s] %s queued", id, kind)
	r.log.InfoWithFields("Job submitted", map[string]interface{}{"job_id": id, "kind": string(kind)})
	return job.Snapshot(), nil
}

func (r *Registry) run(ctx context.Context, job *Job, task Task) {
	if !r.move(job, StatusRunning, nil) {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if r.hardCancel {
		untrack := r.procs.Track(job.id, NewContextProcess(cancel))
		defer untrack()
	}

	h := &Handle{job: job, registry: r, log: r.log.WithFields(map[string]interface{}{
		"job_id": job.id,
		"kind":   string(job.kind),
	})}

	results, err := r.safeRun(ctx, task, h)
	switch {
	case job.token.Cancelled():
		h.log.Info("Job stopped after cancellation")
	case err != nil:
		r.move(job, StatusFailed, func(j *Job) { j.err = err.Error() })
		r.activity.Addf("ERROR", "[%s] failed: %v", job.id, err)
	default:
		if !r.move(job, StatusCompleted, func(j *Job) { j.results = results }) {
			h.log.Warn("Discarding result of job that is no longer running")
			return
		}
		r.activity.Addf("INFO", "[%s] completed", job.id)
	}
}

func (r *Registry) safeRun(ctx context.Context, task Task, h *Handle) (results interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			h.log.ErrorWithFields("Job panicked", map[string]interface{}{"panic": fmt.Sprint(p), "stack": string(debug.Stack())})
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return task(ctx, h)
}

func (r *Registry) move(job *Job, to Status, update func(j *Job)) bool {
	from, ok := job.transition(to, r.now(), update)
	if ok {
		logger.LogJobTransition(r.log, job.id, string(job.kind), string(from), string(to))
	}
	return ok
}

func (r *Registry) lookup(kind Kind, id string) (*Job, error) {
	r.mu.RLock()
	job, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok || (kind != "" && job.kind != kind) {
		return nil, errs.NotFound("%s '%s' not found", kind.Label(), id)
	}
	return job, nil
}

// Get returns the job's snapshot. An empty kind matches any kind.
func (r *Registry) Get(kind Kind, id string) (Snapshot, error) {
	job, err := r.lookup(kind, id)
	if err != nil {
		return Snapshot{}, err
	}
	return job.Snapshot(), nil
}

// Results returns the results of a completed job.
func (r *Registry) Results(kind Kind, id string) (interface{}, error) {
	job, err := r.lookup(kind, id)
	if err != nil {
		return nil, err
	}
	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		return nil, errs.Newf(errs.ErrorTypeInvalidState, "%s '%s' is not completed. Current status: %s", kind.Label(), id, snap.Status)
	}
	return snap.Results, nil
}

// List returns snapshots of the jobs of kind, oldest first. An empty kind
// lists every job.
func (r *Registry) List(kind Kind) []Snapshot {
	r.mu.RLock()
	out := make([]Snapshot, 0, len(r.jobs))
	for _, job := range r.jobs {
		if kind == "" || job.kind == kind {
			out = append(out, job.Snapshot())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].JobID < out[j].JobID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Delete removes a job. An active job is cancelled first.
func (r *Registry) Delete(kind Kind, id string) error {
	job, err := r.lookup(kind, id)
	if err != nil {
		return err
	}
	if !job.Status().Terminal() {
		r.cancel(job)
	}

	r.mu.Lock()
	delete(r.jobs, id)
	r.mu.Unlock()

	r.activity.Addf("INFO", "[%s] deleted", id)
	return nil
}

// Cancel moves a queued or running job to cancelled, signals its token and
// kills its tracked processes. Cancelling a finished job is rejected.
func (r *Registry) Cancel(kind Kind, id string) (Snapshot, error) {
	job, err := r.lookup(kind, id)
	if err != nil {
		return Snapshot{}, err
	}
	if !r.cancel(job) {
		return Snapshot{}, errs.Newf(errs.ErrorTypeInvalidState, "%s '%s' cannot be cancelled. Current status: %s", kind.Label(), id, job.Status())
	}
	return job.Snapshot(), nil
}

func (r *Registry) cancel(job *Job) bool {
	if !r.move(job, StatusCancelled, func(j *Job) { j.err = "Job cancelled by user" }) {
		return false
	}
	job.token.Cancel()
	r.activity.Addf("WARNING", "[%s] cancellation requested", job.id)

	killed, err := r.procs.Kill(job.id)
	if err != nil {
		r.log.WithError(err).WithField("job_id", job.id).Warn("Failed to kill job process")
	} else if killed > 0 {
		r.log.WithField("job_id", job.id).WithField("killed", killed).Info("Killed job processes")
	}
	return true
}

// CancelAll cancels every queued or running job and returns how many.
func (r *Registry) CancelAll() int {
	r.mu.RLock()
	active := make([]*Job, 0)
	for _, job := range r.jobs {
		if !job.Status().Terminal() {
			active = append(active, job)
		}
	}
	r.mu.RUnlock()

	n := 0
	for _, job := range active {
		if r.cancel(job) {
			n++
		}
	}
	if n > 0 {
		r.activity.Addf("WARNING", "Cancelled %d running jobs", n)
	}
	return n
}

// Stats counts active (queued or running) and total jobs per kind.
func (r *Registry) Stats() map[Kind]KindStats {
	stats := make(map[Kind]KindStats, len(Kinds()))
	for _, k := range Kinds() {
		stats[k] = KindStats{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, job := range r.jobs {
		s := stats[job.kind]
		s.Total++
		if !job.Status().Terminal() {
			s.Active++
		}
		stats[job.kind] = s
	}
	return stats
}

// Wait blocks until every submitted task has returned or ctx is done.
func (r *Registry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
