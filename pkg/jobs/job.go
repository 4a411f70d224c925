package jobs

import (
	"math"
	"sync"
	"time"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// canMove encodes the lifecycle:
//
//	queued -> running -> completed
//	queued|running -> failed
//	queued|running -> cancelled
func canMove(from, to Status) bool {
	switch to {
	case StatusRunning:
		return from == StatusQueued
	case StatusCompleted:
		return from == StatusRunning
	case StatusFailed, StatusCancelled:
		return from == StatusQueued || from == StatusRunning
	}
	return false
}

// Kind names the pipeline stage a job runs.
type Kind string

const (
	KindExtract Kind = "extract"
	KindScrape  Kind = "apify"
	KindClean   Kind = "cleaner"
	KindTraits  Kind = "traits"
	KindUpdate  Kind = "airtable"
	KindFields  Kind = "fields"
)

// Kinds lists every job kind in pipeline order.
func Kinds() []Kind {
	return []Kind{KindExtract, KindScrape, KindClean, KindTraits, KindUpdate, KindFields}
}

// Label is the human name used in messages about jobs of this kind.
func (k Kind) Label() string {
	switch k {
	case KindScrape:
		return "Apify job"
	case KindClean:
		return "Data cleaner job"
	case KindTraits:
		return "Trait extractor job"
	case KindUpdate:
		return "Airtable updater job"
	case KindFields:
		return "Field creator job"
	default:
		return "Job"
	}
}

// Progress is the last reported position of a running job.
type Progress struct {
	Current    int       `json:"current"`
	Total      int       `json:"total"`
	Percentage float64   `json:"percentage"`
	Message    string    `json:"message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewProgress computes the percentage rounded to one decimal. A negative
// total means unknown and is replaced by current.
func NewProgress(current, total int, message string, now time.Time) Progress {
	if total < 0 {
		total = current
	}
	var pct float64
	if total > 0 {
		pct = math.Round(float64(current)/float64(total)*1000) / 10
	}
	return Progress{
		Current:    current,
		Total:      total,
		Percentage: pct,
		Message:    message,
		Timestamp:  now,
	}
}

// Snapshot is a consistent copy of a job.
type Snapshot struct {
	JobID       string      `json:"job_id"`
	Kind        Kind        `json:"kind"`
	Status      Status      `json:"status"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at"`
	Progress    Progress    `json:"progress"`
	Results     interface{} `json:"results"`
	Error       string      `json:"error,omitempty"`
	Config      interface{} `json:"config,omitempty"`
}

// Job is owned by a Registry. Only the task running it and a cancel
// request mutate it.
type Job struct {
	id     string
	kind   Kind
	config interface{}
	token  *Token

	mu          sync.RWMutex
	status      Status
	startedAt   time.Time
	completedAt *time.Time
	progress    Progress
	results     interface{}
	err         string
}

func newJob(id string, kind Kind, config interface{}, now time.Time) *Job {
	return &Job{
		id:        id,
		kind:      kind,
		config:    config,
		token:     NewToken(),
		status:    StatusQueued,
		startedAt: now,
	}
}

// ID returns the job id.
func (j *Job) ID() string { return j.id }

// Kind returns the job kind.
func (j *Job) Kind() Kind { return j.kind }

// Status returns the current status.
func (j *Job) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// Snapshot copies the job under its lock.
func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return Snapshot{
		JobID:       j.id,
		Kind:        j.kind,
		Status:      j.status,
		StartedAt:   j.startedAt,
		CompletedAt: j.completedAt,
		Progress:    j.progress,
		Results:     j.results,
		Error:       j.err,
		Config:      j.config,
	}
}

// transition moves the job to `to` if the lifecycle allows it, applying
// update under the same lock. It returns the previous status.
func (j *Job) transition(to Status, now time.Time, update func(j *Job)) (Status, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	from := j.status
	if !canMove(from, to) {
		return from, false
	}
	j.status = to
	if to.Terminal() {
		completed := now
		j.completedAt = &completed
	}
	if update != nil {
		update(j)
	}
	return from, true
}

func (j *Job) setProgress(p Progress) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return
	}
	j.progress = p
}
