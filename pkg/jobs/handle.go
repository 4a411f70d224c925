package jobs

import (
	"fmt"

	"enricher/pkg/logger"
)

// Handle is what a running task sees of its job.
type Handle struct {
	job      *Job
	registry *Registry
	log      logger.Logger
}

// ID returns the job id.
func (h *Handle) ID() string { return h.job.id }

// Token returns the job's cancellation token.
func (h *Handle) Token() *Token { return h.job.token }

// Cancelled reports whether the job was cancelled.
func (h *Handle) Cancelled() bool { return h.job.token.Cancelled() }

// Done is closed when the job is cancelled.
func (h *Handle) Done() <-chan struct{} { return h.job.token.Done() }

// Logger returns a logger carrying the job id.
func (h *Handle) Logger() logger.Logger { return h.log }

// Progress records the job's position and echoes it to the activity log.
func (h *Handle) Progress(current, total int, message string) {
	p := NewProgress(current, total, message, h.registry.now())
	h.job.setProgress(p)
	h.registry.activity.Add("INFO", fmt.Sprintf("[%s] %s - %d/%d (%.1f%%)", h.job.id, message, p.Current, p.Total, p.Percentage))
}

// Log adds a line to the activity log.
func (h *Handle) Log(level, message string) {
	h.registry.activity.Add(level, fmt.Sprintf("[%s] %s", h.job.id, message))
}

// Track registers a process that a cancel request should kill.
func (h *Handle) Track(p Process) (untrack func()) {
	return h.registry.procs.Track(h.job.id, p)
}
