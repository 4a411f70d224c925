package jobs

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
)

// Process is something a cancel request may terminate forcibly.
type Process interface {
	Kill() error
}

// ProcessTable tracks the killable processes of running jobs. All access
// is serialized.
type ProcessTable struct {
	mu    sync.Mutex
	next  int
	procs map[string]map[int]Process
}

// NewProcessTable returns an empty table.
func NewProcessTable() *ProcessTable {
	return &ProcessTable{procs: make(map[string]map[int]Process)}
}

// Track registers p under jobID. The returned func removes it again.
func (t *ProcessTable) Track(jobID string, p Process) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	key := t.next
	if t.procs[jobID] == nil {
		t.procs[jobID] = make(map[int]Process)
	}
	t.procs[jobID][key] = p

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.procs[jobID], key)
		if len(t.procs[jobID]) == 0 {
			delete(t.procs, jobID)
		}
	}
}

// Kill removes and kills every process of jobID. It returns how many were
// killed and the joined kill errors.
func (t *ProcessTable) Kill(jobID string) (int, error) {
	t.mu.Lock()
	procs := t.procs[jobID]
	delete(t.procs, jobID)
	t.mu.Unlock()

	var errs []error
	for _, p := range procs {
		if err := p.Kill(); err != nil {
			errs = append(errs, err)
		}
	}
	return len(procs), errors.Join(errs...)
}

// Count returns the number of tracked processes.
func (t *ProcessTable) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, procs := range t.procs {
		n += len(procs)
	}
	return n
}

// CommandProcess kills a started *exec.Cmd.
type CommandProcess struct {
	Cmd *exec.Cmd
}

func (c CommandProcess) Kill() error {
	if c.Cmd == nil || c.Cmd.Process == nil {
		return nil
	}
	if err := c.Cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// ContextProcess aborts in-flight calls by cancelling their context.
type ContextProcess struct {
	cancel context.CancelFunc
}

// NewContextProcess wraps cancel.
func NewContextProcess(cancel context.CancelFunc) *ContextProcess {
	return &ContextProcess{cancel: cancel}
}

func (c *ContextProcess) Kill() error {
	c.cancel()
	return nil
}
