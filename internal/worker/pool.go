package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	errs "enricher/pkg/errors"
	"enricher/pkg/logger"
)

// Task is one unit of background work.
type Task struct {
	Name string
	Run  func(ctx context.Context)
}

// Result reports how a task ended.
type Result struct {
	Task     Task
	Duration time.Duration
	// Panic holds the recovered value when the task panicked.
	Panic interface{}
}

// Pool runs tasks on a fixed number of workers.
type Pool struct {
	numWorkers int
	taskQueue  chan Task
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	logger     logger.Logger
	onDone     func(Result)

	mu      sync.RWMutex
	stopped bool
	active  atomic.Int32
}

// Option customizes a Pool.
type Option func(*Pool)

// WithOnDone registers a callback invoked after every task.
func WithOnDone(fn func(Result)) Option {
	return func(p *Pool) { p.onDone = fn }
}

// NewPool creates a pool with numWorkers workers and a queue holding
// queueSize pending tasks.
func NewPool(numWorkers, queueSize int, log logger.Logger, opts ...Option) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if queueSize < numWorkers {
		queueSize = numWorkers * 2
	}
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		numWorkers: numWorkers,
		taskQueue:  make(chan Task, queueSize),
		ctx:        ctx,
		cancel:     cancel,
		logger:     log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers.
func (p *Pool) Start() {
	p.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": p.numWorkers,
		"queue_size":  cap(p.taskQueue),
	})

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit queues a task without blocking. A full queue or a stopped pool is
// an error.
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return errs.New(errs.ErrorTypeInvalidState, "worker pool is shutting down")
	}

	select {
	case p.taskQueue <- task:
		p.logger.DebugWithFields("Task submitted to queue", map[string]interface{}{
			"task": task.Name,
		})
		return nil
	default:
		return errs.Newf(errs.ErrorTypeServerError, "worker queue is full (%d pending)", len(p.taskQueue))
	}
}

// Execute adapts the pool to jobs.Executor.
func (p *Pool) Execute(name string, fn func(ctx context.Context)) error {
	return p.Submit(Task{Name: name, Run: fn})
}

// Stop stops accepting tasks and waits for queued ones to finish. When ctx
// ends first, running tasks see their context cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.taskQueue)
	p.mu.Unlock()

	p.logger.Info("Stopping worker pool...")

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.logger.Info("Worker pool stopped")
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		p.logger.Warn("Worker pool stopped before queued tasks finished")
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	p.logger.DebugWithFields("Worker started", map[string]interface{}{
		"worker_id": id,
	})

	// Queued tasks always run; after cancellation they see a done context
	// and are expected to return promptly.
	for task := range p.taskQueue {
		if p.ctx.Err() != nil {
			p.logger.DebugWithFields("Worker running task with cancelled context", map[string]interface{}{
				"worker_id": id,
				"task":      task.Name,
			})
		}

		result := p.process(task, id)
		if p.onDone != nil {
			p.onDone(result)
		}
	}

	p.logger.DebugWithFields("Worker stopping - task queue closed", map[string]interface{}{
		"worker_id": id,
	})
}

func (p *Pool) process(task Task, workerID int) (result Result) {
	start := time.Now()
	result.Task = task
	p.active.Add(1)

	defer func() {
		p.active.Add(-1)
		result.Duration = time.Since(start)
		if r := recover(); r != nil {
			result.Panic = r
			p.logger.ErrorWithFields("Worker recovered from task panic", map[string]interface{}{
				"worker_id": workerID,
				"task":      task.Name,
				"panic":     fmt.Sprint(r),
				"stack":     string(debug.Stack()),
			})
		}
	}()

	p.logger.DebugWithFields("Worker processing task", map[string]interface{}{
		"worker_id": workerID,
		"task":      task.Name,
	})
	task.Run(p.ctx)

	p.logger.DebugWithFields("Worker completed task", map[string]interface{}{
		"worker_id": workerID,
		"task":      task.Name,
		"duration":  time.Since(start).String(),
	})
	return result
}

// QueueSize returns the number of tasks waiting for a worker.
func (p *Pool) QueueSize() int {
	return len(p.taskQueue)
}

// ActiveWorkers returns the number of workers running a task.
func (p *Pool) ActiveWorkers() int {
	return int(p.active.Load())
}

// NumWorkers returns the pool size.
func (p *Pool) NumWorkers() int {
	return p.numWorkers
}
