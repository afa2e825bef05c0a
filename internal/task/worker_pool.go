package task

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// ProcessFunc executes one task on behalf of a worker.
type ProcessFunc func(ctx context.Context, task Task, workerID int) error

// WorkerPool manages a pool of worker goroutines that process tasks
// from a task queue. It handles graceful shutdown and worker lifecycle.
type WorkerPool struct {
	// taskQueue provides read access to the tasks to be processed
	taskQueue TaskQueueReader

	// workerCount is the number of concurrent workers to start
	workerCount int

	// wg tracks active worker goroutines for clean shutdown
	wg sync.WaitGroup

	// ctx signals workers to stop picking up new tasks
	ctx context.Context

	// cancel is the function to call to cancel the context
	cancel context.CancelFunc

	// taskCtx is handed to running tasks. It is never cancelled so an
	// in-flight task always runs to its own terminal outcome.
	taskCtx context.Context

	logger *slog.Logger

	// errorHandler is called when a task execution fails
	// If nil, errors are only logged
	errorHandler func(task Task, err error)

	// processor runs each task; defaults to calling task.Execute
	processor ProcessFunc

	startOnce sync.Once
	stopOnce  sync.Once
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start
	// If zero or negative, defaults to 1
	WorkerCount int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 2,
	}
}

// NewWorkerPool creates a new worker pool with the specified configuration
func NewWorkerPool(taskQueue TaskQueueReader, config WorkerPoolConfig, logger *slog.Logger) *WorkerPool {
	logger = logger.With("component", "worker_pool")

	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		taskQueue:   taskQueue,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskCtx:     context.Background(),
		logger:      logger,
	}
}

// SetErrorHandler allows setting a custom error handler for task execution failures
func (p *WorkerPool) SetErrorHandler(handler func(task Task, err error)) {
	p.errorHandler = handler
}

// SetProcessor replaces the function used to run each task. It must be
// called before Start.
func (p *WorkerPool) SetProcessor(fn ProcessFunc) {
	p.processor = fn
}

// SetTaskContext sets the base context handed to running tasks, typically
// one carrying a logger. It must be called before Start.
func (p *WorkerPool) SetTaskContext(ctx context.Context) {
	if ctx != nil {
		p.taskCtx = ctx
	}
}

// Start launches the workers. Calling Start more than once has no effect.
func (p *WorkerPool) Start() {
	p.startOnce.Do(func() {
		p.logger.Info("starting worker pool", "worker_count", p.workerCount)
		for i := 0; i < p.workerCount; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
	})
}

// Stop signals workers to exit and waits for them. A task that is already
// running finishes first; tasks still buffered in the queue are left there.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
		p.wg.Wait()
		p.logger.Info("worker pool stopped")
	})
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("starting worker", "worker_id", id)
	tasks := p.taskQueue.GetChannel()

	for {
		// Check for shutdown first so a busy queue cannot starve Stop.
		select {
		case <-p.ctx.Done():
			p.logger.Debug("stopping worker", "worker_id", id)
			return
		default:
		}

		select {
		case <-p.ctx.Done():
			p.logger.Debug("stopping worker", "worker_id", id)
			return
		case task, ok := <-tasks:
			if !ok {
				p.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}
			p.processTask(task, id)
		}
	}
}

// processTask runs a single task, turning a panic into an error so one bad
// task cannot take a worker down.
func (p *WorkerPool) processTask(task Task, workerID int) {
	logger := p.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
		"worker_id", workerID,
	)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("task panicked", "panic", r, "stack", string(debug.Stack()))
				err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		if p.processor != nil {
			return p.processor(p.taskCtx, task, workerID)
		}
		return task.Execute(p.taskCtx)
	}()

	if err == nil {
		logger.Debug("task processed")
		return
	}

	logger.Warn("task execution failed", "error", err)
	if p.errorHandler != nil {
		p.errorHandler(task, err)
	}
}
