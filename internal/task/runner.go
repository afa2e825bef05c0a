package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/fetchstore/internal/domain"
	"github.com/phrazzld/fetchstore/internal/platform/logger"
	"github.com/phrazzld/fetchstore/internal/redact"
	"github.com/sethvargo/go-retry"
)

// ErrRunnerStopped is returned by Submit after Stop.
var ErrRunnerStopped = errors.New("task runner is stopped")

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// StuckTaskAge defines how long a task can be in processing state
	// before it's considered stuck and reset
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck tasks
	// If zero, defaults to 5 minutes
	StuckTaskCheckInterval time.Duration

	// MaxAttempts caps how many times a task failing with a retryable
	// reason is executed. Values below 1 mean a single attempt.
	MaxAttempts int

	// RetryBaseDelay is the first backoff delay between attempts
	RetryBaseDelay time.Duration

	// ResultRetention is how long finished results stay available to
	// Result and Await
	ResultRetention time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:            2,
		QueueSize:              100,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
		MaxAttempts:            1,
		RetryBaseDelay:         time.Second,
		ResultRetention:        time.Hour,
	}
}

// TaskRunner manages background task processing
type TaskRunner struct {
	store      TaskStore
	queue      *TaskQueue
	pool       *WorkerPool
	results    *resultRegistry
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     TaskRunnerConfig
	logger     *slog.Logger
	errHandler func(task Task, err error)

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(store TaskStore, config TaskRunnerConfig, log *slog.Logger) *TaskRunner {
	if config.StuckTaskCheckInterval <= 0 {
		config.StuckTaskCheckInterval = 5 * time.Minute
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = time.Second
	}
	if config.ResultRetention <= 0 {
		config.ResultRetention = time.Hour
	}
	log = log.With("component", "task_runner")

	ctx, cancel := context.WithCancel(context.Background())
	queue := NewTaskQueue(config.QueueSize, log)

	poolConfig := DefaultWorkerPoolConfig()
	if config.WorkerCount > 0 {
		poolConfig.WorkerCount = config.WorkerCount
	}

	r := &TaskRunner{
		store:      store,
		queue:      queue,
		pool:       NewWorkerPool(queue, poolConfig, log),
		results:    newResultRegistry(),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     log,
		errHandler: func(task Task, err error) {
			log.Error("task execution failed",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", redact.Error(err))
		},
	}
	r.pool.SetProcessor(r.processTask)
	r.pool.SetTaskContext(logger.WithLogger(context.Background(), log))
	return r
}

// SetErrorHandler allows setting a custom error handler function.
// It is called once per task whose final outcome is a failure.
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// Submit persists the task and queues it for execution. The task's ID is the
// handle for Result and Await. When the queue is full the task is marked
// failed in the store and ErrQueueFull is returned.
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()
	if stopped {
		return ErrRunnerStopped
	}

	if err := r.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	r.results.track(task)
	if err := r.queue.Enqueue(task); err != nil {
		r.results.forget(task.ID())
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusFailed, err.Error()); updateErr != nil {
			r.logger.Error("failed to mark rejected task as failed",
				"task_id", task.ID(),
				"error", updateErr)
		}
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	logger.FromContextOrDefault(ctx, r.logger).Debug("task submitted",
		"task_id", task.ID(),
		"task_type", task.Type())
	return nil
}

// Result returns the latest known state of a task submitted to this runner.
func (r *TaskRunner) Result(id uuid.UUID) (Result, bool) {
	return r.results.get(id)
}

// Await blocks until the task finishes or ctx is done. It returns
// ErrTaskNotFound for IDs this runner does not know about.
func (r *TaskRunner) Await(ctx context.Context, id uuid.UUID) (Result, error) {
	return r.results.wait(ctx, id)
}

// Start recovers unfinished tasks, then starts the workers and the stuck task
// monitor.
func (r *TaskRunner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrRunnerStopped
	}
	if r.started {
		return nil
	}

	if err := r.Recover(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	r.pool.Start()

	r.wg.Add(1)
	go r.stuckTaskMonitor()

	r.started = true
	r.logger.Info("task runner started",
		"worker_count", r.config.WorkerCount,
		"queue_size", r.config.QueueSize,
		"max_attempts", r.config.MaxAttempts)
	return nil
}

// Stop gracefully shuts down the task runner. Tasks already executing finish
// before Stop returns; tasks still queued stay pending in the store and are
// picked up by the next Start.
func (r *TaskRunner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	r.cancelFunc()
	r.wg.Wait()
	r.pool.Stop()
	r.queue.Close()
	r.logger.Info("task runner stopped", "unprocessed", r.queue.Len())
}

// Recover loads any unfinished tasks from the store and requeues them.
func (r *TaskRunner) Recover() error {
	ctx := context.Background()

	pendingTasks, err := r.store.GetPendingTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending tasks: %w", err)
	}

	// Processing tasks were interrupted by a crash or shutdown
	processingTasks, err := r.store.GetProcessingTasks(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing tasks: %w", err)
	}

	r.logger.Info("recovering unfinished tasks",
		"pending_count", len(pendingTasks),
		"processing_count", len(processingTasks))

	for _, task := range pendingTasks {
		// Submitted before Start and already queued
		if r.results.inFlight(task.ID()) {
			continue
		}
		r.requeue(task, "pending")
	}

	for _, task := range processingTasks {
		if r.results.inFlight(task.ID()) {
			continue
		}
		if err := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusPending, "reset after recovery"); err != nil {
			r.logger.Error("failed to reset processing task status",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
			continue
		}
		r.requeue(task, "processing")
	}

	return nil
}

func (r *TaskRunner) requeue(task Task, from string) {
	r.results.track(task)
	if err := r.queue.Enqueue(task); err != nil {
		r.results.forget(task.ID())
		r.logger.Error("failed to requeue task",
			"task_id", task.ID(),
			"task_type", task.Type(),
			"previous_status", from,
			"error", err)
		return
	}
	r.logger.Info("requeued task",
		"task_id", task.ID(),
		"task_type", task.Type(),
		"previous_status", from)
}

// processTask handles execution of a single task on a pool worker. The
// returned error is the task's final failure, if any.
func (r *TaskRunner) processTask(ctx context.Context, task Task, workerID int) error {
	log := r.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
		"worker_id", workerID,
	)
	ctx = logger.WithLogger(ctx, log)

	// A failed status write is logged but does not stop the task; the
	// outcome still reaches waiters and the final status is written below.
	if err := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusProcessing, ""); err != nil {
		log.Error("failed to update task status to processing", "error", err)
	}
	r.results.setStatus(task.ID(), TaskStatusProcessing)

	log.Info("processing task")
	start := time.Now()

	attempts, err := r.execute(ctx, task, log)
	outcome := domain.OutcomeFromError(err)

	if err != nil {
		log.Warn("task failed",
			"outcome", outcome.String(),
			"attempts", attempts,
			"duration", time.Since(start),
			"error", redact.Error(err))
		// The stored message starts with the reason's sentinel text so the
		// reason survives once the in-memory result is gone.
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusFailed, redact.Error(outcome.Err())); updateErr != nil {
			log.Error("failed to update task status to failed", "error", updateErr)
		}
	} else {
		log.Info("task completed successfully",
			"attempts", attempts,
			"duration", time.Since(start))
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusCompleted, ""); updateErr != nil {
			log.Error("failed to update task status to completed", "error", updateErr)
		}
	}

	r.results.complete(task.ID(), outcome, attempts)
	if err != nil && r.errHandler != nil {
		r.errHandler(task, err)
	}
	return nil
}

// execute runs the task, retrying with exponential backoff while the failure
// reason is retryable and attempts remain. Stop interrupts a backoff wait but
// never a running attempt; the last failure is then the task's result.
func (r *TaskRunner) execute(ctx context.Context, task Task, log *slog.Logger) (int, error) {
	if r.config.MaxAttempts <= 1 {
		return 1, safeExecute(ctx, task)
	}

	attempts := 0
	var lastErr error
	backoff := retry.WithMaxRetries(
		uint64(r.config.MaxAttempts-1),
		retry.NewExponential(r.config.RetryBaseDelay),
	)
	err := retry.Do(r.ctx, backoff, func(context.Context) error {
		attempts++
		if attempts > 1 {
			// Keeps updated_at fresh so the stuck-task check sees a live task
			if err := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusProcessing, ""); err != nil {
				log.Error("failed to refresh task status before retry", "error", err)
			}
		}
		lastErr = safeExecute(ctx, task)
		if lastErr == nil {
			return nil
		}
		if domain.OutcomeFromError(lastErr).Reason().Retryable() && attempts < r.config.MaxAttempts {
			log.Warn("task attempt failed, retrying",
				"attempt", attempts,
				"max_attempts", r.config.MaxAttempts,
				"error", redact.Error(lastErr))
			return retry.RetryableError(lastErr)
		}
		return lastErr
	})

	if attempts == 0 {
		// Stop came before the first attempt; a dequeued task still runs once
		return 1, safeExecute(ctx, task)
	}
	if err != nil && r.ctx.Err() != nil && lastErr != nil && !errors.Is(lastErr, err) {
		log.Info("retries abandoned, runner stopping", "attempts", attempts)
	}
	return attempts, lastErr
}

// safeExecute runs task.Execute and converts a panic into a failure.
func safeExecute(ctx context.Context, task Task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task panicked: %v", rec)
		}
	}()
	return task.Execute(ctx)
}

// stuckTaskMonitor periodically resets tasks that have been in "processing"
// state for too long and prunes old results.
func (r *TaskRunner) stuckTaskMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			r.resetStuckTasks(r.ctx)
			if n := r.results.prune(r.config.ResultRetention); n > 0 {
				r.logger.Debug("pruned finished results", "count", n)
			}
		}
	}
}

func (r *TaskRunner) resetStuckTasks(ctx context.Context) {
	if r.config.StuckTaskAge <= 0 {
		return
	}

	stuckTasks, err := r.store.GetProcessingTasks(ctx, r.config.StuckTaskAge)
	if err != nil {
		r.logger.Error("failed to check for stuck tasks", "error", err)
		return
	}
	if len(stuckTasks) == 0 {
		return
	}

	r.logger.Info("found stuck tasks", "count", len(stuckTasks))
	for _, task := range stuckTasks {
		// Still queued or running in this runner; only another process's
		// abandoned tasks are reset.
		if r.results.inFlight(task.ID()) {
			r.logger.Debug("skipping stuck task still running here",
				"task_id", task.ID(),
				"task_type", task.Type())
			continue
		}
		if err := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusPending,
			"reset after being stuck in processing state"); err != nil {
			r.logger.Error("failed to reset stuck task status",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
			continue
		}
		r.requeue(task, "stuck")
	}
}
