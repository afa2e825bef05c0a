package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// mockTaskQueue implements TaskQueueReader for testing
type mockTaskQueue struct {
	ch chan Task
}

func newMockTaskQueue() *mockTaskQueue {
	return &mockTaskQueue{ch: make(chan Task, 10)}
}

func (m *mockTaskQueue) GetChannel() <-chan Task {
	return m.ch
}

func TestNewWorkerPool(t *testing.T) {
	t.Parallel()

	logger := setupTestLogger()
	taskQueue := newMockTaskQueue()

	pool := NewWorkerPool(taskQueue, WorkerPoolConfig{WorkerCount: 5}, logger)
	assert.Equal(t, 5, pool.workerCount)
	assert.Equal(t, taskQueue, pool.taskQueue)
	assert.Nil(t, pool.errorHandler)
	assert.Nil(t, pool.processor)

	tests := []struct {
		name  string
		count int
	}{
		{"zero", 0},
		{"negative", -5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewWorkerPool(taskQueue, WorkerPoolConfig{WorkerCount: tt.count}, logger)
			assert.Equal(t, 1, pool.workerCount)
		})
	}
}

func TestWorkerPool_StartStop(t *testing.T) {
	t.Parallel()

	pool := NewWorkerPool(newMockTaskQueue(), WorkerPoolConfig{WorkerCount: 2}, setupTestLogger())
	pool.Start()
	pool.Start()
	pool.Stop()
	pool.Stop()
}

func TestWorkerPool_ExecutesTasks(t *testing.T) {
	t.Parallel()

	taskQueue := newMockTaskQueue()
	completed := make(chan struct{}, 3)

	pool := NewWorkerPool(taskQueue, WorkerPoolConfig{WorkerCount: 2}, setupTestLogger())
	pool.Start()
	defer pool.Stop()

	for i := 0; i < 3; i++ {
		task := newMockTask()
		task.ExecuteFn = func(ctx context.Context) error {
			completed <- struct{}{}
			return nil
		}
		taskQueue.ch <- task
	}

	for i := 0; i < 3; i++ {
		waitFor(t, completed, time.Second, "task completion")
	}
}

func TestWorkerPool_Processor(t *testing.T) {
	t.Parallel()

	taskQueue := newMockTaskQueue()
	seen := make(chan int, 1)

	pool := NewWorkerPool(taskQueue, WorkerPoolConfig{WorkerCount: 1}, setupTestLogger())
	pool.SetProcessor(func(ctx context.Context, task Task, workerID int) error {
		seen <- workerID
		return nil
	})
	pool.Start()
	defer pool.Stop()

	task := newMockTask()
	task.ExecuteFn = func(ctx context.Context) error {
		t.Error("Execute should not be called when a processor is set")
		return nil
	}
	taskQueue.ch <- task

	assert.Equal(t, 0, waitFor(t, seen, time.Second, "processor call"))
}

func TestWorkerPool_ErrorHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		execute func(ctx context.Context) error
		check   func(t *testing.T, err error)
	}{
		{
			name:    "returned error",
			execute: func(ctx context.Context) error { return errTest },
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, errTest)
			},
		},
		{
			name:    "panic",
			execute: func(ctx context.Context) error { panic("test panic") },
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "panic")
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			taskQueue := newMockTaskQueue()
			errorHandled := make(chan error, 1)

			pool := NewWorkerPool(taskQueue, WorkerPoolConfig{WorkerCount: 1}, setupTestLogger())
			pool.SetErrorHandler(func(task Task, err error) {
				errorHandled <- err
			})
			pool.Start()
			defer pool.Stop()

			task := newMockTask()
			task.ExecuteFn = tt.execute
			taskQueue.ch <- task

			tt.check(t, waitFor(t, errorHandled, time.Second, "error handler"))
		})
	}
}

func TestWorkerPool_SurvivesPanic(t *testing.T) {
	t.Parallel()

	taskQueue := newMockTaskQueue()
	done := make(chan struct{}, 1)

	pool := NewWorkerPool(taskQueue, WorkerPoolConfig{WorkerCount: 1}, setupTestLogger())
	pool.Start()
	defer pool.Stop()

	bad := newMockTask()
	bad.ExecuteFn = func(ctx context.Context) error { panic("boom") }
	good := newMockTask()
	good.ExecuteFn = func(ctx context.Context) error {
		done <- struct{}{}
		return nil
	}
	taskQueue.ch <- bad
	taskQueue.ch <- good

	waitFor(t, done, time.Second, "task after panic")
}

func TestWorkerPool_StopWaitsForRunningTask(t *testing.T) {
	t.Parallel()

	taskQueue := newMockTaskQueue()
	taskStarted := make(chan struct{})
	allowFinish := make(chan struct{})
	var finished atomic.Bool

	task := newMockTask()
	task.ExecuteFn = func(ctx context.Context) error {
		close(taskStarted)
		<-allowFinish
		// In-flight tasks keep an uncancelled context
		if ctx.Err() != nil {
			return ctx.Err()
		}
		finished.Store(true)
		return nil
	}

	pool := NewWorkerPool(taskQueue, WorkerPoolConfig{WorkerCount: 1}, setupTestLogger())
	pool.Start()
	taskQueue.ch <- task

	waitFor(t, taskStarted, time.Second, "task start")

	stopDone := make(chan struct{})
	go func() {
		pool.Stop()
		close(stopDone)
	}()

	select {
	case <-stopDone:
		t.Fatal("Stop returned while a task was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(allowFinish)
	waitFor(t, stopDone, time.Second, "pool stop")
	assert.True(t, finished.Load())
}

func TestWorkerPool_StopLeavesQueuedTasks(t *testing.T) {
	t.Parallel()

	taskQueue := newMockTaskQueue()
	pool := NewWorkerPool(taskQueue, WorkerPoolConfig{WorkerCount: 1}, setupTestLogger())
	pool.Start()
	pool.Stop()

	taskQueue.ch <- newMockTask()
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, taskQueue.ch, 1)
}

var errTest = errors.New("test error")
