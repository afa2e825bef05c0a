package task

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskRecord is the persisted view of a task.
type TaskRecord struct {
	ID           uuid.UUID
	Type         string
	Payload      []byte
	Status       TaskStatus
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type memoryEntry struct {
	task   Task
	record TaskRecord
}

// InMemoryTaskStore keeps tasks in process memory. It is used when no
// database is configured; tasks do not survive a restart.
type InMemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*memoryEntry
	now   func() time.Time
}

// NewInMemoryTaskStore creates an empty store
func NewInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{
		tasks: make(map[uuid.UUID]*memoryEntry),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SaveTask records the task as pending. Saving a known ID replaces it.
func (s *InMemoryTaskStore) SaveTask(ctx context.Context, task Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.tasks[task.ID()] = &memoryEntry{
		task: task,
		record: TaskRecord{
			ID:        task.ID(),
			Type:      task.Type(),
			Payload:   task.Payload(),
			Status:    TaskStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	return nil
}

// UpdateTaskStatus sets the status and error message of a stored task
func (s *InMemoryTaskStore) UpdateTaskStatus(
	ctx context.Context,
	taskID uuid.UUID,
	status TaskStatus,
	errorMsg string,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	entry.record.Status = status
	entry.record.ErrorMessage = errorMsg
	entry.record.UpdatedAt = s.now()
	return nil
}

// GetPendingTasks retrieves all tasks with "pending" status, oldest first
func (s *InMemoryTaskStore) GetPendingTasks(ctx context.Context) ([]Task, error) {
	return s.tasksWithStatus(ctx, TaskStatusPending, 0)
}

// GetProcessingTasks retrieves tasks with "processing" status, oldest first.
// A non-zero olderThan keeps only tasks whose last update is older than that.
func (s *InMemoryTaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]Task, error) {
	return s.tasksWithStatus(ctx, TaskStatusProcessing, olderThan)
}

func (s *InMemoryTaskStore) tasksWithStatus(
	ctx context.Context,
	status TaskStatus,
	olderThan time.Duration,
) ([]Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var entries []*memoryEntry
	for _, e := range s.tasks {
		if e.record.Status != status {
			continue
		}
		if olderThan > 0 && now.Sub(e.record.UpdatedAt) <= olderThan {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].record.CreatedAt.Before(entries[j].record.CreatedAt)
	})

	tasks := make([]Task, len(entries))
	for i, e := range entries {
		tasks[i] = e.task
	}
	return tasks, nil
}

// GetTask returns the stored record for a task
func (s *InMemoryTaskStore) GetTask(ctx context.Context, taskID uuid.UUID) (TaskRecord, error) {
	if err := ctx.Err(); err != nil {
		return TaskRecord{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.tasks[taskID]
	if !ok {
		return TaskRecord{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return entry.record, nil
}

// WithTx returns the store itself; memory has no transactions
func (s *InMemoryTaskStore) WithTx(tx *sql.Tx) TaskStore {
	return s
}

var _ TaskStore = (*InMemoryTaskStore)(nil)
