package task

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryTaskStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("save and update", func(t *testing.T) {
		store := NewInMemoryTaskStore()
		task := NewMockFetchTask(catURL)

		require.NoError(t, store.SaveTask(ctx, task))
		record, err := store.GetTask(ctx, task.ID())
		require.NoError(t, err)
		assert.Equal(t, TaskStatusPending, record.Status)
		assert.Equal(t, task.Payload(), record.Payload)

		require.NoError(t, store.UpdateTaskStatus(ctx, task.ID(), TaskStatusFailed, "boom"))
		record, err = store.GetTask(ctx, task.ID())
		require.NoError(t, err)
		assert.Equal(t, TaskStatusFailed, record.Status)
		assert.Equal(t, "boom", record.ErrorMessage)
		assert.False(t, record.UpdatedAt.Before(record.CreatedAt))
	})

	t.Run("unknown task", func(t *testing.T) {
		store := NewInMemoryTaskStore()
		err := store.UpdateTaskStatus(ctx, uuid.New(), TaskStatusCompleted, "")
		assert.ErrorIs(t, err, ErrTaskNotFound)

		_, err = store.GetTask(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	t.Run("pending tasks oldest first", func(t *testing.T) {
		store := NewInMemoryTaskStore()
		clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		store.now = func() time.Time { return clock }

		first := newMockTask()
		second := newMockTask()
		done := newMockTask()

		require.NoError(t, store.SaveTask(ctx, first))
		clock = clock.Add(time.Second)
		require.NoError(t, store.SaveTask(ctx, second))
		require.NoError(t, store.SaveTask(ctx, done))
		require.NoError(t, store.UpdateTaskStatus(ctx, done.ID(), TaskStatusCompleted, ""))

		pending, err := store.GetPendingTasks(ctx)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{first.ID(), second.ID()}, extractTaskIDs(pending))
	})

	t.Run("processing tasks filtered by age", func(t *testing.T) {
		store := NewInMemoryTaskStore()
		clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		store.now = func() time.Time { return clock }

		old := newMockTask()
		fresh := newMockTask()
		require.NoError(t, store.SaveTask(ctx, old))
		require.NoError(t, store.SaveTask(ctx, fresh))
		require.NoError(t, store.UpdateTaskStatus(ctx, old.ID(), TaskStatusProcessing, ""))
		clock = clock.Add(20 * time.Minute)
		require.NoError(t, store.UpdateTaskStatus(ctx, fresh.ID(), TaskStatusProcessing, ""))

		all, err := store.GetProcessingTasks(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		stuck, err := store.GetProcessingTasks(ctx, 10*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{old.ID()}, extractTaskIDs(stuck))
	})

	t.Run("cancelled context", func(t *testing.T) {
		store := NewInMemoryTaskStore()
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		assert.ErrorIs(t, store.SaveTask(cctx, newMockTask()), context.Canceled)
		_, err := store.GetPendingTasks(cctx)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("WithTx returns the same store", func(t *testing.T) {
		store := NewInMemoryTaskStore()
		assert.Same(t, store, store.WithTx(nil))
	})
}

func extractTaskIDs(tasks []Task) []uuid.UUID {
	ids := make([]uuid.UUID, len(tasks))
	for i, task := range tasks {
		ids[i] = task.ID()
	}
	return ids
}
