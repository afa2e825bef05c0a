package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/fetchstore/internal/events"
)

// payloadTaskFactory builds a task from a serialized request.
type payloadTaskFactory interface {
	FromPayload(id uuid.UUID, payload []byte) (*FetchAndStoreTask, error)
}

// taskSubmitter queues tasks for execution.
type taskSubmitter interface {
	Submit(ctx context.Context, task Task) error
}

// TaskFactoryEventHandler turns fetch_and_store events into tasks and submits
// them to the runner. The event ID becomes the task ID.
type TaskFactoryEventHandler struct {
	taskFactory payloadTaskFactory
	taskRunner  taskSubmitter
	logger      *slog.Logger
}

// NewTaskFactoryEventHandler creates a new event handler that uses the given task factory
// to create tasks, and submits them to the provided task runner.
func NewTaskFactoryEventHandler(
	taskFactory payloadTaskFactory,
	taskRunner taskSubmitter,
	logger *slog.Logger,
) *TaskFactoryEventHandler {
	return &TaskFactoryEventHandler{
		taskFactory: taskFactory,
		taskRunner:  taskRunner,
		logger:      logger.With("component", "task_factory_event_handler"),
	}
}

// HandleEvent creates and submits a task for fetch_and_store events and
// ignores every other type.
func (h *TaskFactoryEventHandler) HandleEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	if event.Type != TaskTypeFetchAndStore {
		h.logger.Debug("ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	task, err := h.taskFactory.FromPayload(event.ID, event.Payload)
	if err != nil {
		h.logger.Error("failed to create task", "error", err, "event_id", event.ID)
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := h.taskRunner.Submit(ctx, task); err != nil {
		h.logger.Error("failed to submit task",
			"error", err,
			"task_id", task.ID(),
			"event_id", event.ID)
		return fmt.Errorf("failed to submit task: %w", err)
	}

	h.logger.Debug("task created and submitted", "task_id", task.ID())
	return nil
}

var _ events.EventHandler = (*TaskFactoryEventHandler)(nil)
