package task

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/fetchstore/internal/domain"
)

// MockTask is a Task whose behavior is supplied by ExecuteFn.
type MockTask struct {
	TaskID      uuid.UUID
	TaskType    string
	TaskPayload []byte
	TaskStatus  TaskStatus
	ExecuteFn   func(ctx context.Context) error
}

// NewMockTask creates a new MockTask with the given ID and type
func NewMockTask(id uuid.UUID, taskType string, payload []byte) *MockTask {
	return &MockTask{
		TaskID:      id,
		TaskType:    taskType,
		TaskPayload: payload,
		TaskStatus:  TaskStatusPending,
		ExecuteFn:   func(ctx context.Context) error { return nil },
	}
}

// NewMockFetchTask creates a MockTask carrying a fetch request for imageURL
func NewMockFetchTask(imageURL string) *MockTask {
	return NewMockTask(uuid.New(), TaskTypeFetchAndStore, domain.NewFetchRequest(imageURL).Payload())
}

// ID returns the task's unique identifier
func (t *MockTask) ID() uuid.UUID {
	return t.TaskID
}

// Type returns the task type identifier
func (t *MockTask) Type() string {
	return t.TaskType
}

// Payload returns the task data as a byte slice
func (t *MockTask) Payload() []byte {
	return t.TaskPayload
}

// Status returns the status the mock was created with
func (t *MockTask) Status() TaskStatus {
	return t.TaskStatus
}

// Execute runs ExecuteFn
func (t *MockTask) Execute(ctx context.Context) error {
	return t.ExecuteFn(ctx)
}
