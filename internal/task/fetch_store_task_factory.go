package task

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/fetchstore/internal/domain"
)

// FetchAndStoreTaskFactory builds FetchAndStoreTasks sharing one fetcher and
// one store.
type FetchAndStoreTaskFactory struct {
	fetcher ImageFetcher
	store   ImageStore
	logger  *slog.Logger
}

// NewFetchAndStoreTaskFactory creates a new factory
func NewFetchAndStoreTaskFactory(
	fetcher ImageFetcher,
	store ImageStore,
	logger *slog.Logger,
) *FetchAndStoreTaskFactory {
	return &FetchAndStoreTaskFactory{
		fetcher: fetcher,
		store:   store,
		logger:  logger,
	}
}

// CreateTask creates a task for imageURL with a fresh ID
func (f *FetchAndStoreTaskFactory) CreateTask(imageURL string) (*FetchAndStoreTask, error) {
	return f.CreateTaskWithID(uuid.New(), imageURL)
}

// CreateTaskWithID creates a task for imageURL under the given ID
func (f *FetchAndStoreTaskFactory) CreateTaskWithID(id uuid.UUID, imageURL string) (*FetchAndStoreTask, error) {
	return NewFetchAndStoreTask(id, domain.NewFetchRequest(imageURL), f.fetcher, f.store, f.logger)
}

// FromPayload rebuilds a task from its serialized request. An unreadable
// payload produces a task with no URL, which fails with EmptyOrMissingUrl
// when run rather than being dropped.
func (f *FetchAndStoreTaskFactory) FromPayload(id uuid.UUID, payload []byte) (*FetchAndStoreTask, error) {
	request, err := domain.ParseFetchRequest(payload)
	if err != nil {
		f.logger.Warn("unreadable fetch request payload",
			"task_id", id,
			"error", err)
		request = domain.FetchRequest{}
	}
	return NewFetchAndStoreTask(id, request, f.fetcher, f.store, f.logger)
}

// Rehydrate implements TaskRehydrator
func (f *FetchAndStoreTaskFactory) Rehydrate(id uuid.UUID, taskType string, payload []byte) (Task, error) {
	if taskType != TaskTypeFetchAndStore {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTaskType, taskType)
	}
	return f.FromPayload(id, payload)
}

var _ TaskRehydrator = (*FetchAndStoreTaskFactory)(nil)
