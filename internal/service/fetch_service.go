package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/fetchstore/internal/domain"
	"github.com/phrazzld/fetchstore/internal/events"
	"github.com/phrazzld/fetchstore/internal/platform/logger"
	"github.com/phrazzld/fetchstore/internal/redact"
	"github.com/phrazzld/fetchstore/internal/task"
)

// TaskResults is the part of the task runner the service reads from.
type TaskResults interface {
	// Result returns the runner's latest view of a task it accepted
	Result(id uuid.UUID) (task.Result, bool)

	// Await blocks until the task is terminal or ctx is done
	Await(ctx context.Context, id uuid.UUID) (task.Result, error)
}

// TaskLookup reads persisted task records.
type TaskLookup interface {
	GetTask(ctx context.Context, id uuid.UUID) (task.TaskRecord, error)
}

// FetchStatus is the externally visible state of one fetch.
type FetchStatus struct {
	ID     uuid.UUID
	Status task.TaskStatus
	// Outcome is empty until the task is terminal
	Outcome  domain.OutcomeStatus
	Reason   domain.Reason
	Error    string
	Attempts int
}

// Done reports whether the fetch reached a terminal status.
func (s FetchStatus) Done() bool {
	return s.Status.Terminal()
}

// FetchService provides fetch-related operations
type FetchService interface {
	// Submit validates the request and queues a fetch-and-store task for it.
	// The returned ID is the handle for Status and Await.
	Submit(ctx context.Context, req domain.FetchRequest) (uuid.UUID, error)

	// Status returns the current state of a fetch without blocking
	Status(ctx context.Context, id uuid.UUID) (FetchStatus, error)

	// Await blocks until the fetch is terminal or ctx is done. When ctx ends
	// first the latest known status is returned along with ctx.Err().
	Await(ctx context.Context, id uuid.UUID) (FetchStatus, error)
}

// fetchServiceImpl implements the FetchService interface
type fetchServiceImpl struct {
	emitter events.EventEmitter
	results TaskResults
	lookup  TaskLookup
	logger  *slog.Logger
}

// NewFetchService creates a new FetchService. lookup may be nil, in which case
// only tasks known to the running process can be reported.
func NewFetchService(
	emitter events.EventEmitter,
	results TaskResults,
	lookup TaskLookup,
	log *slog.Logger,
) (FetchService, error) {
	if emitter == nil {
		return nil, ErrNilEmitter
	}
	if results == nil {
		return nil, ErrNilResults
	}
	if log == nil {
		log = slog.Default()
	}

	return &fetchServiceImpl{
		emitter: emitter,
		results: results,
		lookup:  lookup,
		logger:  log.With("component", "fetch_service"),
	}, nil
}

// Submit implements FetchService
func (s *fetchServiceImpl) Submit(ctx context.Context, req domain.FetchRequest) (uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := req.Validate(); err != nil {
		log.Debug("rejecting fetch request", "error", err)
		return uuid.Nil, err
	}

	event, err := events.NewTaskRequestEvent(task.TaskTypeFetchAndStore, req.Payload())
	if err != nil {
		return uuid.Nil, NewFetchServiceError("submit", "failed to create task request event", err)
	}

	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		if isBusy(err) {
			log.Warn("fetch rejected, task queue unavailable",
				"task_id", event.ID,
				"error", err)
			return uuid.Nil, errors.Join(ErrBusy, err)
		}
		return uuid.Nil, NewFetchServiceError("submit", "failed to emit task request event", err)
	}

	log.Info("fetch submitted",
		"task_id", event.ID,
		"image_url", redact.URL(req.ImageURL))
	return event.ID, nil
}

// Status implements FetchService
func (s *fetchServiceImpl) Status(ctx context.Context, id uuid.UUID) (FetchStatus, error) {
	if res, ok := s.results.Result(id); ok {
		return statusFromResult(res), nil
	}
	return s.statusFromStore(ctx, id)
}

// Await implements FetchService
func (s *fetchServiceImpl) Await(ctx context.Context, id uuid.UUID) (FetchStatus, error) {
	res, err := s.results.Await(ctx, id)
	switch {
	case err == nil:
		return statusFromResult(res), nil
	case errors.Is(err, task.ErrTaskNotFound):
		// Not run by this process; the store holds the last word.
		return s.statusFromStore(ctx, id)
	default:
		if latest, ok := s.results.Result(id); ok {
			return statusFromResult(latest), err
		}
		return FetchStatus{}, err
	}
}

func (s *fetchServiceImpl) statusFromStore(ctx context.Context, id uuid.UUID) (FetchStatus, error) {
	if s.lookup == nil {
		return FetchStatus{}, ErrFetchNotFound
	}

	record, err := s.lookup.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			return FetchStatus{}, ErrFetchNotFound
		}
		return FetchStatus{}, NewFetchServiceError("status", "failed to load task", err)
	}
	return statusFromRecord(record), nil
}

func statusFromResult(res task.Result) FetchStatus {
	status := FetchStatus{
		ID:       res.TaskID,
		Status:   res.Status,
		Attempts: res.Attempts,
	}
	if !res.Done() {
		return status
	}

	status.Outcome = res.Outcome.Status
	status.Reason = res.Outcome.Reason()
	if err := res.Outcome.Err(); err != nil {
		status.Error = redact.Error(err)
	}
	return status
}

func statusFromRecord(record task.TaskRecord) FetchStatus {
	status := FetchStatus{
		ID:     record.ID,
		Status: record.Status,
	}
	switch record.Status {
	case task.TaskStatusCompleted:
		status.Outcome = domain.OutcomeSuccess
	case task.TaskStatusFailed:
		status.Outcome = domain.OutcomeFailure
		status.Reason = reasonFromMessage(record.ErrorMessage)
		status.Error = record.ErrorMessage
	}
	return status
}

var reasonsByPrefix = []domain.Reason{
	domain.ReasonEmptyOrMissingURL,
	domain.ReasonNetworkError,
	domain.ReasonDecodeError,
	domain.ReasonWriteError,
}

// reasonFromMessage recovers the failure reason from a stored error message.
// Stored messages start with the reason's sentinel text; anything else, such
// as a queue rejection, has no reason.
func reasonFromMessage(msg string) domain.Reason {
	for _, reason := range reasonsByPrefix {
		if strings.HasPrefix(msg, reason.Sentinel().Error()) {
			return reason
		}
	}
	return ""
}

func isBusy(err error) bool {
	return errors.Is(err, task.ErrQueueFull) ||
		errors.Is(err, task.ErrQueueClosed) ||
		errors.Is(err, task.ErrRunnerStopped)
}

var _ FetchService = (*fetchServiceImpl)(nil)
