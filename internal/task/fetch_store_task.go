package task

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/fetchstore/internal/domain"
	"github.com/phrazzld/fetchstore/internal/redact"
)

// Errors returned when building a FetchAndStoreTask.
var (
	ErrNilFetcher = errors.New("fetcher cannot be nil")
	ErrNilStore   = errors.New("store cannot be nil")
	ErrNilLogger  = errors.New("logger cannot be nil")
)

var errNoImage = errors.New("fetcher returned no image")

// ImageFetcher retrieves and decodes the image at a URL.
type ImageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (image.Image, error)
}

// ImageStore persists a decoded image as the single output asset.
type ImageStore interface {
	Store(ctx context.Context, img image.Image) error
}

// Stage is the step a FetchAndStoreTask is currently in.
type Stage string

// Stages in execution order
const (
	StageValidating Stage = "validating"
	StageFetching   Stage = "fetching"
	StageStoring    Stage = "storing"
	StageDone       Stage = "done"
)

// failureReason is the reason reported when a stage panics.
func (s Stage) failureReason() domain.Reason {
	switch s {
	case StageValidating:
		return domain.ReasonEmptyOrMissingURL
	case StageStoring:
		return domain.ReasonWriteError
	default:
		return domain.ReasonNetworkError
	}
}

// FetchAndStoreTask downloads the image named by its request and writes it
// to the asset store. Every run ends in exactly one Outcome; nothing escapes
// as a panic. The task may be run again, each run starting from validation.
type FetchAndStoreTask struct {
	id      uuid.UUID
	request domain.FetchRequest
	fetcher ImageFetcher
	store   ImageStore
	logger  *slog.Logger

	mu      sync.RWMutex
	stage   Stage
	status  TaskStatus
	outcome *domain.Outcome
	runs    int
}

// NewFetchAndStoreTask creates a task for the given request. The URL is not
// checked here; an empty one yields a failed outcome when the task runs. A
// nil id is replaced by a fresh one.
func NewFetchAndStoreTask(
	id uuid.UUID,
	request domain.FetchRequest,
	fetcher ImageFetcher,
	store ImageStore,
	logger *slog.Logger,
) (*FetchAndStoreTask, error) {
	if fetcher == nil {
		return nil, ErrNilFetcher
	}
	if store == nil {
		return nil, ErrNilStore
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if id == uuid.Nil {
		id = uuid.New()
	}

	return &FetchAndStoreTask{
		id:      id,
		request: request,
		fetcher: fetcher,
		store:   store,
		logger: logger.With(
			"task_id", id,
			"task_type", TaskTypeFetchAndStore,
			"url", redact.URL(request.ImageURL),
		),
		stage:  StageValidating,
		status: TaskStatusPending,
	}, nil
}

// ID returns the task's unique identifier
func (t *FetchAndStoreTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier
func (t *FetchAndStoreTask) Type() string {
	return TaskTypeFetchAndStore
}

// Payload returns the serialized request
func (t *FetchAndStoreTask) Payload() []byte {
	return t.request.Payload()
}

// Request returns the request the task was built from
func (t *FetchAndStoreTask) Request() domain.FetchRequest {
	return t.request
}

// Status returns the current task status
func (t *FetchAndStoreTask) Status() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Stage returns the step the task is in or stopped at
func (t *FetchAndStoreTask) Stage() Stage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stage
}

// Outcome returns the outcome of the most recent run, if any
func (t *FetchAndStoreTask) Outcome() (domain.Outcome, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.outcome == nil {
		return domain.Outcome{}, false
	}
	return *t.outcome, true
}

// Execute runs the task and reports a failed outcome as its error.
func (t *FetchAndStoreTask) Execute(ctx context.Context) error {
	return t.Run(ctx).Err()
}

// Run validates the request, fetches the image and stores it, mapping the
// first failure to its Outcome. Stages run strictly in order and the store is
// never called unless the fetch produced an image.
func (t *FetchAndStoreTask) Run(ctx context.Context) (outcome domain.Outcome) {
	t.begin()
	defer func() {
		if rec := recover(); rec != nil {
			stage := t.Stage()
			t.logger.Error("task panicked", "stage", stage, "panic", rec)
			outcome = domain.Failure(stage.failureReason(), fmt.Errorf("panic during %s: %v", stage, rec))
		}
		t.finish(outcome)
	}()

	if err := t.request.Validate(); err != nil {
		t.logger.Warn("rejecting request without image url")
		return domain.Failure(domain.ReasonEmptyOrMissingURL, err)
	}

	t.setStage(StageFetching)
	t.logger.Debug("fetching image")
	img, err := t.fetcher.Fetch(ctx, t.request.ImageURL)
	if err != nil {
		reason := domain.ReasonNetworkError
		if errors.Is(err, domain.ErrDecode) {
			reason = domain.ReasonDecodeError
		}
		return domain.Failure(reason, err)
	}
	if isNilImage(img) {
		return domain.Failure(domain.ReasonNetworkError, errNoImage)
	}

	t.setStage(StageStoring)
	b := img.Bounds()
	t.logger.Debug("storing image", "width", b.Dx(), "height", b.Dy())
	if err := t.store.Store(ctx, img); err != nil {
		return domain.Failure(domain.ReasonWriteError, err)
	}

	t.setStage(StageDone)
	return domain.Success()
}

// isNilImage also catches a nil pointer stored in the interface, which would
// otherwise panic on first use.
func isNilImage(img image.Image) bool {
	if img == nil {
		return true
	}
	v := reflect.ValueOf(img)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

func (t *FetchAndStoreTask) begin() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs++
	t.stage = StageValidating
	t.status = TaskStatusProcessing
	t.outcome = nil
}

func (t *FetchAndStoreTask) setStage(stage Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stage = stage
}

func (t *FetchAndStoreTask) finish(outcome domain.Outcome) {
	t.mu.Lock()
	t.outcome = &outcome
	if outcome.IsSuccess() {
		t.status = TaskStatusCompleted
	} else {
		t.status = TaskStatusFailed
	}
	runs := t.runs
	t.mu.Unlock()

	if outcome.IsSuccess() {
		t.logger.Info("image stored", "run", runs)
		return
	}
	t.logger.Warn("fetch and store failed",
		"run", runs,
		"outcome", outcome.String(),
		"error", redact.Error(outcome.Err()))
}
