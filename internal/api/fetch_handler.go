package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/fetchstore/internal/api/shared"
	"github.com/phrazzld/fetchstore/internal/platform/logger"
	"github.com/phrazzld/fetchstore/internal/redact"
	"github.com/phrazzld/fetchstore/internal/service"
	"github.com/phrazzld/fetchstore/internal/task"
)

// DefaultAwaitTimeout bounds GET /api/fetches/{id}?wait=1 when no timeout is
// configured.
const DefaultAwaitTimeout = 60 * time.Second

// FetchHandler handles fetch-related HTTP requests
type FetchHandler struct {
	fetchService service.FetchService
	awaitTimeout time.Duration
	logger       *slog.Logger
}

// NewFetchHandler creates a new FetchHandler. A non-positive awaitTimeout
// uses DefaultAwaitTimeout.
func NewFetchHandler(fetchService service.FetchService, awaitTimeout time.Duration, log *slog.Logger) *FetchHandler {
	if awaitTimeout <= 0 {
		awaitTimeout = DefaultAwaitTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &FetchHandler{
		fetchService: fetchService,
		awaitTimeout: awaitTimeout,
		logger:       log.With("component", "fetch_handler"),
	}
}

// SubmitFetch handles POST /api/fetches requests
func (h *FetchHandler) SubmitFetch(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req SubmitFetchRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		HandleAPIError(w, r, err)
		return
	}

	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, err)
		return
	}

	id, err := h.fetchService.Submit(r.Context(), req.FetchRequest())
	if err != nil {
		if errors.Is(err, service.ErrBusy) {
			// A full queue is back pressure, not a server fault.
			HandleAPIError(w, r, err, shared.WithLogLevel(slog.LevelWarn))
			return
		}
		HandleAPIError(w, r, err)
		return
	}

	log.Debug("fetch accepted",
		"task_id", id,
		"image_url", redact.URL(req.ImageURL))

	w.Header().Set("Location", "/api/fetches/"+id.String())
	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitFetchResponse{
		ID:     id,
		Status: task.TaskStatusPending,
	})
}

// GetFetch handles GET /api/fetches/{id} requests. With ?wait=1 it blocks
// until the fetch is terminal or the await timeout passes, then reports the
// latest status either way.
func (h *FetchHandler) GetFetch(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	wait, err := getWaitParam(r)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	var status service.FetchStatus
	if wait {
		status, err = h.await(r.Context(), id)
	} else {
		status, err = h.fetchService.Status(r.Context(), id)
	}
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, fetchStatusToResponse(status))
}

func (h *FetchHandler) await(ctx context.Context, id uuid.UUID) (service.FetchStatus, error) {
	log := logger.FromContextOrDefault(ctx, h.logger)

	waitCtx, cancel := context.WithTimeout(ctx, h.awaitTimeout)
	defer cancel()

	status, err := h.fetchService.Await(waitCtx, id)
	if err == nil {
		return status, nil
	}

	// Only our own timeout is reported as a status; the client hanging up
	// or any other error passes through.
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil && status.ID == id {
		log.Debug("await timed out, reporting latest status",
			"task_id", id,
			"status", status.Status)
		return status, nil
	}
	return service.FetchStatus{}, err
}
