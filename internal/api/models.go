package api

import (
	"github.com/google/uuid"
	"github.com/phrazzld/fetchstore/internal/domain"
	"github.com/phrazzld/fetchstore/internal/service"
	"github.com/phrazzld/fetchstore/internal/task"
)

// MaxImageURLLength bounds the submitted URL.
const MaxImageURLLength = 8192

// SubmitFetchRequest is the body of POST /api/fetches.
type SubmitFetchRequest struct {
	ImageURL string `json:"imageUrl" validate:"max=8192"`
}

// Validate rejects blank URLs the same way the task would.
func (r *SubmitFetchRequest) Validate() error {
	return r.FetchRequest().Validate()
}

// FetchRequest converts the body into the domain request.
func (r *SubmitFetchRequest) FetchRequest() domain.FetchRequest {
	return domain.NewFetchRequest(r.ImageURL)
}

// SubmitFetchResponse is returned with 202 Accepted.
type SubmitFetchResponse struct {
	ID     uuid.UUID       `json:"id"`
	Status task.TaskStatus `json:"status"`
}

// FetchResponse describes one fetch. Outcome, Reason and Error are set once
// the fetch is terminal.
type FetchResponse struct {
	ID       uuid.UUID            `json:"id"`
	Status   task.TaskStatus      `json:"status"`
	Outcome  domain.OutcomeStatus `json:"outcome,omitempty"`
	Reason   domain.Reason        `json:"reason,omitempty"`
	Error    string               `json:"error,omitempty"`
	Attempts int                  `json:"attempts,omitempty"`
}

func fetchStatusToResponse(status service.FetchStatus) FetchResponse {
	return FetchResponse{
		ID:       status.ID,
		Status:   status.Status,
		Outcome:  status.Outcome,
		Reason:   status.Reason,
		Error:    status.Error,
		Attempts: status.Attempts,
	}
}
