package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/fetchstore/internal/api/shared"
)

// getPathUUID extracts and parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", ErrInvalidID, paramName)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %s has invalid format", ErrInvalidID, paramName)
	}
	return id, nil
}

// getWaitParam reads the optional boolean "wait" query parameter. A bare
// "?wait" counts as true.
func getWaitParam(r *http.Request) (bool, error) {
	values, ok := r.URL.Query()["wait"]
	if !ok {
		return false, nil
	}
	if len(values) == 0 || values[0] == "" {
		return true, nil
	}

	wait, err := strconv.ParseBool(values[0])
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrInvalidWaitParam, values[0])
	}
	return wait, nil
}

// HandleAPIError writes the status code and safe message for err and logs the
// redacted details.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, opts ...shared.ResponseOption) {
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err, opts...)
}
