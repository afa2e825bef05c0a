package service

import (
	"errors"
	"fmt"
)

// Service errors callers may check for with errors.Is.
var (
	// ErrFetchNotFound indicates that no task exists for the given handle.
	// The API layer maps this to 404 Not Found.
	ErrFetchNotFound = errors.New("fetch not found")

	// ErrBusy indicates the task queue cannot accept more work right now.
	// The API layer maps this to 503 Service Unavailable.
	ErrBusy = errors.New("fetch queue is full")

	ErrNilEmitter = errors.New("event emitter cannot be nil")
	ErrNilResults = errors.New("task results cannot be nil")
)

// FetchServiceError wraps unexpected errors from the fetch service with the
// operation that failed.
type FetchServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *FetchServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("fetch service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *FetchServiceError) Unwrap() error {
	return e.Err
}

// NewFetchServiceError wraps err unless it is nil.
func NewFetchServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}
	return &FetchServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
