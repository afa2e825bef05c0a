package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Reason identifies why a fetch-and-store task failed.
type Reason string

// Possible failure reasons
const (
	ReasonEmptyOrMissingURL Reason = "empty_or_missing_url"
	ReasonNetworkError      Reason = "network_error"
	ReasonDecodeError       Reason = "decode_error"
	ReasonWriteError        Reason = "write_error"
)

// Valid reports whether r is one of the known failure reasons.
func (r Reason) Valid() bool {
	switch r {
	case ReasonEmptyOrMissingURL, ReasonNetworkError, ReasonDecodeError, ReasonWriteError:
		return true
	}
	return false
}

// Retryable reports whether a work queue may reasonably try the same request
// again. Only network failures can change between attempts.
func (r Reason) Retryable() bool {
	return r == ReasonNetworkError
}

// Sentinel returns the sentinel error matching the reason.
func (r Reason) Sentinel() error {
	switch r {
	case ReasonEmptyOrMissingURL:
		return ErrEmptyOrMissingURL
	case ReasonDecodeError:
		return ErrDecode
	case ReasonWriteError:
		return ErrWrite
	default:
		return ErrNetwork
	}
}

// FailureError is the error carried by a failed Outcome. It matches both the
// reason's sentinel and the underlying cause with errors.Is.
type FailureError struct {
	Reason Reason
	Cause  error
}

// NewFailureError creates a FailureError for the given reason and cause.
func NewFailureError(reason Reason, cause error) *FailureError {
	return &FailureError{Reason: reason, Cause: cause}
}

// Error implements the error interface.
func (e *FailureError) Error() string {
	sentinel := e.Reason.Sentinel()
	if e.Cause == nil {
		return sentinel.Error()
	}
	// The message always starts with the sentinel text; stored task errors
	// are mapped back to a reason by that prefix.
	msg := e.Cause.Error()
	if errors.Is(e.Cause, sentinel) && strings.HasPrefix(msg, sentinel.Error()) {
		return msg
	}
	return fmt.Sprintf("%v: %v", sentinel, e.Cause)
}

// Unwrap exposes both the reason sentinel and the cause.
func (e *FailureError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Reason.Sentinel()}
	}
	return []error{e.Reason.Sentinel(), e.Cause}
}

// OutcomeStatus is the terminal state of one task invocation.
type OutcomeStatus string

// Possible outcome status values
const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
)

// Outcome is the single terminal result a fetch-and-store task hands back to
// the work queue. A failed outcome always carries a FailureError.
type Outcome struct {
	Status  OutcomeStatus
	Failure *FailureError
}

// Success returns a successful Outcome.
func Success() Outcome {
	return Outcome{Status: OutcomeSuccess}
}

// Failure returns a failed Outcome for the given reason and cause.
func Failure(reason Reason, cause error) Outcome {
	return Outcome{
		Status:  OutcomeFailure,
		Failure: NewFailureError(reason, cause),
	}
}

// IsSuccess reports whether the outcome is a success.
func (o Outcome) IsSuccess() bool {
	return o.Status == OutcomeSuccess
}

// Reason returns the failure reason, or an empty Reason on success.
func (o Outcome) Reason() Reason {
	if o.Failure == nil {
		return ""
	}
	return o.Failure.Reason
}

// Err returns the failure as an error, or nil on success.
func (o Outcome) Err() error {
	if o.IsSuccess() || o.Failure == nil {
		return nil
	}
	return o.Failure
}

// String returns "success" or "failure(<reason>)".
func (o Outcome) String() string {
	if o.IsSuccess() {
		return string(OutcomeSuccess)
	}
	return fmt.Sprintf("%s(%s)", OutcomeFailure, o.Reason())
}

// OutcomeFromError classifies an arbitrary error into an Outcome. A nil error is
// a success; errors that match no sentinel are treated as network failures.
func OutcomeFromError(err error) Outcome {
	if err == nil {
		return Success()
	}

	var failure *FailureError
	if errors.As(err, &failure) {
		return Outcome{Status: OutcomeFailure, Failure: failure}
	}

	switch {
	case errors.Is(err, ErrEmptyOrMissingURL):
		return Failure(ReasonEmptyOrMissingURL, err)
	case errors.Is(err, ErrDecode):
		return Failure(ReasonDecodeError, err)
	case errors.Is(err, ErrWrite):
		return Failure(ReasonWriteError, err)
	default:
		return Failure(ReasonNetworkError, err)
	}
}
