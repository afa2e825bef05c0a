package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Errors returned while building or dispatching events.
var (
	ErrEmptyEventType = errors.New("event type cannot be empty")
	ErrNilEvent       = errors.New("event cannot be nil")
	ErrNoHandlers     = errors.New("no handlers registered for event")
)

// TaskRequestEvent asks for a background task to be created. Its ID becomes
// the ID of the task built from it, which lets submitters hand the ID out
// before the task runs.
type TaskRequestEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type names the task type that should be created
	Type string `json:"type"`

	// Payload contains the task-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into v.
func (e *TaskRequestEvent) UnmarshalPayload(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("event %s has an empty payload", e.ID)
	}
	return json.Unmarshal(e.Payload, v)
}

// NewTaskRequestEvent creates a TaskRequestEvent with a fresh ID.
func NewTaskRequestEvent(eventType string, payload any) (*TaskRequestEvent, error) {
	return NewTaskRequestEventWithID(uuid.New(), eventType, payload)
}

// NewTaskRequestEventWithID creates a TaskRequestEvent with a caller-chosen ID.
func NewTaskRequestEventWithID(id uuid.UUID, eventType string, payload any) (*TaskRequestEvent, error) {
	if eventType == "" {
		return nil, ErrEmptyEventType
	}
	if id == uuid.Nil {
		id = uuid.New()
	}

	var payloadBytes []byte
	switch p := payload.(type) {
	case json.RawMessage:
		payloadBytes = p
	case []byte:
		if !json.Valid(p) {
			return nil, fmt.Errorf("event payload is not valid JSON")
		}
		payloadBytes = p
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal event payload: %w", err)
		}
		payloadBytes = b
	}

	return &TaskRequestEvent{
		ID:        id,
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EventHandler processes events dispatched by an EventEmitter.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskRequestEvent) error
}

// EventHandlerFunc adapts a plain function to the EventHandler interface.
type EventHandlerFunc func(ctx context.Context, event *TaskRequestEvent) error

// HandleEvent calls f(ctx, event).
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *TaskRequestEvent) error {
	return f(ctx, event)
}

// EventEmitter publishes events without knowing which handlers consume them.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *TaskRequestEvent) error
}
