package shared

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ContextKey is the type for request-scoped values set by this package.
type ContextKey string

const (
	// TraceIDKey is the key for the trace ID in the request context
	TraceIDKey ContextKey = "traceID"

	// TraceIDHeader carries the trace ID on requests and responses
	TraceIDHeader = "X-Trace-ID"

	// TraceIDLength is the length of a trace ID in hex characters
	TraceIDLength = 32
)

// SetTraceID adds a freshly generated trace ID to the context.
func SetTraceID(ctx context.Context) context.Context {
	return WithTraceID(ctx, NewTraceID())
}

// WithTraceID adds the given trace ID to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context, or "" when absent.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// ValidTraceID reports whether s looks like a trace ID this service issues.
// Incoming trace IDs that fail this check are replaced.
func ValidTraceID(s string) bool {
	if len(s) != TraceIDLength {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// NewTraceID returns a random 32 character hex trace ID. If the random source
// fails it falls back to a time-based ID rather than a static value.
func NewTraceID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		slog.Error("failed to generate random trace ID",
			"error", err,
			"fallback", "time-based generation")
		return fallbackTraceID(time.Now())
	}
	return hex.EncodeToString(id[:])
}

func fallbackTraceID(now time.Time) string {
	b := make([]byte, TraceIDLength/2)
	binary.BigEndian.PutUint64(b[:8], uint64(now.UnixNano()))
	binary.BigEndian.PutUint64(b[8:], uint64(now.Nanosecond())^uint64(now.Unix())<<20)
	return hex.EncodeToString(b)
}
