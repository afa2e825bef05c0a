package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/fetchstore/internal/api/shared"
	"github.com/phrazzld/fetchstore/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceMiddleware_GeneratesTraceID(t *testing.T) {
	logBuf, log := logger.NewTestLogger(t)

	var seenTraceID string
	var ctxLoggerSet bool
	handler := NewTraceMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenTraceID = shared.GetTraceID(r.Context())
		ctxLoggerSet = logger.FromContext(r.Context()) != nil
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/fetches", nil))

	require.True(t, shared.ValidTraceID(seenTraceID))
	assert.True(t, ctxLoggerSet)
	assert.Equal(t, seenTraceID, w.Header().Get(shared.TraceIDHeader))

	logger.AssertLogField(t, logBuf, "trace_id", seenTraceID)
	logger.AssertLogField(t, logBuf, "msg", "request completed")
	logger.AssertLogField(t, logBuf, "status", float64(http.StatusTeapot))
}

func TestTraceMiddleware_KeepsValidIncomingTraceID(t *testing.T) {
	_, log := logger.NewTestLogger(t)
	incoming := shared.NewTraceID()

	var seen string
	handler := NewTraceMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.GetTraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(shared.TraceIDHeader, incoming)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, incoming, seen)
}

func TestTraceMiddleware_ReplacesMalformedTraceID(t *testing.T) {
	_, log := logger.NewTestLogger(t)

	var seen string
	handler := NewTraceMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.GetTraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(shared.TraceIDHeader, "<script>")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.NotEqual(t, "<script>", seen)
	assert.True(t, shared.ValidTraceID(seen))
}

func TestTraceMiddleware_AttachesRequestID(t *testing.T) {
	logBuf, log := logger.NewTestLogger(t)

	handler := chimiddleware.RequestID(NewTraceMiddleware(log)(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {},
	)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(chimiddleware.RequestIDHeader, "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	logger.AssertLogField(t, logBuf, "request_id", "req-42")
}
