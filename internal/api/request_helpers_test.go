package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestWithParam(target, name, value string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(name, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestGetPathUUID(t *testing.T) {
	valid := uuid.New()

	tests := []struct {
		name    string
		value   string
		want    uuid.UUID
		wantErr bool
	}{
		{name: "valid", value: valid.String(), want: valid},
		{name: "missing", value: "", wantErr: true},
		{name: "malformed", value: "1234", wantErr: true},
		{name: "nil uuid", value: uuid.Nil.String(), wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := getPathUUID(requestWithParam("/", "id", tc.value), "id")
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetWaitParam(t *testing.T) {
	tests := []struct {
		query   string
		want    bool
		wantErr bool
	}{
		{query: "", want: false},
		{query: "?wait", want: true},
		{query: "?wait=", want: true},
		{query: "?wait=1", want: true},
		{query: "?wait=true", want: true},
		{query: "?wait=0", want: false},
		{query: "?wait=false", want: false},
		{query: "?wait=soon", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			got, err := getWaitParam(httptest.NewRequest(http.MethodGet, "/x"+tc.query, nil))
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidWaitParam)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
