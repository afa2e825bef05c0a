package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchRequest_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{"empty", "", ErrEmptyOrMissingURL},
		{"whitespace only", "   \t", ErrEmptyOrMissingURL},
		{"absolute url", "https://example.com/cat.png", nil},
		{"malformed but present", "not a url", nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := NewFetchRequest(tc.url).Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestFetchRequest_Payload(t *testing.T) {
	t.Parallel()

	req := NewFetchRequest("https://example.com/cat.png")
	assert.JSONEq(t, `{"imageUrl":"https://example.com/cat.png"}`, string(req.Payload()))

	parsed, err := ParseFetchRequest(req.Payload())
	require.NoError(t, err)
	assert.Equal(t, req, parsed)
}

func TestParseFetchRequest(t *testing.T) {
	t.Parallel()

	t.Run("missing key", func(t *testing.T) {
		req, err := ParseFetchRequest([]byte(`{"other":"value"}`))
		require.NoError(t, err)
		assert.ErrorIs(t, req.Validate(), ErrEmptyOrMissingURL)
	})

	t.Run("empty payload", func(t *testing.T) {
		req, err := ParseFetchRequest(nil)
		require.NoError(t, err)
		assert.ErrorIs(t, req.Validate(), ErrEmptyOrMissingURL)
	})

	t.Run("unreadable payload", func(t *testing.T) {
		_, err := ParseFetchRequest([]byte(`{not json`))
		assert.ErrorIs(t, err, ErrEmptyOrMissingURL)
	})
}
