package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PayloadKeyImageURL is the key under which the image URL travels in a task
// payload.
const PayloadKeyImageURL = "imageUrl"

// FetchRequest is the single input of a fetch-and-store task. It is created per
// submission and consumed once.
type FetchRequest struct {
	ImageURL string `json:"imageUrl"`
}

// NewFetchRequest creates a FetchRequest for the given URL.
func NewFetchRequest(imageURL string) FetchRequest {
	return FetchRequest{ImageURL: imageURL}
}

// Validate checks that the request carries a non-blank URL. Whether the URL is
// well formed is left to the fetcher, which reports it as a network error.
func (r FetchRequest) Validate() error {
	if strings.TrimSpace(r.ImageURL) == "" {
		return ErrEmptyOrMissingURL
	}
	return nil
}

// Payload returns the request serialized as a task payload.
func (r FetchRequest) Payload() []byte {
	// Marshalling a struct with a single string field cannot fail.
	data, _ := json.Marshal(r)
	return data
}

// ParseFetchRequest decodes a task payload. An unreadable payload is reported as
// a missing URL, since no URL can be recovered from it.
func ParseFetchRequest(payload []byte) (FetchRequest, error) {
	var req FetchRequest
	if len(payload) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return FetchRequest{}, fmt.Errorf("%w: unreadable payload: %v", ErrEmptyOrMissingURL, err)
	}
	return req, nil
}
