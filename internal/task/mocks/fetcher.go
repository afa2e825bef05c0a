// Package mocks provides hand-written test doubles for the task package's
// collaborators.
package mocks

import (
	"context"
	"errors"
	"image"
	"sync"
)

// MockFetcher is a test double for task.ImageFetcher.
type MockFetcher struct {
	FetchFn func(ctx context.Context, rawURL string) (image.Image, error)

	mu   sync.Mutex
	urls []string
}

// Fetch records the URL and delegates to FetchFn.
func (m *MockFetcher) Fetch(ctx context.Context, rawURL string) (image.Image, error) {
	m.mu.Lock()
	m.urls = append(m.urls, rawURL)
	m.mu.Unlock()

	if m.FetchFn == nil {
		return nil, errors.New("mock fetcher: FetchFn not set")
	}
	return m.FetchFn(ctx, rawURL)
}

// Calls returns how many times Fetch was called.
func (m *MockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.urls)
}

// URLs returns the URLs passed to Fetch in call order.
func (m *MockFetcher) URLs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.urls...)
}

// ReturnImage returns a MockFetcher that always yields img.
func ReturnImage(img image.Image) *MockFetcher {
	return &MockFetcher{
		FetchFn: func(ctx context.Context, rawURL string) (image.Image, error) {
			return img, nil
		},
	}
}

// ReturnError returns a MockFetcher that always fails with err.
func ReturnError(err error) *MockFetcher {
	return &MockFetcher{
		FetchFn: func(ctx context.Context, rawURL string) (image.Image, error) {
			return nil, err
		},
	}
}
