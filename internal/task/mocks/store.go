package mocks

import (
	"context"
	"image"
	"sync"
)

// MockStore is a test double for task.ImageStore. With no StoreFn set it
// accepts every image.
type MockStore struct {
	StoreFn func(ctx context.Context, img image.Image) error

	mu     sync.Mutex
	images []image.Image
}

// Store records the image and delegates to StoreFn.
func (m *MockStore) Store(ctx context.Context, img image.Image) error {
	m.mu.Lock()
	m.images = append(m.images, img)
	m.mu.Unlock()

	if m.StoreFn == nil {
		return nil
	}
	return m.StoreFn(ctx, img)
}

// Calls returns how many times Store was called.
func (m *MockStore) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.images)
}

// Last returns the most recently stored image, or nil.
func (m *MockStore) Last() image.Image {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.images) == 0 {
		return nil
	}
	return m.images[len(m.images)-1]
}
