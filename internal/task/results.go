package task

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/fetchstore/internal/domain"
)

// Result is the runner's view of a submitted task.
type Result struct {
	TaskID      uuid.UUID
	Type        string
	Status      TaskStatus
	Outcome     domain.Outcome
	Attempts    int
	SubmittedAt time.Time
	FinishedAt  time.Time
}

// Done reports whether the task reached a terminal status.
func (r Result) Done() bool {
	return r.Status.Terminal()
}

type resultEntry struct {
	result Result
	done   chan struct{}
}

// resultRegistry tracks tasks submitted in this process so callers can poll
// or wait for their outcome.
type resultRegistry struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*resultEntry
}

func newResultRegistry() *resultRegistry {
	return &resultRegistry{entries: make(map[uuid.UUID]*resultEntry)}
}

// track registers a task as pending. Tracking a known task resets a finished
// entry so a requeued task can be awaited again.
func (r *resultRegistry) track(task Task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[task.ID()]; ok && !e.result.Done() {
		e.result.Status = TaskStatusPending
		return
	}
	r.entries[task.ID()] = &resultEntry{
		result: Result{
			TaskID:      task.ID(),
			Type:        task.Type(),
			Status:      TaskStatusPending,
			SubmittedAt: time.Now().UTC(),
		},
		done: make(chan struct{}),
	}
}

func (r *resultRegistry) forget(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

func (r *resultRegistry) setStatus(id uuid.UUID, status TaskStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok && !e.result.Done() {
		e.result.Status = status
	}
}

func (r *resultRegistry) complete(id uuid.UUID, outcome domain.Outcome, attempts int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.result.Done() {
		return
	}
	e.result.Outcome = outcome
	e.result.Attempts = attempts
	e.result.FinishedAt = time.Now().UTC()
	if outcome.IsSuccess() {
		e.result.Status = TaskStatusCompleted
	} else {
		e.result.Status = TaskStatusFailed
	}
	close(e.done)
}

// inFlight reports whether the task is queued or running in this process.
func (r *resultRegistry) inFlight(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	return ok && !e.result.Done()
}

func (r *resultRegistry) get(id uuid.UUID) (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return Result{}, false
	}
	return e.result, true
}

func (r *resultRegistry) wait(ctx context.Context, id uuid.UUID) (Result, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return Result{}, ErrTaskNotFound
	}

	select {
	case <-e.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return e.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// prune drops finished entries older than retention and returns how many
// were removed.
func (r *resultRegistry) prune(retention time.Duration) int {
	if retention <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-retention)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.entries {
		if e.result.Done() && e.result.FinishedAt.Before(cutoff) {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}
