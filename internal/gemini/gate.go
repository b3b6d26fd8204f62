package gemini

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Gate caps the number of upstream calls in flight at once, across every
// generation session in the process. Acquire blocks until a slot frees or
// the caller's context is done.
type Gate struct {
	sem *semaphore.Weighted
	cap int64
}

// NewGate returns a Gate with the given capacity. Capacity values below 1
// are raised to 1.
func NewGate(capacity int64) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	return &Gate{sem: semaphore.NewWeighted(capacity), cap: capacity}
}

// Acquire takes one slot, blocking until one is available. Returns the
// context error when ctx is cancelled while waiting.
func (g *Gate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

// Release returns one slot. Must be called exactly once per successful
// Acquire, on every exit path.
func (g *Gate) Release() {
	g.sem.Release(1)
}

// Capacity returns the configured slot count.
func (g *Gate) Capacity() int64 { return g.cap }
