// Package stats collects the pipeline's observable counters: generations,
// chunks emitted, retries taken, and upstream failures by class. The
// numbers are served as JSON from the stats endpoint.
package stats

import (
	"sync"
	"sync/atomic"
)

// Counters is shared by the upstream client and the orchestrator. All
// fields are safe for concurrent use.
type Counters struct {
	GenerationsStarted atomic.Int64
	ChunksEmitted      atomic.Int64
	RetriesTaken       atomic.Int64
	Completed          atomic.Int64
	Failed             atomic.Int64
	Cancelled          atomic.Int64

	mu       sync.Mutex
	failures map[string]int64
}

// NewCounters returns an empty counter set.
func NewCounters() *Counters {
	return &Counters{failures: make(map[string]int64)}
}

// Failure records one upstream failure of the given class
// ("timeout", "unavailable", "rejected", "transport").
func (c *Counters) Failure(class string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures == nil {
		c.failures = make(map[string]int64)
	}
	c.failures[class]++
}

// Snapshot is the JSON shape served by the stats endpoint.
type Snapshot struct {
	GenerationsStarted int64            `json:"generations_started"`
	ChunksEmitted      int64            `json:"chunks_emitted"`
	RetriesTaken       int64            `json:"retries_taken"`
	Completed          int64            `json:"completed"`
	Failed             int64            `json:"failed"`
	Cancelled          int64            `json:"cancelled"`
	FailuresByClass    map[string]int64 `json:"failures_by_class"`
}

// Snapshot returns a consistent copy of the current counter values.
func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	failures := make(map[string]int64, len(c.failures))
	for k, v := range c.failures {
		failures[k] = v
	}
	c.mu.Unlock()

	return Snapshot{
		GenerationsStarted: c.GenerationsStarted.Load(),
		ChunksEmitted:      c.ChunksEmitted.Load(),
		RetriesTaken:       c.RetriesTaken.Load(),
		Completed:          c.Completed.Load(),
		Failed:             c.Failed.Load(),
		Cancelled:          c.Cancelled.Load(),
		FailuresByClass:    failures,
	}
}
