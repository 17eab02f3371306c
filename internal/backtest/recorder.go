package backtest

import (
	"context"
	"sync"
)

// Recorder receives completed results. Implementations may persist them to
// a paper-trading ledger, an archive, or keep them in memory for retrieval.
type Recorder interface {
	Record(ctx context.Context, result *Result) error
}

// NopRecorder discards results.
type NopRecorder struct{}

func (NopRecorder) Record(ctx context.Context, result *Result) error { return nil }

// MemoryRecorder keeps results in memory, keyed by run ID.
type MemoryRecorder struct {
	mu      sync.RWMutex
	results map[string]*Result
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{results: make(map[string]*Result)}
}

func (m *MemoryRecorder) Record(ctx context.Context, result *Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[result.RunID] = result
	return nil
}

// Get returns a recorded result by run ID.
func (m *MemoryRecorder) Get(runID string) (*Result, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[runID]
	return r, ok
}

// List returns all recorded results in unspecified order.
func (m *MemoryRecorder) List() []*Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Result, 0, len(m.results))
	for _, r := range m.results {
		out = append(out, r)
	}
	return out
}
