// Package streak counts consecutive extraction failures per subscription.
// The engine uses the count to decide when a failing subscription is
// reported to the operator channel.
package streak

import (
	"context"
	"sync"
)

// Tracker counts consecutive failures per key.
type Tracker interface {
	// RecordFailure increments the streak for key and returns the new length.
	RecordFailure(ctx context.Context, key string) (int, error)
	// Reset clears the streak for key.
	Reset(ctx context.Context, key string) error
	// Count returns the current streak length for key.
	Count(ctx context.Context, key string) (int, error)
}

// MemoryTracker keeps streaks in process memory. Streaks restart from zero
// after a restart.
type MemoryTracker struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMemoryTracker creates an empty MemoryTracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{counts: make(map[string]int)}
}

// RecordFailure increments the streak for key.
func (m *MemoryTracker) RecordFailure(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counts[key]++
	return m.counts[key], nil
}

// Reset clears the streak for key.
func (m *MemoryTracker) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.counts, key)
	return nil
}

// Count returns the streak length for key.
func (m *MemoryTracker) Count(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.counts[key], nil
}
