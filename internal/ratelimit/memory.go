package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemWindowStore is an in-memory WindowStore for tests and local runs
// without Redis.
type MemWindowStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

func NewMemWindowStore() *MemWindowStore {
	return &MemWindowStore{windows: make(map[string][]time.Time)}
}

func (s *MemWindowStore) Slide(_ context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-window)
	kept := s.windows[key][:0]
	for _, ts := range s.windows[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	s.windows[key] = kept

	return int64(len(kept)), nil
}
