package lockout

import (
	"context"
	"sync"
)

// MemoryStore mirrors the Lua failure-count semantics in memory. It backs
// tests and single-process runs; multi-instance deployments need RedisStore.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]lockEntry
}

type lockEntry struct {
	fails         int64
	lockedUntilMs int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]lockEntry)}
}

func (s *MemoryStore) RecordFailure(ctx context.Context, key string, nowMs int64, threshold int, lockMs, ttlMs int64) (bool, int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entries[key]
	if e.lockedUntilMs > nowMs {
		return true, e.lockedUntilMs, int64(threshold), nil
	}

	e.fails++
	if e.fails >= int64(threshold) {
		e.lockedUntilMs = nowMs + lockMs
		s.entries[key] = e
		return true, e.lockedUntilMs, e.fails, nil
	}
	s.entries[key] = e
	return false, 0, e.fails, nil
}

func (s *MemoryStore) Read(ctx context.Context, key string) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entries[key]
	return e.lockedUntilMs, e.fails, nil
}

func (s *MemoryStore) Clear(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}
