package ratelimit

import (
	"context"
	"sync"
)

// MemoryStore mirrors the Lua window semantics in memory. It backs tests and
// single-process runs; multi-instance deployments need RedisStore.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]windowState
}

type windowState struct {
	startMs int64
	used    int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]windowState)}
}

func (s *MemoryStore) Consume(ctx context.Context, addr string, nowMs, windowMs, amount int64) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[addr]
	if !ok || nowMs-w.startMs >= windowMs {
		w = windowState{startMs: nowMs, used: amount}
	} else {
		w.used += amount
	}
	s.windows[addr] = w
	return w.startMs, w.used, nil
}

func (s *MemoryStore) Read(ctx context.Context, addr string) (int64, int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[addr]
	return w.startMs, w.used, ok, nil
}
