package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	start time.Time
	count int
}

// Memory is a process-local fixed window counter. Limits are not shared
// across instances.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*bucket
	limit   int
	window  time.Duration
	now     func() time.Time
}

type MemoryOption func(*Memory)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

func NewMemory(limit int, win time.Duration, opts ...MemoryOption) *Memory {
	limit, win = normalize(limit, win)
	m := &Memory{
		entries: make(map[string]*bucket),
		limit:   limit,
		window:  win,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Window() time.Duration {
	return m.window
}

func (m *Memory) Allow(ctx context.Context, key string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry, ok := m.entries[key]
	if !ok || !now.Before(entry.start.Add(m.window)) {
		entry = &bucket{start: now}
		m.entries[key] = entry
	}
	entry.count++

	return Result{
		Allowed:   entry.count <= m.limit,
		Limit:     m.limit,
		Remaining: remaining(m.limit, entry.count),
		ResetAt:   entry.start.Add(m.window),
	}, nil
}

// Prune drops keys whose window has ended and returns how many were removed.
func (m *Memory) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, entry := range m.entries {
		if !now.Before(entry.start.Add(m.window)) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// RunJanitor prunes every interval until ctx is done.
func (m *Memory) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = m.window
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Prune()
		}
	}
}

// Len reports the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
