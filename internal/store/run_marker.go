package store

import (
	"context"
	"sync"
	"time"
)

// RunMarker records "this client believes a run is active on thread X" with
// a TTL, so an optimistic run signal cannot outlive a crashed dispatch. It is
// an injected capability, owned by the caller.
type RunMarker interface {
	MarkActive(ctx context.Context, threadID string, ttl time.Duration) error
	IsActive(ctx context.Context, threadID string) (bool, error)
	Clear(ctx context.Context, threadID string) error
}

type memoryRunMarker struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewMemoryRunMarker returns an in-process RunMarker.
func NewMemoryRunMarker() RunMarker {
	return &memoryRunMarker{expires: make(map[string]time.Time), now: time.Now}
}

func newMemoryRunMarkerAt(now func() time.Time) *memoryRunMarker {
	return &memoryRunMarker{expires: make(map[string]time.Time), now: now}
}

func (m *memoryRunMarker) MarkActive(ctx context.Context, threadID string, ttl time.Duration) error {
	if ttl <= 0 {
		return m.Clear(ctx, threadID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expires[threadID] = m.now().Add(ttl)
	return nil
}

func (m *memoryRunMarker) IsActive(ctx context.Context, threadID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, ok := m.expires[threadID]
	if !ok {
		return false, nil
	}
	if m.now().After(expiry) {
		delete(m.expires, threadID)
		return false, nil
	}
	return true, nil
}

func (m *memoryRunMarker) Clear(ctx context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.expires, threadID)
	return nil
}
