// Package progress keeps the best-effort progress of ingestion runs that are
// still in flight. Entries expire on their own; nothing here is durable
// lecture state.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/markdave123-py/Lectern/internal/models"
)

// Tracker stores ProcessingState per lecture id.
type Tracker interface {
	Set(ctx context.Context, state models.ProcessingState) error
	// Get returns nil when nothing is tracked for lectureID.
	Get(ctx context.Context, lectureID string) (*models.ProcessingState, error)
	Delete(ctx context.Context, lectureID string) error
}

var (
	_ Tracker = (*MemoryTracker)(nil)
	_ Tracker = (*RedisTracker)(nil)
)

type memoryEntry struct {
	state     models.ProcessingState
	expiresAt time.Time
}

// MemoryTracker is a process-local Tracker with per-entry TTL.
type MemoryTracker struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemoryTracker(ttl time.Duration) *MemoryTracker {
	return &MemoryTracker{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (m *MemoryTracker) Set(_ context.Context, state models.ProcessingState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = now
	}
	m.entries[state.LectureID] = memoryEntry{state: state, expiresAt: now.Add(m.ttl)}
	m.evictLocked(now)
	return nil
}

func (m *MemoryTracker) Get(_ context.Context, lectureID string) (*models.ProcessingState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[lectureID]
	if !ok {
		return nil, nil
	}
	if !e.expiresAt.After(m.now()) {
		delete(m.entries, lectureID)
		return nil, nil
	}
	s := e.state
	return &s, nil
}

func (m *MemoryTracker) Delete(_ context.Context, lectureID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, lectureID)
	return nil
}

func (m *MemoryTracker) evictLocked(now time.Time) {
	for id, e := range m.entries {
		if !e.expiresAt.After(now) {
			delete(m.entries, id)
		}
	}
}
