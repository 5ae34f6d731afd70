package onboarding

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/signup-gate/pkg/domain"
)

const (
	DefaultIdleTTL       = 30 * time.Minute
	defaultSweepInterval = time.Minute
)

type memEntry struct {
	mu      sync.Mutex
	session *domain.RegistrationSession
	removed bool
}

// MemoryStore is an in-process SessionStore with a lock per session.
// Idle sessions are swept opportunistically from Update; no goroutine is
// started.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[uuid.UUID]*memEntry
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryStore creates an in-memory store. idleTTL <= 0 means DefaultIdleTTL.
func NewMemoryStore(idleTTL time.Duration) *MemoryStore {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &MemoryStore{
		entries: make(map[uuid.UUID]*memEntry),
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

// Load returns a copy of the session, or ErrSessionNotFound if it does not
// exist or has been idle longer than the idle TTL.
func (m *MemoryStore) Load(ctx context.Context, id uuid.UUID) (*domain.RegistrationSession, error) {
	m.mu.Lock()
	e, ok := m.entries[id]
	m.mu.Unlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed || e.session == nil || e.session.IsIdle(m.now(), m.idleTTL) {
		return nil, domain.ErrSessionNotFound
	}
	return e.session.Clone(), nil
}

// Update runs fn on a copy of the session while holding its lock and stores
// the copy if fn returns nil. A missing or idle session is replaced by a
// fresh one before fn runs.
func (m *MemoryStore) Update(ctx context.Context, id uuid.UUID, fn UpdateFunc) (*domain.RegistrationSession, error) {
	m.maybeSweep()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		e := m.entry(id)
		e.mu.Lock()
		if e.removed {
			// Purged between lookup and lock.
			e.mu.Unlock()
			continue
		}

		now := m.now()
		current := e.session
		if current == nil || current.IsIdle(now, m.idleTTL) {
			current = domain.NewRegistrationSession(id, now)
		}

		next := current.Clone()
		if err := fn(ctx, next); err != nil {
			e.mu.Unlock()
			return nil, err
		}
		next.UpdatedAt = now
		e.session = next
		out := next.Clone()
		e.mu.Unlock()
		return out, nil
	}
}

// Delete removes a session.
func (m *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	if ok {
		delete(m.entries, id)
	}
	m.mu.Unlock()

	if ok {
		e.mu.Lock()
		e.removed = true
		e.mu.Unlock()
	}
	return nil
}

// PurgeIdle removes sessions idle longer than the idle TTL and returns how
// many were removed. Sessions locked by an in-flight request are skipped.
func (m *MemoryStore) PurgeIdle(ctx context.Context) (int, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for id, e := range m.entries {
		if !e.mu.TryLock() {
			continue
		}
		if e.session == nil || e.session.IsIdle(now, m.idleTTL) {
			e.removed = true
			delete(m.entries, id)
			purged++
		}
		e.mu.Unlock()
	}
	m.lastSweep = now
	return purged, nil
}

// Len returns the number of stored sessions, idle ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryStore) entry(id uuid.UUID) *memEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		e = &memEntry{}
		m.entries[id] = e
	}
	return e
}

func (m *MemoryStore) maybeSweep() {
	m.mu.Lock()
	due := m.now().Sub(m.lastSweep) >= defaultSweepInterval
	m.mu.Unlock()
	if due {
		_, _ = m.PurgeIdle(context.Background())
	}
}
