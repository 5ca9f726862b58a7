package storage

import (
	"context"
	"sync"
	"time"

	"broadwaybot/pkg"
)

// SessionTTL is how long an idle session survives before its state is
// dropped. Every save refreshes it.
const SessionTTL = 40 * time.Minute

// Registry stores per-session conversation state. State is transient
// by design: sessions expire, and ending a session discards the state.
type Registry interface {
	Get(ctx context.Context, sessionID string) (*pkg.ConversationState, bool, error)
	Save(ctx context.Context, sessionID string, state *pkg.ConversationState) error
	Delete(ctx context.Context, sessionID string) error
}

type memoryEntry struct {
	state     *pkg.ConversationState
	expiresAt time.Time
}

// MemoryRegistry is the in-process default used when no redis is
// configured. Expiry is checked lazily on access.
type MemoryRegistry struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	ttl      time.Duration
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry(ttl time.Duration) *MemoryRegistry {
	if ttl <= 0 {
		ttl = SessionTTL
	}
	return &MemoryRegistry{
		sessions: make(map[string]memoryEntry),
		ttl:      ttl,
	}
}

// Get returns the live state for a session, reporting false for
// unknown or expired sessions.
func (m *MemoryRegistry) Get(ctx context.Context, sessionID string) (*pkg.ConversationState, bool, error) {
	m.mu.RLock()
	entry, exists := m.sessions[sessionID]
	m.mu.RUnlock()

	if !exists {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.sessions, sessionID)
		m.mu.Unlock()
		return nil, false, nil
	}
	return entry.state, true, nil
}

// Save upserts the state and refreshes the TTL.
func (m *MemoryRegistry) Save(ctx context.Context, sessionID string, state *pkg.ConversationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = memoryEntry{
		state:     state,
		expiresAt: time.Now().Add(m.ttl),
	}
	return nil
}

// Delete discards the session state.
func (m *MemoryRegistry) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}
