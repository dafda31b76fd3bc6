package device

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultMaxSessions is the default maximum number of concurrent lock sessions.
const DefaultMaxSessions = 8

// Table tracks the sessions of every lock the client is talking to,
// keyed by lock UUID.
type Table struct {
	sessions    map[uuid.UUID]*Session
	maxSessions int

	mu sync.RWMutex
}

// NewTable creates a new session table.
// maxSessions limits the number of concurrent sessions (0 uses DefaultMaxSessions).
func NewTable(maxSessions int) *Table {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}

	return &Table{
		sessions:    make(map[uuid.UUID]*Session),
		maxSessions: maxSessions,
	}
}

// Add adds a session to the table. Its UUID must be unique.
func (t *Table) Add(s *Session) error {
	if s == nil {
		return ErrNilSession
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Check for duplicate
	if _, exists := t.sessions[s.UUID()]; exists {
		return ErrDuplicateSession
	}

	// Check capacity
	if len(t.sessions) >= t.maxSessions {
		return ErrTableFull
	}

	t.sessions[s.UUID()] = s
	return nil
}

// Remove removes a session from the table.
// No error is returned if the session doesn't exist.
func (t *Table) Remove(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, id)
}

// Find looks up a session by lock UUID.
// Returns nil if not found.
func (t *Table) Find(id uuid.UUID) *Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sessions[id]
}

// FindByStatus returns every session currently in status.
func (t *Table) FindByStatus(status Status) []*Session {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var result []*Session
	for _, s := range t.sessions {
		if s.Status() == status {
			result = append(result, s)
		}
	}
	return result
}

// Count returns the number of sessions.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// IsFull returns true if no more sessions can be added.
func (t *Table) IsFull() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions) >= t.maxSessions
}

// MaxSessions returns the maximum number of sessions allowed.
func (t *Table) MaxSessions() int {
	return t.maxSessions
}

// Clear removes all sessions from the table.
// Sessions are not disconnected; call SetLinkStatus on each if needed.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions = make(map[uuid.UUID]*Session)
}

// ForEach calls fn for each session in the table until fn returns false.
// The callback should not modify the table.
func (t *Table) ForEach(fn func(*Session) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, s := range t.sessions {
		if !fn(s) {
			return
		}
	}
}
