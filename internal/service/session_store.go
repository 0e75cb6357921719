package service

import (
	"sync"

	"github.com/google/uuid"
)

// SessionStore is the in-memory registry of live navigation sessions.
// Session state is session-scoped by design; nothing here persists.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[uuid.UUID]*Session)}
}

// Put registers a session under its ID.
func (st *SessionStore) Put(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
}

// Get looks up a session by its string ID.
func (st *SessionStore) Get(id string) (*Session, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[parsed]
	return s, ok
}

// Remove drops a session from the registry.
func (st *SessionStore) Remove(id uuid.UUID) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// All returns the currently registered sessions.
func (st *SessionStore) All() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s)
	}
	return out
}
