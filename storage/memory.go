// In-memory session storage.
//
// Information Hiding:
// - Map storage structure hidden from users
// - Thread-safe access via RWMutex hidden behind interface
// - Suitable for testing and ephemeral sessions

package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// sessionRef identifies a session within its owner's namespace.
type sessionRef struct {
	appName, userID, id string
}

// InMemoryStore implements SessionStore using an in-memory map.
// Data is lost when process terminates.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[sessionRef]*Session
}

// NewInMemoryStore creates a new in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[sessionRef]*Session),
	}
}

// Create stores a new session.
func (s *InMemoryStore) Create(ctx context.Context, appName, userID, id string, state map[string]any) (*Session, error) {
	session := NewSession(appName, userID, id, state)

	s.mu.Lock()
	defer s.mu.Unlock()

	ref := sessionRef{appName, userID, session.ID}
	if _, exists := s.sessions[ref]; exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, session.ID)
	}
	s.sessions[ref] = session.Clone()
	return session, nil
}

// Get returns a copy of the session.
func (s *InMemoryStore) Get(ctx context.Context, appName, userID, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionRef{appName, userID, id}]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session.Clone(), nil
}

// Save stores a copy of the session.
func (s *InMemoryStore) Save(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := sessionRef{session.AppName, session.UserID, session.ID}
	existing, ok := s.sessions[ref]
	if !ok {
		return ErrSessionNotFound
	}

	saved := session.Clone()
	saved.CreatedAt = existing.CreatedAt
	saved.UpdatedAt = time.Now().UTC()
	s.sessions[ref] = saved
	session.UpdatedAt = saved.UpdatedAt
	return nil
}

// Delete removes a session.
func (s *InMemoryStore) Delete(ctx context.Context, appName, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionRef{appName, userID, id})
	return nil
}

// List returns copies of the user's sessions, oldest first.
func (s *InMemoryStore) List(ctx context.Context, appName, userID string) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := []*Session{}
	for _, session := range s.sessions {
		if session.owned(appName, userID) {
			sessions = append(sessions, session.Clone())
		}
	}
	sortSessions(sessions)
	return sessions, nil
}

// Close is a no-op.
func (s *InMemoryStore) Close() error {
	return nil
}

func sortSessions(sessions []*Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
}

// Verify InMemoryStore implements SessionStore
var _ SessionStore = (*InMemoryStore)(nil)
