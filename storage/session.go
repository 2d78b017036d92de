// Package storage provides session storage abstraction.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interface
// - Allows swapping between memory, SQLite and Redis without API changes
// - Each storage implementation encapsulates its own data structures and protocols

package storage

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound is returned when a session does not exist for the given app and user.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned when creating a session with an ID already in use.
	ErrSessionExists = errors.New("session already exists")
)

// Event is one turn recorded in a session.
type Event struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a conversation between one user and one app, with shared state.
type Session struct {
	ID        string         `json:"id"`
	AppName   string         `json:"app_name"`
	UserID    string         `json:"user_id"`
	State     map[string]any `json:"state"`
	Events    []Event        `json:"events"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewSession builds a session. An empty id gets a random UUID.
func NewSession(appName, userID, id string, state map[string]any) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	s := &Session{
		ID:        id,
		AppName:   appName,
		UserID:    userID,
		State:     make(map[string]any, len(state)),
		Events:    []Event{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	maps.Copy(s.State, state)
	return s
}

// AppendEvent records a turn authored by author.
func (s *Session) AppendEvent(author, content string) Event {
	e := Event{
		ID:        uuid.NewString(),
		Author:    author,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	s.Events = append(s.Events, e)
	s.UpdatedAt = e.Timestamp
	return e
}

// Clone returns a copy whose state map and event slice are independent of s.
func (s *Session) Clone() *Session {
	c := *s
	c.State = maps.Clone(s.State)
	if c.State == nil {
		c.State = map[string]any{}
	}
	c.Events = append([]Event{}, s.Events...)
	return &c
}

func (s *Session) owned(appName, userID string) bool {
	return s.AppName == appName && s.UserID == userID
}

// SessionStore persists sessions. Implementations are safe for concurrent use.
type SessionStore interface {
	// Create stores a new session. An empty id gets a random UUID.
	Create(ctx context.Context, appName, userID, id string, state map[string]any) (*Session, error)

	// Get loads a session. Returns ErrSessionNotFound when it does not exist
	// or belongs to a different app or user.
	Get(ctx context.Context, appName, userID, id string) (*Session, error)

	// Save replaces the stored state and events of an existing session.
	Save(ctx context.Context, session *Session) error

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, appName, userID, id string) error

	// List returns the sessions of one user, oldest first.
	List(ctx context.Context, appName, userID string) ([]*Session, error)

	// Close releases backend resources.
	Close() error
}
