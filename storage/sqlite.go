// SQLite session storage.
//
// Information Hiding:
// - SQLite connection management hidden behind interface
// - Schema details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SqliteStore implements SessionStore using SQLite.
// State is kept as a JSON column; events live in their own table.
type SqliteStore struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	return newSqliteStore(db)
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	// Every pooled connection would otherwise see its own empty database.
	db.SetMaxOpenConns(1)

	return newSqliteStore(db)
}

func newSqliteStore(db *sql.DB) (*SqliteStore, error) {
	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			app_name TEXT NOT NULL,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			state TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (app_name, user_id, session_id)
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_owner
		ON sessions(app_name, user_id, created_at);

		CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			app_name TEXT NOT NULL,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			event_index INTEGER NOT NULL,
			author TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			FOREIGN KEY (app_name, user_id, session_id)
				REFERENCES sessions(app_name, user_id, session_id) ON DELETE CASCADE,
			UNIQUE(app_name, user_id, session_id, event_index)
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Create stores a new session.
func (s *SqliteStore) Create(ctx context.Context, appName, userID, id string, state map[string]any) (*Session, error) {
	session := NewSession(appName, userID, id, state)

	stateJSON, err := json.Marshal(session.State)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session state: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (session_id, app_name, user_id, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID, appName, userID, string(stateJSON),
		formatTime(session.CreatedAt), formatTime(session.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, session.ID)
	}
	return session, nil
}

// Get loads a session and its events.
func (s *SqliteStore) Get(ctx context.Context, appName, userID, id string) (*Session, error) {
	session := &Session{}
	var stateJSON, createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, app_name, user_id, state, created_at, updated_at
		FROM sessions WHERE session_id = ? AND app_name = ? AND user_id = ?`,
		id, appName, userID,
	).Scan(&session.ID, &session.AppName, &session.UserID, &stateJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	if err := json.Unmarshal([]byte(stateJSON), &session.State); err != nil {
		return nil, fmt.Errorf("failed to decode session state: %w", err)
	}
	if session.State == nil {
		session.State = map[string]any{}
	}
	session.CreatedAt = parseTime(createdAt)
	session.UpdatedAt = parseTime(updatedAt)

	events, err := s.loadEvents(ctx, appName, userID, id)
	if err != nil {
		return nil, err
	}
	session.Events = events
	return session, nil
}

func (s *SqliteStore) loadEvents(ctx context.Context, appName, userID, sessionID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, author, content, timestamp FROM events
		WHERE app_name = ? AND user_id = ? AND session_id = ? ORDER BY event_index ASC`,
		appName, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []Event{} // Start with empty slice, not nil
	for rows.Next() {
		var e Event
		var ts string
		if err := rows.Scan(&e.ID, &e.Author, &e.Content, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Timestamp = parseTime(ts)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// Save replaces the session's state and events in one transaction.
func (s *SqliteStore) Save(ctx context.Context, session *Session) error {
	stateJSON, err := json.Marshal(session.State)
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// defer tx.Rollback() is safe even after Commit() - it becomes a no-op
	defer func() { _ = tx.Rollback() }()

	updatedAt := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		"UPDATE sessions SET state = ?, updated_at = ? WHERE session_id = ? AND app_name = ? AND user_id = ?",
		string(stateJSON), formatTime(updatedAt), session.ID, session.AppName, session.UserID)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM events WHERE app_name = ? AND user_id = ? AND session_id = ?",
		session.AppName, session.UserID, session.ID); err != nil {
		return fmt.Errorf("failed to clear old events: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (event_id, app_name, user_id, session_id, event_index, author, content, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for i, e := range session.Events {
		if _, err := stmt.ExecContext(ctx, e.ID, session.AppName, session.UserID, session.ID, i, e.Author, e.Content, formatTime(e.Timestamp)); err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	session.UpdatedAt = updatedAt
	return nil
}

// Delete removes a session and its events.
func (s *SqliteStore) Delete(ctx context.Context, appName, userID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"DELETE FROM sessions WHERE session_id = ? AND app_name = ? AND user_id = ?", id, appName, userID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM events WHERE app_name = ? AND user_id = ? AND session_id = ?", appName, userID, id); err != nil {
			return fmt.Errorf("failed to delete events: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// List returns the user's sessions, oldest first.
func (s *SqliteStore) List(ctx context.Context, appName, userID string) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT session_id FROM sessions WHERE app_name = ? AND user_id = ? ORDER BY created_at ASC, session_id ASC",
		appName, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	sessions := []*Session{}
	for _, id := range ids {
		session, err := s.Get(ctx, appName, userID, id)
		if errors.Is(err, ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// Verify SqliteStore implements SessionStore
var _ SessionStore = (*SqliteStore)(nil)
