package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSqliteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) SessionStore {
		store, err := NewSqliteInMemory()
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}
		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestSqlitePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sessions.db")
	ctx := context.Background()

	store, err := OpenSqlite(path)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	session, err := store.Create(ctx, "app", "alice", "s1", map[string]any{"last_intent": "retrieval"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	session.AppendEvent("user", "List the tables")
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	store.Close()

	reopened, err := OpenSqlite(path)
	if err != nil {
		t.Fatalf("failed to reopen: %v", err)
	}
	defer reopened.Close()

	loaded, err := reopened.Get(ctx, "app", "alice", "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if loaded.State["last_intent"] != "retrieval" {
		t.Errorf("expected last_intent 'retrieval', got %v", loaded.State["last_intent"])
	}
	if len(loaded.Events) != 1 || loaded.Events[0].Content != "List the tables" {
		t.Errorf("unexpected events: %+v", loaded.Events)
	}
	if loaded.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to survive reopen")
	}
}
