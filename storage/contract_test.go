package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// runStoreContract exercises the behavior every SessionStore must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) SessionStore) {
	t.Run("CreateAndGet", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		created, err := store.Create(ctx, "app", "alice", "", map[string]any{"user_id": "alice"})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if created.ID == "" {
			t.Fatal("expected generated session ID")
		}

		loaded, err := store.Get(ctx, "app", "alice", created.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if loaded.State["user_id"] != "alice" {
			t.Errorf("expected user_id state 'alice', got %v", loaded.State["user_id"])
		}
		if len(loaded.Events) != 0 {
			t.Errorf("expected no events, got %d", len(loaded.Events))
		}
	})

	t.Run("CreateDuplicateID", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		if _, err := store.Create(ctx, "app", "alice", "s1", nil); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		_, err := store.Create(ctx, "app", "alice", "s1", nil)
		if !errors.Is(err, ErrSessionExists) {
			t.Errorf("expected ErrSessionExists, got %v", err)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Get(context.Background(), "app", "alice", "nope")
		if !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("GetOtherUser", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		if _, err := store.Create(ctx, "app", "alice", "s1", nil); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if _, err := store.Get(ctx, "app", "bob", "s1"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound for other user, got %v", err)
		}
		if _, err := store.Get(ctx, "other", "alice", "s1"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound for other app, got %v", err)
		}
	})

	t.Run("SameIDForDifferentOwners", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		if _, err := store.Create(ctx, "app", "alice", "s1", map[string]any{"owner": "alice"}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if _, err := store.Create(ctx, "app", "bob", "s1", map[string]any{"owner": "bob"}); err != nil {
			t.Fatalf("expected another user to reuse the ID, got %v", err)
		}
		if _, err := store.Create(ctx, "other", "alice", "s1", nil); err != nil {
			t.Fatalf("expected another app to reuse the ID, got %v", err)
		}

		bob, err := store.Get(ctx, "app", "bob", "s1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		bob.AppendEvent("user", "hello")
		if err := store.Save(ctx, bob); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		alice, err := store.Get(ctx, "app", "alice", "s1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if alice.State["owner"] != "alice" || len(alice.Events) != 0 {
			t.Errorf("expected alice's session untouched, got %+v", alice)
		}

		if err := store.Delete(ctx, "app", "bob", "s1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := store.Get(ctx, "app", "alice", "s1"); err != nil {
			t.Errorf("expected alice's session to survive bob's delete, got %v", err)
		}
	})

	t.Run("SaveRoundTrip", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		session, err := store.Create(ctx, "app", "alice", "s1", nil)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		session.State["last_intent"] = "analytics"
		session.State["needs_chart"] = true
		session.AppendEvent("user", "Show sales by region")
		session.AppendEvent("root_agent", "Here is the breakdown")

		if err := store.Save(ctx, session); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		loaded, err := store.Get(ctx, "app", "alice", "s1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if loaded.State["last_intent"] != "analytics" {
			t.Errorf("expected last_intent 'analytics', got %v", loaded.State["last_intent"])
		}
		if loaded.State["needs_chart"] != true {
			t.Errorf("expected needs_chart true, got %v", loaded.State["needs_chart"])
		}
		if len(loaded.Events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(loaded.Events))
		}
		if loaded.Events[0].Author != "user" || loaded.Events[1].Content != "Here is the breakdown" {
			t.Errorf("events out of order: %+v", loaded.Events)
		}
	})

	t.Run("SaveOverwrites", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		session, _ := store.Create(ctx, "app", "alice", "s1", nil)
		session.AppendEvent("user", "one")
		session.AppendEvent("user", "two")
		if err := store.Save(ctx, session); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		session.Events = session.Events[:1]
		if err := store.Save(ctx, session); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		loaded, _ := store.Get(ctx, "app", "alice", "s1")
		if len(loaded.Events) != 1 {
			t.Errorf("expected 1 event after overwrite, got %d", len(loaded.Events))
		}
	})

	t.Run("SaveMissing", func(t *testing.T) {
		store := newStore(t)
		session := NewSession("app", "alice", "ghost", nil)
		if err := store.Save(context.Background(), session); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("LoadedCopyIsIndependent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		if _, err := store.Create(ctx, "app", "alice", "s1", map[string]any{"k": "v"}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		loaded, _ := store.Get(ctx, "app", "alice", "s1")
		loaded.State["k"] = "changed"

		again, _ := store.Get(ctx, "app", "alice", "s1")
		if again.State["k"] != "v" {
			t.Errorf("unsaved change leaked into store: %v", again.State["k"])
		}
	})

	t.Run("Delete", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		if _, err := store.Create(ctx, "app", "alice", "s1", nil); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if err := store.Delete(ctx, "app", "alice", "s1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := store.Get(ctx, "app", "alice", "s1"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound after delete, got %v", err)
		}
		if err := store.Delete(ctx, "app", "alice", "s1"); err != nil {
			t.Errorf("deleting a missing session should succeed, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		for _, id := range []string{"a", "b", "c"} {
			if _, err := store.Create(ctx, "app", "alice", id, nil); err != nil {
				t.Fatalf("Create failed: %v", err)
			}
		}
		if _, err := store.Create(ctx, "app", "bob", "d", nil); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		sessions, err := store.List(ctx, "app", "alice")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(sessions) != 3 {
			t.Fatalf("expected 3 sessions, got %d", len(sessions))
		}
		for _, s := range sessions {
			if s.UserID != "alice" {
				t.Errorf("listed session of another user: %s", s.UserID)
			}
		}

		empty, err := store.List(ctx, "app", "nobody")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if empty == nil || len(empty) != 0 {
			t.Errorf("expected empty non-nil list, got %v", empty)
		}
	})

	t.Run("ConcurrentSaves", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := range 10 {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				id := fmt.Sprintf("session-%d", n)
				session, err := store.Create(ctx, "app", "alice", id, nil)
				if err != nil {
					t.Errorf("Create failed: %v", err)
					return
				}
				session.AppendEvent("user", fmt.Sprintf("message %d", n))
				if err := store.Save(ctx, session); err != nil {
					t.Errorf("Save failed: %v", err)
				}
			}(i)
		}
		wg.Wait()

		sessions, err := store.List(ctx, "app", "alice")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(sessions) != 10 {
			t.Errorf("expected 10 sessions, got %d", len(sessions))
		}
	})
}
