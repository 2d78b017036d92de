package agent

import (
	"sync"
	"testing"
)

func TestStateRender(t *testing.T) {
	state := NewState(map[string]any{"original_user_query": "top customers", "count": 3})

	got := state.Render(`Query: {original_user_query} ({count}) missing:[{absent}] json: {"k": 1}`)
	want := `Query: top customers (3) missing:[] json: {"k": 1}`
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestStateCopiesInitial(t *testing.T) {
	initial := map[string]any{"a": 1}
	state := NewState(initial)
	state.Set("b", 2)

	if _, ok := initial["b"]; ok {
		t.Error("expected state not to write through to the seed map")
	}
	snapshot := state.Snapshot()
	snapshot["c"] = 3
	if _, ok := state.Get("c"); ok {
		t.Error("expected snapshot to be a copy")
	}
	if keys := state.Keys(); len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("unexpected keys: %v", keys)
	}
}

func TestStateConcurrentAccess(t *testing.T) {
	state := NewState(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			state.Set("k", i)
			_ = state.GetString("k")
			_ = state.Snapshot()
		}(i)
	}
	wg.Wait()
	if _, ok := state.Get("k"); !ok {
		t.Error("expected key to be set")
	}
}
