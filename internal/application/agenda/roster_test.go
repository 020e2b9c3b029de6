package agenda

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"academy/internal/adapters/storage/kv"
	"academy/internal/domain/group"
	"academy/internal/domain/roster"
)

func scenarioPlayers() []roster.Player {
	return []roster.Player{
		{ID: "p1", Name: "Ana", GroupID: "gA", Group: "A", SubgroupID: "sA1", Subgroup: "A1"},
		{ID: "p2", Name: "Ben", GroupID: "gA", Group: "A", SubgroupID: "sA2", Subgroup: "A2"},
		{ID: "p3", Name: "Cleo", GroupID: "gB", Group: "B"},
	}
}

// TestRosterView_LoadAndCache tests loading the roster and the playerGroups mirror.
func TestRosterView_LoadAndCache(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore(nil)
	if err := SaveRoster(ctx, mem, scenarioPlayers(), []roster.Coach{{ID: "c1", Name: "Coach"}}); err != nil {
		t.Fatalf("SaveRoster() error = %v", err)
	}

	v, err := NewRosterView(ctx, mem, nil)
	if err != nil {
		t.Fatalf("NewRosterView() error = %v", err)
	}
	defer v.Close()

	snap := v.Snapshot()
	if len(snap.Players) != 3 || len(snap.Coaches) != 1 {
		t.Fatalf("Snapshot() = %+v", snap)
	}
	if len(snap.Groups) != 2 || snap.Groups[0].Name != "A" || len(snap.Groups[0].Subgroups) != 2 {
		t.Errorf("Groups = %+v", snap.Groups)
	}
	if ref, ok := snap.Directory.Resolve("A"); !ok || ref.ID != "gA" {
		t.Errorf("Directory.Resolve(A) = %+v, %v", ref, ok)
	}

	blob, err := mem.Get(ctx, kv.KeyPlayerGroups)
	if err != nil {
		t.Fatalf("playerGroups not written: %v", err)
	}
	var cached []group.Group
	if err := json.Unmarshal(blob.Value, &cached); err != nil || len(cached) != 2 {
		t.Errorf("playerGroups cache = %s, %v", blob.Value, err)
	}
}

// TestRosterView_EmptyStore tests that missing keys are empty rosters.
func TestRosterView_EmptyStore(t *testing.T) {
	v, err := NewRosterView(context.Background(), kv.NewMemoryStore(nil), nil)
	if err != nil {
		t.Fatalf("NewRosterView() error = %v", err)
	}
	defer v.Close()
	snap := v.Snapshot()
	if snap.Players == nil || snap.Coaches == nil || len(snap.Groups) != 0 {
		t.Errorf("Snapshot() = %+v", snap)
	}
}

// TestRosterView_FollowsWritesFromOtherContexts tests signal-driven and polled reloads.
func TestRosterView_FollowsWritesFromOtherContexts(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore(nil)
	v, err := NewRosterView(ctx, mem, nil)
	if err != nil {
		t.Fatalf("NewRosterView() error = %v", err)
	}
	defer v.Close()

	if err := SaveRoster(ctx, mem.Sibling(), scenarioPlayers(), nil); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(v.Snapshot().Players) != 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := len(v.Snapshot().Players); n != 3 {
		t.Fatalf("players after signal = %d, want 3", n)
	}
	if _, err := v.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if changed, err := v.Refresh(ctx); err != nil || changed {
		t.Errorf("Refresh() with no new write = %v, %v; want false, nil", changed, err)
	}
}
