package orchestrators

import (
	"context"
	"strings"
	"testing"

	"academy/internal/adapters/storage/kv"
)

const rosterYAML = `
players:
  - {id: p1, name: Ana, groupId: gA, group: A, subgroupId: sA1, subgroup: A1}
  - {id: p2, name: Ben, groupId: gA, group: A, subgroupId: sA2, subgroup: A2}
  - {id: p3, name: Cleo, groupId: gB, group: B}
coaches:
  - {id: c1, name: Coach Lee, email: lee@example.com}
`

// TestExecuteSeedRoster tests loading players and coaches from YAML.
func TestExecuteSeedRoster(t *testing.T) {
	mem := kv.NewMemoryStore(nil)
	res, err := ExecuteSeedRoster(context.Background(), strings.NewReader(rosterYAML), SeedRosterDeps{KV: mem})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Players != 3 || res.Coaches != 1 {
		t.Errorf("expected 3 players and 1 coach, got %+v", res)
	}
	if len(res.Groups) != 2 || res.Groups[0].Name != "A" || len(res.Groups[0].Subgroups) != 2 || len(res.Groups[1].Subgroups) != 0 {
		t.Errorf("unexpected groups %+v", res.Groups)
	}
	if v, _ := mem.Version(context.Background(), kv.KeyPlayerGroups); v == 0 {
		t.Error("expected playerGroups cache to be written")
	}
}

// TestExecuteSeedRoster_Rejects tests invalid files write nothing.
func TestExecuteSeedRoster_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"subgroup without group", "players:\n  - {id: p1, name: Ana, subgroupId: s1, subgroup: S}\n"},
		{"duplicate player", "players:\n  - {id: p1, name: Ana}\n  - {id: p1, name: Ben}\n"},
		{"missing coach name", "coaches:\n  - {id: c1}\n"},
		{"unknown field", "players:\n  - {id: p1, name: Ana, shirt: 9}\n"},
		{"not yaml", "players: [unterminated\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := kv.NewMemoryStore(nil)
			if _, err := ExecuteSeedRoster(context.Background(), strings.NewReader(tt.doc), SeedRosterDeps{KV: mem}); err == nil {
				t.Fatal("expected error")
			}
			if v, _ := mem.Version(context.Background(), kv.KeyPlayers); v != 0 {
				t.Error("players must not be written")
			}
		})
	}
}
