package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"academy/internal/adapters/storage"
	"academy/internal/adapters/storage/kv"
	"academy/internal/application/projections"
	"academy/internal/domain/event"
)

const rosterYAML = `players:
  - {id: p1, name: Ana, groupId: gA, group: U12, subgroupId: sA1, subgroup: U12-A}
  - {id: p2, name: Ben, groupId: gA, group: U12, subgroupId: sA2, subgroup: U12-B}
  - {id: p3, name: Cleo, groupId: gB, group: U14}
coaches:
  - {id: c1, name: Coach Lee, email: lee@example.com}
`

// setupEnv points the commands at a fresh database.
func setupEnv(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "academy.db")
	t.Setenv("ACADEMY_DB_PATH", dbPath)
	t.Setenv("ACADEMY_LOG_LEVEL", "error")
	t.Setenv("ACADEMY_TIMEZONE", "UTC")
	envFile = filepath.Join(t.TempDir(), "missing.env")
	configFile = ""
	return dbPath
}

// resetFlags restores every subcommand flag to its default; flag values
// outlive a single Execute and slice flags append once changed.
func resetFlags() {
	for _, c := range rootCmd.Commands() {
		c.LocalNonPersistentFlags().VisitAll(func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				sv.Replace(nil)
			} else {
				f.Value.Set(f.DefValue)
			}
			f.Changed = false
		})
	}
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// writeEvents stores the events blob directly, the way another context would.
func writeEvents(t *testing.T, dbPath string, events []event.Event) {
	t.Helper()
	db, err := storage.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := storage.MigrateDB(db, dbPath); err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(events)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := kv.NewSQLiteStore(db, nil, nil).Set(context.Background(), kv.KeyEvents, raw); err != nil {
		t.Fatal(err)
	}
}

// TestSeedAndGroups tests seeding from stdin and printing both group shapes.
func TestSeedAndGroups(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, rosterYAML, "seed", "--file", "-")
	if err != nil {
		t.Fatalf("seed error = %v", err)
	}
	if !strings.Contains(out, "Seeded 3 players, 1 coaches, 2 groups.") {
		t.Errorf("unexpected seed output %q", out)
	}

	out, err = execute(t, "", "groups")
	if err != nil {
		t.Fatalf("groups error = %v", err)
	}
	var byID projections.GroupsView
	if err := json.Unmarshal([]byte(out), &byID); err != nil {
		t.Fatalf("groups output is not JSON: %v\n%s", err, out)
	}
	if len(byID.ByID) != 2 || byID.ByID[0].ID != "gA" || len(byID.ByID[0].Subgroups) != 2 {
		t.Errorf("unexpected groups %+v", byID.ByID)
	}

	out, err = execute(t, "", "groups", "--by-name")
	if err != nil {
		t.Fatalf("groups --by-name error = %v", err)
	}
	var byName projections.GroupsView
	if err := json.Unmarshal([]byte(out), &byName); err != nil {
		t.Fatal(err)
	}
	if len(byName.ByName) != 2 || len(byName.ByID) != 0 {
		t.Errorf("unexpected named groups %+v", byName)
	}
}

// TestSeed_InvalidRoster tests that a bad file is rejected.
func TestSeed_InvalidRoster(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "players:\n  - {id: p1, name: \"\"}\n", "seed", "--file", "-")
	if err == nil {
		t.Fatal("expected error for a player without a name")
	}
}

// TestCalendar tests the month table, the JSON view and the ICS export.
func TestCalendar(t *testing.T) {
	dbPath := setupEnv(t)
	if _, err := execute(t, rosterYAML, "seed", "--file", "-"); err != nil {
		t.Fatal(err)
	}
	writeEvents(t, dbPath, []event.Event{
		{ID: "e1", Title: "Passing drills", Type: event.TypeTraining, Date: "2024-07-10", StartTime: "17:00", EndTime: "18:30", AssignedGroups: []string{"gA"}, AssignedSubgroups: []string{}, Absences: []string{}},
		{ID: "e2", Title: "Derby", Type: event.TypeMatch, Date: "2024-07-20", StartTime: "10:00", EndTime: "12:00", Location: "Stadium", AssignedGroups: []string{"gB"}, AssignedSubgroups: []string{}, Absences: []string{}},
	})

	out, err := execute(t, "", "calendar", "--month", "2024-07", "--group", "gA")
	if err != nil {
		t.Fatalf("calendar error = %v", err)
	}
	if !strings.Contains(out, "2024-07  (prev 2024-06, next 2024-08)") || !strings.Contains(out, "Passing drills") {
		t.Errorf("unexpected table:\n%s", out)
	}
	if strings.Contains(out, "Derby") {
		t.Errorf("filtered event listed:\n%s", out)
	}

	out, err = execute(t, "", "calendar", "--month", "2024-07", "--group", "gA,gB", "--json")
	if err != nil {
		t.Fatalf("calendar --json error = %v", err)
	}
	var view projections.AgendaMonthView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("calendar output is not JSON: %v", err)
	}
	if view.Matched != 2 || view.Month != "2024-07" {
		t.Errorf("Matched = %d, Month = %q", view.Matched, view.Month)
	}

	out, err = execute(t, "", "calendar", "--group", "gB", "--ics", "--from", "2024-07-01", "--to", "2024-07-31")
	if err != nil {
		t.Fatalf("calendar --ics error = %v", err)
	}
	if !strings.Contains(out, "BEGIN:VCALENDAR") || !strings.Contains(out, "UID:e2@academy") || strings.Contains(out, "UID:e1@academy") {
		t.Errorf("unexpected ICS:\n%s", out)
	}
}

// TestCalendar_EmptyMonth tests the empty-month message and a malformed month.
func TestCalendar_EmptyMonth(t *testing.T) {
	setupEnv(t)
	out, err := execute(t, "", "calendar", "--month", "2030-01")
	if err != nil {
		t.Fatalf("calendar error = %v", err)
	}
	if !strings.Contains(out, "No events this month.") {
		t.Errorf("unexpected output %q", out)
	}

	if _, err := execute(t, "", "calendar", "--month", "2030-13"); err == nil {
		t.Error("expected error for an invalid month")
	}
}
