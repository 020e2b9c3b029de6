package orchestrators

import (
	"context"
	"reflect"
	"testing"

	"github.com/pkg/errors"

	"academy/internal/application/agenda"
	"academy/internal/domain/event"
)

// TestExpandRecurrence tests RRULE expansion to calendar days.
func TestExpandRecurrence(t *testing.T) {
	tests := []struct {
		name      string
		first     string
		rule      string
		limit     int
		want      []string
		truncated bool
		wantErr   error
	}{
		{
			name:  "weekly count",
			first: "2024-07-02",
			rule:  "FREQ=WEEKLY;COUNT=3",
			limit: 10,
			want:  []string{"2024-07-02", "2024-07-09", "2024-07-16"},
		},
		{
			name:  "prefix and weekdays",
			first: "2024-07-01",
			rule:  "RRULE:FREQ=WEEKLY;BYDAY=MO,WE;COUNT=4",
			limit: 10,
			want:  []string{"2024-07-01", "2024-07-03", "2024-07-08", "2024-07-10"},
		},
		{
			name:      "unbounded rule is capped",
			first:     "2024-07-01",
			rule:      "FREQ=DAILY",
			limit:     2,
			want:      []string{"2024-07-01", "2024-07-02"},
			truncated: true,
		},
		{name: "bad rule", first: "2024-07-01", rule: "FREQ=SOMETIMES", limit: 5, wantErr: ErrInvalidRecurrence},
		{name: "bad date", first: "07/01/2024", rule: "FREQ=DAILY", limit: 5, wantErr: event.ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, truncated, err := ExpandRecurrence(tt.first, tt.rule, tt.limit)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) || truncated != tt.truncated {
				t.Errorf("got %v (truncated=%v), want %v (truncated=%v)", got, truncated, tt.want, tt.truncated)
			}
		})
	}
}

// TestExecuteCreateSeries tests that every occurrence is created with a shared series id.
func TestExecuteCreateSeries(t *testing.T) {
	store := newMockEventStore()
	created, err := ExecuteCreateSeries(context.Background(), CreateSeriesInput{
		Draft:      validDraft(),
		Recurrence: "FREQ=WEEKLY;COUNT=4",
		ActorID:    "coach",
	}, CreateSeriesDeps{Events: store, Roster: academyRoster(), GenerateID: seqIDs("series-")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 4 {
		t.Fatalf("expected 4 events, got %d", len(created))
	}
	for i, ev := range created {
		if ev.SeriesID != "series-1" || ev.Recurrence != "FREQ=WEEKLY;COUNT=4" || ev.CreatedBy != "coach" {
			t.Errorf("event %d has series fields %+v", i, ev)
		}
	}
	if created[3].Date != "2024-08-13" {
		t.Errorf("last occurrence = %s, want 2024-08-13", created[3].Date)
	}
}

// TestExecuteCreateSeries_Invalid tests that nothing is created for a bad draft.
func TestExecuteCreateSeries_Invalid(t *testing.T) {
	store := newMockEventStore()
	d := validDraft()
	d.Title = ""
	_, err := ExecuteCreateSeries(context.Background(), CreateSeriesInput{Draft: d, Recurrence: "FREQ=DAILY;COUNT=2"},
		CreateSeriesDeps{Events: store, Roster: academyRoster(), GenerateID: seqIDs("s")})
	var verr *event.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if store.creates != 0 {
		t.Errorf("expected no creates, got %d", store.creates)
	}
}

// TestExecuteCreateSeries_PartialFailure tests that events created before a failure are returned.
func TestExecuteCreateSeries_PartialFailure(t *testing.T) {
	store := newMockEventStore()
	store.failAt = 3
	created, err := ExecuteCreateSeries(context.Background(), CreateSeriesInput{Draft: validDraft(), Recurrence: "FREQ=DAILY;COUNT=5"},
		CreateSeriesDeps{Events: store, Roster: academyRoster(), GenerateID: seqIDs("s")})
	if !errors.Is(err, agenda.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if len(created) != 2 {
		t.Errorf("expected 2 created before failure, got %d", len(created))
	}
}
