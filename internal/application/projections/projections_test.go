package projections

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"academy/internal/application/agenda"
	"academy/internal/application/listutil"
	"academy/internal/domain/calendar"
	"academy/internal/domain/event"
	"academy/internal/domain/notification"
	"academy/internal/domain/roster"
)

type staticEvents []event.Event

func (s staticEvents) List() []event.Event { return append([]event.Event(nil), s...) }

type staticRoster struct{ snap agenda.Snapshot }

func (r staticRoster) Snapshot() agenda.Snapshot { return r.snap }

func testRoster() staticRoster {
	return staticRoster{agenda.NewSnapshot([]roster.Player{
		{ID: "p1", Name: "Ana", GroupID: "gA", Group: "A", SubgroupID: "sA1", Subgroup: "A1"},
		{ID: "p2", Name: "Ben", GroupID: "gA", Group: "A", SubgroupID: "sA2", Subgroup: "A2"},
		{ID: "p3", Name: "Cleo", GroupID: "gB", Group: "B"},
	}, nil)}
}

func julyEvents() staticEvents {
	return staticEvents{
		{ID: "e1", Title: "Late training", Type: event.TypeTraining, SubType: "physique-A", Date: "2024-07-23", StartTime: "19:00", EndTime: "20:00", AssignedGroups: []string{"gA"}, CoachID: "c1"},
		{ID: "e2", Title: "Early training", Type: event.TypeTraining, SubType: "physique-B", Date: "2024-07-23", StartTime: "08:00", EndTime: "09:00", AssignedGroups: []string{"gA"}, AssignedSubgroups: []string{"A1"}, CoachID: "c2"},
		{ID: "e3", Title: "League match", Type: event.TypeMatch, SubType: "League", Date: "2024-07-24", StartTime: "15:00", EndTime: "17:00", Group: "B", CoachID: "c1", Location: "Stadium"},
		{ID: "e4", Title: "Staff meeting", Type: event.TypeMeeting, SubType: "Staff", Date: "2024-08-02", StartTime: "10:00", EndTime: "11:00", AssignedGroups: []string{"gB"}},
	}
}

func dayOf(t *testing.T, days []calendar.Day, date string) calendar.Day {
	t.Helper()
	for _, d := range days {
		if d.Date == date {
			return d
		}
	}
	t.Fatalf("day %s not in grid", date)
	return calendar.Day{}
}

// TestQueryGetAgendaMonth tests the month grid, ordering and navigation.
func TestQueryGetAgendaMonth(t *testing.T) {
	deps := GetAgendaMonthDeps{
		Events: julyEvents(),
		Roster: testRoster(),
		Now:    func() time.Time { return time.Date(2024, 7, 10, 23, 30, 0, 0, time.UTC) },
	}
	view, err := QueryGetAgendaMonth(context.Background(), GetAgendaMonthQuery{Month: "2024-07"}, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Month != "2024-07" || view.PrevMonth != "2024-06" || view.NextMonth != "2024-08" {
		t.Errorf("unexpected navigation %+v", view)
	}
	if len(view.Days)%7 != 0 || len(view.Weeks) != len(view.Days)/7 {
		t.Errorf("grid has %d days in %d weeks", len(view.Days), len(view.Weeks))
	}
	d23 := dayOf(t, view.Days, "2024-07-23")
	if len(d23.Events) != 2 || d23.Events[0].ID != "e2" {
		t.Errorf("expected e2 before e1 on July 23, got %+v", d23.Events)
	}
	if !dayOf(t, view.Days, "2024-07-10").IsToday {
		t.Error("expected July 10 flagged as today")
	}
	if view.Matched != 4 {
		t.Errorf("expected 4 matched events, got %d", view.Matched)
	}
}

// TestQueryGetAgendaMonth_TodayInAcademyTimezone tests that today follows the configured zone.
func TestQueryGetAgendaMonth_TodayInAcademyTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	deps := GetAgendaMonthDeps{
		Events:   julyEvents(),
		Roster:   testRoster(),
		Now:      func() time.Time { return time.Date(2024, 7, 10, 23, 30, 0, 0, time.UTC) },
		Location: loc,
	}
	view, err := QueryGetAgendaMonth(context.Background(), GetAgendaMonthQuery{Month: "2024-07"}, deps)
	if err != nil {
		t.Fatal(err)
	}
	if !dayOf(t, view.Days, "2024-07-11").IsToday {
		t.Error("expected July 11 flagged as today in UTC+2")
	}
}

// TestQueryGetAgendaMonth_Filters tests group, subgroup and coach filtering.
func TestQueryGetAgendaMonth_Filters(t *testing.T) {
	deps := GetAgendaMonthDeps{Events: julyEvents(), Roster: testRoster(), Now: time.Now}
	tests := []struct {
		name  string
		query GetAgendaMonthQuery
		want  int
	}{
		{"group by id", GetAgendaMonthQuery{Month: "2024-07", Groups: []string{"gA"}}, 2},
		{"group by legacy name", GetAgendaMonthQuery{Month: "2024-07", Groups: []string{"gB"}}, 2},
		{"group and subgroup", GetAgendaMonthQuery{Month: "2024-07", Groups: []string{"gA"}, Subgroups: []string{"A1"}}, 1},
		{"subgroup only", GetAgendaMonthQuery{Month: "2024-07", Subgroups: []string{"A2"}}, 0},
		{"coach", GetAgendaMonthQuery{Month: "2024-07", CoachID: "c1"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := QueryGetAgendaMonth(context.Background(), tt.query, deps)
			if err != nil {
				t.Fatal(err)
			}
			if view.Matched != tt.want {
				t.Errorf("Matched = %d, want %d", view.Matched, tt.want)
			}
		})
	}
}

// TestQueryGetAgendaMonth_InvalidMonth tests month parsing errors.
func TestQueryGetAgendaMonth_InvalidMonth(t *testing.T) {
	_, err := QueryGetAgendaMonth(context.Background(), GetAgendaMonthQuery{Month: "July"}, GetAgendaMonthDeps{Events: staticEvents{}, Roster: testRoster()})
	if !errors.Is(err, calendar.ErrInvalidMonth) {
		t.Errorf("expected ErrInvalidMonth, got %v", err)
	}
}

// TestQueryGetGroups tests both group shapes.
func TestQueryGetGroups(t *testing.T) {
	byID := QueryGetGroups(false, GetGroupsDeps{Roster: testRoster()})
	if len(byID.ByID) != 2 || byID.ByName != nil || len(byID.ByID[0].Subgroups) != 2 {
		t.Errorf("unexpected id view %+v", byID)
	}
	byName := QueryGetGroups(true, GetGroupsDeps{Roster: testRoster()})
	if len(byName.ByName) != 2 || byName.ByName[0].Color == byName.ByName[1].Color {
		t.Errorf("unexpected name view %+v", byName)
	}
}

// TestQueryExportAgendaICS tests the iCalendar rendering.
func TestQueryExportAgendaICS(t *testing.T) {
	events := append(julyEvents(), event.Event{ID: "bad", Title: "Broken", Date: "2024-07-25", StartTime: "soon", Group: "B"})
	out, err := QueryExportAgendaICS(context.Background(), ExportAgendaICSQuery{Groups: []string{"gB"}, To: "2024-07-31"}, ExportAgendaICSDeps{
		Events:   events,
		Roster:   testRoster(),
		Location: time.FixedZone("UTC+2", 2*60*60),
		Now:      func() time.Time { return time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"BEGIN:VCALENDAR", "UID:e3@academy", "SUMMARY:League match", "LOCATION:Stadium", "DTSTART:20240724T130000Z", "DTEND:20240724T150000Z", "CATEGORIES:match"} {
		if !strings.Contains(out, want) {
			t.Errorf("ics missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Staff meeting") || strings.Contains(out, "Broken") {
		t.Errorf("ics contains events outside the range or unparseable:\n%s", out)
	}
}

type mockNotificationReader struct {
	items []notification.Notification
	err   error
}

func (m mockNotificationReader) ListByRecipient(context.Context, string) ([]notification.Notification, error) {
	return m.items, m.err
}

func (m mockNotificationReader) CountUnread(context.Context, string) (int, error) {
	n := 0
	for _, it := range m.items {
		if !it.Read {
			n++
		}
	}
	return n, m.err
}

// TestQueryGetNotifications tests the inbox view.
func TestQueryGetNotifications(t *testing.T) {
	view, err := QueryGetNotifications(context.Background(), GetNotificationsQuery{RecipientID: "p1"}, GetNotificationsDeps{Notifications: mockNotificationReader{
		items: []notification.Notification{{ID: "n1"}, {ID: "n2", Read: true}},
	}})
	if err != nil || len(view.Items) != 2 || view.Unread != 1 || view.Page.Total != 2 {
		t.Errorf("unexpected view %+v, %v", view, err)
	}
	if _, err := QueryGetNotifications(context.Background(), GetNotificationsQuery{}, GetNotificationsDeps{Notifications: mockNotificationReader{}}); err == nil {
		t.Error("expected error for empty recipient")
	}
	empty, _ := QueryGetNotifications(context.Background(), GetNotificationsQuery{RecipientID: "p9"}, GetNotificationsDeps{Notifications: mockNotificationReader{}})
	if empty.Items == nil {
		t.Error("items must be non-nil")
	}

	var many []notification.Notification
	for i := 0; i < 15; i++ {
		many = append(many, notification.Notification{ID: fmt.Sprintf("n%d", i)})
	}
	second, err := QueryGetNotifications(context.Background(),
		GetNotificationsQuery{RecipientID: "p1", Page: listutil.PageParams{Page: 2, PerPage: 10}},
		GetNotificationsDeps{Notifications: mockNotificationReader{items: many}})
	if err != nil || len(second.Items) != 5 || second.Items[0].ID != "n10" || second.Unread != 15 || second.Page.TotalPages != 2 {
		t.Errorf("unexpected second page %+v, %v", second.Page, err)
	}
}
