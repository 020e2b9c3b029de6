package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"academy/internal/adapters/storage"
	"academy/internal/adapters/storage/kv"
	notificationStore "academy/internal/adapters/storage/notification"
	"academy/internal/application/agenda"
	"academy/internal/application/orchestrators"
	"academy/internal/application/projections"
	"academy/internal/domain/event"
	"academy/internal/domain/group"
	"academy/internal/domain/notification"
	"academy/internal/domain/roster"
)

type staticRoster struct{ snap agenda.Snapshot }

func (r staticRoster) Snapshot() agenda.Snapshot { return r.snap }

// fakeSyncer counts immediate polls and fails with err.
type fakeSyncer struct {
	calls int
	err   error
}

func (s *fakeSyncer) PollNow(context.Context) error {
	s.calls++
	return s.err
}

// testApp is a router over an in-memory kv store and a SQLite notification table.
type testApp struct {
	handler       http.Handler
	events        *agenda.EventStore
	notifications *notificationStore.SQLiteStore
	toaster       *agenda.Toaster
	sync          *fakeSyncer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()

	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.MigrateDB(db, ":memory:"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	notifications := notificationStore.NewSQLiteStore(db)

	rosterSrc := staticRoster{agenda.NewSnapshot([]roster.Player{
		{ID: "p1", Name: "Ana", GroupID: "gA", Group: "A", SubgroupID: "sA1", Subgroup: "A1"},
		{ID: "p2", Name: "Ben", GroupID: "gA", Group: "A", SubgroupID: "sA2", Subgroup: "A2"},
		{ID: "p3", Name: "Cleo", GroupID: "gB", Group: "B"},
	}, []roster.Coach{{ID: "c1", Name: "Coach Kim"}})}

	n := 0
	nextID := func() string { n++; return fmt.Sprintf("id-%d", n) }
	now := func() time.Time { return time.Date(2024, 7, 10, 9, 0, 0, 0, time.UTC) }

	hub := kv.NewHub(nil)
	t.Cleanup(hub.Close)
	events, err := agenda.NewEventStore(ctx, agenda.EventStoreDeps{
		KV:         kv.NewMemoryStore(hub),
		GenerateID: nextID,
		Dispatcher: orchestrators.AssignmentDispatcher(orchestrators.NotifyAssignmentDeps{
			Roster:        rosterSrc,
			Notifications: notifications,
			GenerateID:    nextID,
			Now:           now,
		}),
	})
	if err != nil {
		t.Fatalf("NewEventStore: %v", err)
	}
	t.Cleanup(events.Close)

	toaster := agenda.NewToaster(time.Minute)
	t.Cleanup(toaster.Close)
	syncer := &fakeSyncer{}

	handler, stop := NewRouter(Deps{
		Events:             events,
		Roster:             rosterSrc,
		Notifications:      notifications,
		Toaster:            toaster,
		Sync:               syncer,
		Now:                now,
		GenerateID:         nextID,
		CSRFKey:            bytes.Repeat([]byte("k"), 32),
		RateLimitPerSecond: 1000,
	})
	t.Cleanup(stop)
	return &testApp{handler: handler, events: events, notifications: notifications, toaster: toaster, sync: syncer}
}

func (a *testApp) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return a.doAs(t, "c1", method, path, body)
}

func (a *testApp) doAs(t *testing.T, actor, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-Academy-Actor", actor)
	}
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func trainingDraft() event.Draft {
	return event.Draft{
		Title:          "Physique",
		Type:           event.TypeTraining,
		Date:           "2024-07-23",
		StartTime:      "18:00",
		EndTime:        "19:30",
		AssignedGroups: []string{"gA"},
		CoachID:        "c1",
	}
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

// TestCreateEvent_NotifiesAndLists tests the create flow end to end.
func TestCreateEvent_NotifiesAndLists(t *testing.T) {
	app := newTestApp(t)

	rr := app.do(t, "POST", "/api/events", trainingDraft())
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	created := decode[event.Event](t, rr)
	if created.ID == "" || created.CreatedBy != "c1" {
		t.Errorf("unexpected event %+v", created)
	}

	list := decode[[]event.Event](t, app.do(t, "GET", "/api/events?group=gA", nil))
	if len(list) != 1 || list[0].ID != created.ID {
		t.Errorf("GET /api/events?group=gA = %+v", list)
	}
	none := decode[[]event.Event](t, app.do(t, "GET", "/api/events?group=gB", nil))
	if len(none) != 0 {
		t.Errorf("GET /api/events?group=gB = %+v, want empty", none)
	}

	inbox := decode[projections.NotificationsView](t, app.do(t, "GET", "/api/notifications?recipient=p1", nil))
	if len(inbox.Items) != 1 || inbox.Unread != 1 {
		t.Errorf("p1 inbox = %+v", inbox)
	}
	coach, _ := app.notifications.ListByRecipient(context.Background(), "c1")
	if len(coach) != 1 || coach[0].Type != notification.TypeCoach {
		t.Errorf("coach notifications = %+v", coach)
	}

	toasts := decode[[]agenda.Toast](t, app.do(t, "GET", "/api/toasts", nil))
	if len(toasts) != 1 || toasts[0].Level != agenda.ToastSuccess {
		t.Errorf("toasts = %+v", toasts)
	}
}

// TestCreateEvent_ValidationErrors tests the 422 field map.
func TestCreateEvent_ValidationErrors(t *testing.T) {
	app := newTestApp(t)
	draft := trainingDraft()
	draft.Title = ""
	draft.AssignedGroups = nil
	draft.EndTime = "17:00"

	rr := app.do(t, "POST", "/api/events", draft)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
	body := decode[errorResponse](t, rr)
	for _, f := range []string{"title", "assignedGroups", "endTime"} {
		if body.Fields[f] == "" {
			t.Errorf("missing field error for %s in %+v", f, body.Fields)
		}
	}
	if len(app.events.List()) != 0 {
		t.Error("rejected draft must not be stored")
	}
	toasts := app.toaster.Active("c1")
	if len(toasts) != 1 || toasts[0].Level != agenda.ToastError {
		t.Errorf("toasts = %+v", toasts)
	}
}

// TestCreateEvent_BadBodies tests malformed and unknown-field bodies.
func TestCreateEvent_BadBodies(t *testing.T) {
	app := newTestApp(t)

	rr := app.do(t, "POST", "/api/events", map[string]any{"title": "x", "colour": "red"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown field status = %d, want 400", rr.Code)
	}

	req := httptest.NewRequest("POST", "/api/events", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("truncated body status = %d, want 400", rec.Code)
	}
}

// TestUpdateAndDeleteEvent tests edits and the 404 mapping.
func TestUpdateAndDeleteEvent(t *testing.T) {
	app := newTestApp(t)
	created := decode[event.Event](t, app.do(t, "POST", "/api/events", trainingDraft()))

	draft := trainingDraft()
	draft.Title = "Physique (moved)"
	draft.StartTime = "17:00"
	rr := app.do(t, "PUT", "/api/events/"+created.ID, draft)
	if rr.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, body %s", rr.Code, rr.Body.String())
	}
	updated := decode[event.Event](t, rr)
	if updated.ID != created.ID || updated.Title != "Physique (moved)" || updated.CreatedBy != created.CreatedBy {
		t.Errorf("updated = %+v", updated)
	}

	if rr := app.do(t, "PUT", "/api/events/missing", draft); rr.Code != http.StatusNotFound {
		t.Errorf("PUT missing status = %d, want 404", rr.Code)
	}
	if rr := app.do(t, "DELETE", "/api/events/"+created.ID, nil); rr.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d, want 204", rr.Code)
	}
	if rr := app.do(t, "DELETE", "/api/events/"+created.ID, nil); rr.Code != http.StatusNotFound {
		t.Errorf("second DELETE status = %d, want 404", rr.Code)
	}
	if rr := app.do(t, "GET", "/api/events/"+created.ID, nil); rr.Code != http.StatusNotFound {
		t.Errorf("GET deleted status = %d, want 404", rr.Code)
	}
}

// TestCreateSeries tests RRULE expansion through the API.
func TestCreateSeries(t *testing.T) {
	app := newTestApp(t)
	req := seriesRequest{Draft: trainingDraft(), Recurrence: "FREQ=WEEKLY;COUNT=3"}

	rr := app.do(t, "POST", "/api/events/series", req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	created := decode[[]event.Event](t, rr)
	want := []string{"2024-07-23", "2024-07-30", "2024-08-06"}
	if len(created) != len(want) {
		t.Fatalf("created %d events, want %d", len(created), len(want))
	}
	for i, ev := range created {
		if ev.Date != want[i] || ev.SeriesID == "" || ev.SeriesID != created[0].SeriesID {
			t.Errorf("occurrence %d = %+v", i, ev)
		}
	}

	req.Recurrence = "FREQ=SOMETIMES"
	if rr := app.do(t, "POST", "/api/events/series", req); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad rule status = %d, want 422", rr.Code)
	}
}

// TestCalendar tests the month grid and its error mapping.
func TestCalendar(t *testing.T) {
	app := newTestApp(t)
	app.do(t, "POST", "/api/events", trainingDraft())

	rr := app.do(t, "GET", "/api/calendar?month=2024-07&group=gA&subgroup=A1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	view := decode[projections.AgendaMonthView](t, rr)
	if view.Month != "2024-07" || view.Matched != 0 {
		t.Errorf("subgroup A1 should exclude a whole-group event: %+v", view.Matched)
	}

	view = decode[projections.AgendaMonthView](t, app.do(t, "GET", "/api/calendar?month=2024-07&group=A", nil))
	if view.Matched != 1 {
		t.Errorf("group by display name matched %d, want 1", view.Matched)
	}
	for _, d := range view.Days {
		if d.Date == "2024-07-23" && len(d.Events) != 1 {
			t.Errorf("July 23 holds %d events", len(d.Events))
		}
		if d.Date == "2024-07-10" && !d.IsToday {
			t.Error("July 10 should be today")
		}
	}

	if rr := app.do(t, "GET", "/api/calendar?month=July", nil); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad month status = %d, want 422", rr.Code)
	}
}

// TestCalendarICS tests the export headers and body.
func TestCalendarICS(t *testing.T) {
	app := newTestApp(t)
	app.do(t, "POST", "/api/events", trainingDraft())

	rr := app.do(t, "GET", "/api/calendar.ics?group=gA", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Content-Type = %q", ct)
	}
	if body := rr.Body.String(); !strings.Contains(body, "SUMMARY:Physique") {
		t.Errorf("ics body missing event:\n%s", body)
	}
}

// TestGroups tests both group shapes.
func TestGroups(t *testing.T) {
	app := newTestApp(t)

	byID := decode[[]group.Group](t, app.do(t, "GET", "/api/groups", nil))
	if len(byID) != 2 || byID[0].ID != "gA" || len(byID[0].Subgroups) != 2 {
		t.Errorf("groups = %+v", byID)
	}
	byName := decode[[]group.NamedGroup](t, app.do(t, "GET", "/api/groups?by=name", nil))
	if len(byName) != 2 || byName[0].Name != "A" || byName[0].Color == "" {
		t.Errorf("groups by name = %+v", byName)
	}
}

// TestNotifications tests read and delete, including unknown ids.
func TestNotifications(t *testing.T) {
	app := newTestApp(t)
	app.do(t, "POST", "/api/events", trainingDraft())
	inbox := decode[projections.NotificationsView](t, app.do(t, "GET", "/api/notifications?recipient=p2", nil))
	if len(inbox.Items) != 1 {
		t.Fatalf("p2 inbox = %+v", inbox)
	}
	id := inbox.Items[0].ID

	if rr := app.do(t, "POST", "/api/notifications/"+id+"/read", nil); rr.Code != http.StatusNoContent {
		t.Errorf("read status = %d", rr.Code)
	}
	inbox = decode[projections.NotificationsView](t, app.do(t, "GET", "/api/notifications?recipient=p2", nil))
	if inbox.Unread != 0 || !inbox.Items[0].Read {
		t.Errorf("after read: %+v", inbox)
	}
	if rr := app.do(t, "DELETE", "/api/notifications/"+id, nil); rr.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rr.Code)
	}
	if rr := app.do(t, "POST", "/api/notifications/"+id+"/read", nil); rr.Code != http.StatusNotFound {
		t.Errorf("read deleted status = %d, want 404", rr.Code)
	}
	if rr := app.do(t, "GET", "/api/notifications", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("missing recipient status = %d, want 400", rr.Code)
	}
}

// TestRouter_Middleware tests health, security headers and CSRF on form posts.
func TestRouter_Middleware(t *testing.T) {
	app := newTestApp(t)

	rr := app.do(t, "GET", "/health", nil)
	if rr.Code != http.StatusOK || rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Errorf("health status = %d, headers %v", rr.Code, rr.Header())
	}

	req := httptest.NewRequest("POST", "/api/events", strings.NewReader("title=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("form post without token status = %d, want 403", rec.Code)
	}
	if len(app.events.List()) != 0 {
		t.Error("forged post must not create an event")
	}
}

// TestToasts_PerActor tests that toasts are shown to, and dismissed by, the
// actor whose request raised them.
func TestToasts_PerActor(t *testing.T) {
	app := newTestApp(t)
	if rr := app.doAs(t, "admin", "POST", "/api/events", trainingDraft()); rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	if got := decode[[]agenda.Toast](t, app.doAs(t, "c1", "GET", "/api/toasts", nil)); len(got) != 0 {
		t.Errorf("c1 toasts = %+v, want none", got)
	}
	mine := decode[[]agenda.Toast](t, app.doAs(t, "admin", "GET", "/api/toasts", nil))
	if len(mine) != 1 || mine[0].Message != "Event created" {
		t.Fatalf("admin toasts = %+v", mine)
	}

	app.doAs(t, "c1", "DELETE", "/api/toasts/"+mine[0].ID, nil)
	if got := app.toaster.Active("admin"); len(got) != 1 {
		t.Errorf("another actor dismissed the toast: %+v", got)
	}
	if rr := app.doAs(t, "admin", "DELETE", "/api/toasts/"+mine[0].ID, nil); rr.Code != http.StatusNoContent {
		t.Errorf("dismiss status = %d", rr.Code)
	}
	if got := app.toaster.Active("admin"); len(got) != 0 {
		t.Errorf("admin toasts after dismiss = %+v", got)
	}
}

// TestSync tests the immediate re-read of shared state.
func TestSync(t *testing.T) {
	app := newTestApp(t)
	app.do(t, "POST", "/api/events", trainingDraft())

	rr := app.do(t, "POST", "/api/sync", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if body := decode[map[string]int](t, rr); body["events"] != 1 {
		t.Errorf("body = %+v", body)
	}
	if app.sync.calls != 1 {
		t.Errorf("PollNow called %d times, want 1", app.sync.calls)
	}

	app.sync.err = errors.New("kv unavailable")
	if rr := app.do(t, "POST", "/api/sync", nil); rr.Code != http.StatusInternalServerError {
		t.Errorf("failing poll status = %d, want 500", rr.Code)
	}
}
