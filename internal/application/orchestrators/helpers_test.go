package orchestrators

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"academy/internal/application/agenda"
	"academy/internal/domain/event"
	"academy/internal/domain/notification"
	"academy/internal/domain/outbox"
	"academy/internal/domain/roster"
)

var testTime = time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

func testNow() time.Time { return testTime }

func seqIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

// staticRoster implements RosterSource.
type staticRoster struct{ snap agenda.Snapshot }

func (r staticRoster) Snapshot() agenda.Snapshot { return r.snap }

func academyRoster() staticRoster {
	return staticRoster{agenda.NewSnapshot(
		[]roster.Player{
			{ID: "p1", Name: "Ana", Email: "ana@example.com", GroupID: "gA", Group: "A", SubgroupID: "sA1", Subgroup: "A1"},
			{ID: "p2", Name: "Ben", GroupID: "gA", Group: "A", SubgroupID: "sA1", Subgroup: "A1"},
			{ID: "p3", Name: "Cal", Email: "cal@example.com", GroupID: "gA", Group: "A"},
			{ID: "p4", Name: "Dee", GroupID: "gB", Group: "B"},
		},
		[]roster.Coach{{ID: "c1", Name: "Coach Carter", Email: "carter@example.com"}},
	)}
}

// mockNotificationStore implements NotificationSaver.
type mockNotificationStore struct {
	saved []notification.Notification
	err   error
}

func (m *mockNotificationStore) SaveAll(_ context.Context, ns []notification.Notification) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, ns...)
	return nil
}

// mockOutboxStore implements outbox.Store for the orchestrators.
type mockOutboxStore struct {
	mu      sync.Mutex
	entries map[string]outbox.Entry
	order   []string
}

func newMockOutboxStore() *mockOutboxStore {
	return &mockOutboxStore{entries: map[string]outbox.Entry{}}
}

func (m *mockOutboxStore) GetByID(_ context.Context, id string) (outbox.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return outbox.Entry{}, errors.New("not found")
	}
	return e, nil
}

func (m *mockOutboxStore) Save(_ context.Context, e outbox.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.ID]; !ok {
		m.order = append(m.order, e.ID)
	}
	m.entries[e.ID] = e
	return nil
}

func (m *mockOutboxStore) ListPending(_ context.Context, limit int) ([]outbox.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []outbox.Entry
	for _, id := range m.order {
		e := m.entries[id]
		if (e.Status == outbox.StatusPending || e.Status == outbox.StatusRetrying) && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockOutboxStore) ListFailed(context.Context, int) ([]outbox.Entry, error) { return nil, nil }

func (m *mockOutboxStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

// mockEventStore implements EventWriter and EventCreator.
type mockEventStore struct {
	events  []event.Event
	nextID  func() string
	failAt  int // Create call number that fails, 0 = never
	creates int
}

func newMockEventStore() *mockEventStore {
	return &mockEventStore{nextID: seqIDs("ev-")}
}

func (m *mockEventStore) Get(id string) (event.Event, error) {
	for _, ev := range m.events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return event.Event{}, errors.Wrapf(agenda.ErrNotFound, "event %s", id)
}

func (m *mockEventStore) Create(_ context.Context, ev event.Event) (event.Event, error) {
	m.creates++
	if m.failAt != 0 && m.creates == m.failAt {
		return event.Event{}, errors.Wrap(agenda.ErrPersistence, "disk full")
	}
	if ev.ID == "" {
		ev.ID = m.nextID()
	}
	m.events = append(m.events, ev)
	return ev, nil
}

func (m *mockEventStore) Update(_ context.Context, ev event.Event) (event.Event, error) {
	for i := range m.events {
		if m.events[i].ID == ev.ID {
			m.events[i] = ev
			return ev, nil
		}
	}
	return event.Event{}, errors.Wrapf(agenda.ErrNotFound, "event %s", ev.ID)
}

func validDraft() event.Draft {
	return event.Draft{
		Title:          "Training",
		Type:           event.TypeTraining,
		SubType:        "tactique-B",
		Date:           "2024-07-23",
		StartTime:      "18:00",
		EndTime:        "19:30",
		AssignedGroups: []string{"gA"},
		CoachID:        "c1",
	}
}
