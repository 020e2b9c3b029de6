package agenda

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"academy/internal/adapters/storage/kv"
	"academy/internal/domain/event"
)

// Store errors
var (
	ErrNotFound     = errors.New("event not found")
	ErrDuplicateID  = errors.New("event id already exists")
	ErrPersistence  = errors.New("event collection could not be persisted")
	ErrClosed       = errors.New("event store is closed")
	ErrInvalidEvent = errors.New("event cannot be stored")
)

// Dispatcher is told about every created or updated event.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev event.Event) error
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(ctx context.Context, ev event.Event) error

// Dispatch calls f.
func (f DispatchFunc) Dispatch(ctx context.Context, ev event.Event) error { return f(ctx, ev) }

// EventStoreDeps holds dependencies for an EventStore.
type EventStoreDeps struct {
	KV         kv.Store
	Dispatcher Dispatcher // optional
	GenerateID func() string
	Log        *zap.Logger
}

// EventStore owns the canonical event collection of one context. Every mutation
// rewrites the whole "events" blob; writes from other contexts replace the local
// collection when their change signal arrives or when Refresh polls.
// INVARIANT: no two events in the collection share an ID.
type EventStore struct {
	mu      sync.RWMutex
	kv      kv.Store
	events  []event.Event
	version int64
	closed  bool
	cancel  func()

	watchMu  sync.Mutex
	watchers map[int]func([]event.Event)
	nextW    int

	dispatcher Dispatcher
	generateID func() string
	log        *zap.Logger
}

// NewEventStore loads the collection and subscribes to writes from other contexts.
// PRE: deps.KV is non-nil
// POST: List() reflects the stored blob; a missing blob is an empty collection
func NewEventStore(ctx context.Context, deps EventStoreDeps) (*EventStore, error) {
	if deps.KV == nil {
		return nil, errors.New("event store requires a kv store")
	}
	s := &EventStore{
		kv:         deps.KV,
		dispatcher: deps.Dispatcher,
		generateID: deps.GenerateID,
		log:        deps.Log,
		watchers:   map[int]func([]event.Event){},
	}
	if s.generateID == nil {
		s.generateID = uuid.NewString
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if _, err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	s.cancel = s.kv.Subscribe(kv.KeyEvents, s.onChange)
	return s, nil
}

// Close stops listening for change signals.
func (s *EventStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
}

// List returns a copy of the collection in stored order.
func (s *EventStore) List() []event.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.events)
}

// Get returns the event with the given id.
// POST: returns ErrNotFound if absent
func (s *EventStore) Get(id string) (event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.events[i].Clone(), nil
	}
	return event.Event{}, errors.Wrapf(ErrNotFound, "event %s", id)
}

// Version is the blob version the collection was last loaded from or written as.
func (s *EventStore) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Create appends ev, persists the collection and dispatches notifications.
// PRE: none
// POST: events failing Storable are rejected with ErrInvalidEvent;
// ev has an ID and is the last element of List(); on persistence failure
// the collection is unchanged and the error wraps ErrPersistence
func (s *EventStore) Create(ctx context.Context, ev event.Event) (event.Event, error) {
	ev = ev.Clone()
	if err := Storable(&ev); err != nil {
		return event.Event{}, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return event.Event{}, ErrClosed
	}
	if ev.ID == "" {
		ev.ID = s.generateID()
	}
	if s.indexOf(ev.ID) >= 0 {
		s.mu.Unlock()
		return event.Event{}, errors.Wrapf(ErrDuplicateID, "event %s", ev.ID)
	}
	prev := s.events
	next := make([]event.Event, 0, len(prev)+1)
	next = append(append(next, prev...), ev)
	if err := s.commit(ctx, prev, next); err != nil {
		s.mu.Unlock()
		return event.Event{}, err
	}
	s.mu.Unlock()

	s.log.Info("event_created", zap.String("event_id", ev.ID), zap.String("type", ev.Type), zap.String("date", ev.Date))
	s.notifyWatchers()
	s.dispatch(ctx, ev)
	return ev.Clone(), nil
}

// Update replaces the event with the same ID in place and re-dispatches
// notifications to the current audience.
// PRE: ev.ID is non-empty
// POST: returns ErrInvalidEvent like Create; returns ErrNotFound if no event has ev.ID; position in List() is kept
func (s *EventStore) Update(ctx context.Context, ev event.Event) (event.Event, error) {
	ev = ev.Clone()
	if err := Storable(&ev); err != nil {
		return event.Event{}, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return event.Event{}, ErrClosed
	}
	i := s.indexOf(ev.ID)
	if i < 0 {
		s.mu.Unlock()
		return event.Event{}, errors.Wrapf(ErrNotFound, "event %s", ev.ID)
	}
	prev := s.events
	next := cloneAll(prev)
	next[i] = ev
	if err := s.commit(ctx, prev, next); err != nil {
		s.mu.Unlock()
		return event.Event{}, err
	}
	s.mu.Unlock()

	s.log.Info("event_updated", zap.String("event_id", ev.ID))
	s.notifyWatchers()
	s.dispatch(ctx, ev)
	return ev.Clone(), nil
}

// Storable checks the rules every stored event holds, whatever path wrote it:
// the record invariants, a non-blank coach and at least one non-blank assignment.
func Storable(ev *event.Event) error {
	if err := ev.Validate(); err != nil {
		return errors.Wrapf(ErrInvalidEvent, "event %s: %v", ev.ID, err)
	}
	if strings.TrimSpace(ev.CoachID) == "" {
		return errors.Wrapf(ErrInvalidEvent, "event %s: coach is required", ev.ID)
	}
	if !ev.HasAssignment() {
		return errors.Wrapf(ErrInvalidEvent, "event %s: no group or subgroup assigned", ev.ID)
	}
	return nil
}

// Delete removes the event with the given id. No notification is sent.
// POST: returns ErrNotFound if absent
func (s *EventStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return errors.Wrapf(ErrNotFound, "event %s", id)
	}
	prev := s.events
	next := make([]event.Event, 0, len(prev)-1)
	next = append(append(next, prev[:i]...), prev[i+1:]...)
	if err := s.commit(ctx, prev, next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.log.Info("event_deleted", zap.String("event_id", id))
	s.notifyWatchers()
	return nil
}

// Refresh re-reads the blob when its version differs from the loaded one.
// Used as the poll fallback for contexts that missed a change signal.
// POST: changed reports whether the collection was replaced
func (s *EventStore) Refresh(ctx context.Context) (changed bool, err error) {
	version, err := s.kv.Version(ctx, kv.KeyEvents)
	if err != nil {
		return false, errors.Wrap(err, "read events version")
	}
	s.mu.RLock()
	current := s.version
	loaded := s.events != nil
	s.mu.RUnlock()
	if loaded && version == current {
		return false, nil
	}

	blob, err := s.kv.Get(ctx, kv.KeyEvents)
	if errors.Is(err, kv.ErrNotFound) {
		blob = kv.Blob{Key: kv.KeyEvents}
	} else if err != nil {
		return false, errors.Wrap(err, "read events")
	}
	return s.replace(blob.Value, blob.Version, "poll")
}

// Watch registers fn to be called with the new collection after every change,
// local or remote.
// POST: the returned func removes the watcher
func (s *EventStore) Watch(fn func([]event.Event)) (cancel func()) {
	s.watchMu.Lock()
	id := s.nextW
	s.nextW++
	s.watchers[id] = fn
	s.watchMu.Unlock()
	return func() {
		s.watchMu.Lock()
		delete(s.watchers, id)
		s.watchMu.Unlock()
	}
}

func (s *EventStore) onChange(c kv.Change) {
	if _, err := s.replace(c.Value, c.Version, "signal"); err != nil {
		s.log.Warn("event_change_ignored", zap.Error(err), zap.String("origin", c.Origin))
	}
}

// replace swaps in a collection read from storage unless it is older than the
// loaded one.
func (s *EventStore) replace(value []byte, version int64, source string) (bool, error) {
	events, err := decode(value)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	if s.events != nil && version <= s.version {
		s.mu.Unlock()
		return false, nil
	}
	s.events = events
	s.version = version
	s.mu.Unlock()

	s.log.Debug("events_reloaded", zap.String("source", source), zap.Int64("version", version), zap.Int("count", len(events)))
	s.notifyWatchers()
	return true, nil
}

// commit persists next and installs it, or leaves prev in place on failure.
// PRE: s.mu is held for writing
func (s *EventStore) commit(ctx context.Context, prev, next []event.Event) error {
	data, err := json.Marshal(next)
	if err != nil {
		s.events = prev
		return errors.Wrapf(ErrPersistence, "encode events: %v", err)
	}
	version, err := s.kv.Set(ctx, kv.KeyEvents, data)
	if err != nil {
		s.events = prev
		s.log.Error("events_persist_failed", zap.Error(err))
		return errors.Wrapf(ErrPersistence, "write events: %v", err)
	}
	s.events = next
	s.version = version
	return nil
}

func (s *EventStore) dispatch(ctx context.Context, ev event.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Dispatch(ctx, ev); err != nil {
		s.log.Warn("notification_dispatch_failed", zap.String("event_id", ev.ID), zap.Error(err))
	}
}

func (s *EventStore) notifyWatchers() {
	s.watchMu.Lock()
	fns := make([]func([]event.Event), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.watchMu.Unlock()
	if len(fns) == 0 {
		return
	}
	snapshot := s.List()
	for _, fn := range fns {
		fn(snapshot)
	}
}

// indexOf returns the position of id or -1.
// PRE: s.mu is held
func (s *EventStore) indexOf(id string) int {
	for i := range s.events {
		if s.events[i].ID == id {
			return i
		}
	}
	return -1
}

func decode(value []byte) ([]event.Event, error) {
	events := []event.Event{}
	if len(value) == 0 {
		return events, nil
	}
	if err := json.Unmarshal(value, &events); err != nil {
		return nil, errors.Wrap(err, "decode events")
	}
	if events == nil {
		events = []event.Event{}
	}
	return events, nil
}

func cloneAll(events []event.Event) []event.Event {
	out := make([]event.Event, len(events))
	for i, ev := range events {
		out[i] = ev.Clone()
	}
	return out
}
