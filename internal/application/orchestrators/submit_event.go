package orchestrators

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"academy/internal/domain/event"
)

// EventWriter is the EventStore surface used by the form orchestrators.
type EventWriter interface {
	Get(id string) (event.Event, error)
	Create(ctx context.Context, ev event.Event) (event.Event, error)
	Update(ctx context.Context, ev event.Event) (event.Event, error)
}

// SubmitEventInput carries a filled-in event form.
type SubmitEventInput struct {
	Draft     event.Draft
	EditingID string // empty creates a new event
	ActorID   string // recorded as createdBy on new events
}

// SubmitEventDeps holds dependencies for SubmitEvent.
type SubmitEventDeps struct {
	Events EventWriter
	Roster RosterSource
	Log    *zap.Logger
}

// ExecuteSubmitEvent drives the event form through Open -> Submitting -> Closed and
// stores the result. Legacy single-group fields are folded into the assignment
// lists before the event is written.
// PRE: for edits, EditingID names a stored event
// POST: validation failures return *event.ValidationError and nothing is stored;
// an unknown EditingID returns an error wrapping agenda.ErrNotFound
func ExecuteSubmitEvent(ctx context.Context, input SubmitEventInput, deps SubmitEventDeps) (event.Event, error) {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	dir := deps.Roster.Snapshot().Directory
	form := event.NewForm(dir)

	if input.EditingID == "" {
		if err := form.OpenCreate(input.Draft.Date); err != nil {
			return event.Event{}, err
		}
	} else {
		existing, err := deps.Events.Get(input.EditingID)
		if err != nil {
			return event.Event{}, err
		}
		if err := form.OpenEdit(existing); err != nil {
			return event.Event{}, err
		}
	}

	// SetType first so Edit keeps the submitted subtype instead of resetting it.
	if err := form.SetType(input.Draft.Type); err != nil {
		return event.Event{}, err
	}
	err := form.Edit(func(d *event.Draft) {
		keep := *d
		*d = input.Draft
		if form.Mode() == event.ModeEdit {
			d.ID = keep.ID
			d.CreatedBy = keep.CreatedBy
			if d.Absences == nil {
				d.Absences = keep.Absences
			}
		} else {
			d.ID = ""
			if d.CreatedBy == "" {
				d.CreatedBy = input.ActorID
			}
		}
	})
	if err != nil {
		return event.Event{}, err
	}

	saved, err := form.Submit(func(ev event.Event) (event.Event, error) {
		ev = ev.Canonical(dir)
		if form.Mode() == event.ModeEdit {
			return deps.Events.Update(ctx, ev)
		}
		return deps.Events.Create(ctx, ev)
	})
	if err != nil {
		var verr *event.ValidationError
		if errors.As(err, &verr) {
			log.Info("event_form_rejected", zap.Any("fields", verr.Map()))
		}
		return event.Event{}, err
	}
	return saved, nil
}
