package orchestrators

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"academy/internal/domain/event"
)

// MaxSeriesOccurrences caps how many events one recurrence rule may create.
const MaxSeriesOccurrences = 200

// Series errors
var (
	ErrInvalidRecurrence = errors.New("recurrence rule is invalid")
	ErrEmptySeries       = errors.New("recurrence rule yields no occurrences")
)

// EventCreator is the EventStore surface used to create series events.
type EventCreator interface {
	Create(ctx context.Context, ev event.Event) (event.Event, error)
}

// CreateSeriesInput carries a draft and the RRULE repeating it.
type CreateSeriesInput struct {
	Draft      event.Draft // Date is the first occurrence
	Recurrence string      // e.g. FREQ=WEEKLY;COUNT=8 with or without the RRULE: prefix
	ActorID    string
}

// CreateSeriesDeps holds dependencies for CreateSeries.
type CreateSeriesDeps struct {
	Events     EventCreator
	Roster     RosterSource
	GenerateID func() string
	Log        *zap.Logger
}

// ExpandRecurrence returns the calendar days produced by rule starting at first.
// PRE: first is a YYYY-MM-DD day
// POST: at most limit days, ascending; truncated reports whether the rule had more
func ExpandRecurrence(first, rule string, limit int) (days []string, truncated bool, err error) {
	start, err := time.Parse(event.DateLayout, strings.TrimSpace(first))
	if err != nil {
		return nil, false, errors.Wrapf(event.ErrInvalidDate, "series start %q", first)
	}
	rule = strings.TrimPrefix(strings.TrimSpace(rule), "RRULE:")
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, false, errors.Wrapf(ErrInvalidRecurrence, "%q: %v", rule, err)
	}
	// Noon UTC keeps every occurrence on its calendar day.
	r.DTStart(start.Add(12 * time.Hour))

	next := r.Iterator()
	for {
		t, ok := next()
		if !ok {
			return days, false, nil
		}
		if len(days) == limit {
			return days, true, nil
		}
		days = append(days, t.Format(event.DateLayout))
	}
}

// ExecuteCreateSeries validates the draft once and creates one event per occurrence,
// all sharing a series id. Each event goes through the store, so each notifies.
// PRE: input.Recurrence is an RFC 5545 RRULE
// POST: on a mid-series failure the events created so far are returned with the error
func ExecuteCreateSeries(ctx context.Context, input CreateSeriesInput, deps CreateSeriesDeps) ([]event.Event, error) {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	if err := event.ValidateDraft(input.Draft); err != nil {
		return nil, err
	}
	days, truncated, err := ExpandRecurrence(input.Draft.Date, input.Recurrence, MaxSeriesOccurrences)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, ErrEmptySeries
	}
	if truncated {
		log.Warn("series_truncated", zap.String("rule", input.Recurrence), zap.Int("limit", MaxSeriesOccurrences))
	}

	dir := deps.Roster.Snapshot().Directory
	base := event.Normalize(input.Draft).Canonical(dir)
	base.ID = ""
	base.SeriesID = deps.GenerateID()
	base.Recurrence = strings.TrimPrefix(strings.TrimSpace(input.Recurrence), "RRULE:")
	if base.CreatedBy == "" {
		base.CreatedBy = input.ActorID
	}

	created := make([]event.Event, 0, len(days))
	for _, day := range days {
		ev := base.Clone()
		ev.Date = day
		saved, err := deps.Events.Create(ctx, ev)
		if err != nil {
			return created, errors.Wrapf(err, "create series occurrence %s", day)
		}
		created = append(created, saved)
	}
	log.Info("series_created", zap.String("series_id", base.SeriesID), zap.Int("count", len(created)))
	return created, nil
}
