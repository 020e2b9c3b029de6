package projections

import (
	"context"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"academy/internal/domain/event"
)

// ExportAgendaICSQuery selects the events to export.
type ExportAgendaICSQuery struct {
	Groups    []string
	Subgroups []string
	From      string // optional YYYY-MM-DD lower bound, inclusive
	To        string // optional YYYY-MM-DD upper bound, inclusive
}

// ExportAgendaICSDeps holds dependencies for the projection.
type ExportAgendaICSDeps struct {
	Events   EventLister
	Roster   RosterSource
	Location *time.Location // timezone the wall-clock times are read in
	Now      func() time.Time
	Log      *zap.Logger
}

// QueryExportAgendaICS renders the filtered agenda as an iCalendar document.
// Events whose date or times do not parse are skipped and logged.
// PRE: none
// POST: returns a VCALENDAR with one VEVENT per exported event
func QueryExportAgendaICS(_ context.Context, q ExportAgendaICSQuery, deps ExportAgendaICSDeps) (string, error) {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	sel := event.Selection{Groups: q.Groups, Subgroups: q.Subgroups}
	events := event.Filter(deps.Events.List(), sel, deps.Roster.Snapshot().Directory)

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//academy//agenda//EN")
	cal.SetXWRCalName("Academy agenda")
	cal.SetXWRTimezone(loc.String())

	stamp := now()
	for _, ev := range events {
		if (q.From != "" && ev.Date < q.From) || (q.To != "" && ev.Date > q.To) {
			continue
		}
		start, end, err := eventSpan(ev, loc)
		if err != nil {
			log.Warn("ics_event_skipped", zap.String("event_id", ev.ID), zap.Error(err))
			continue
		}
		ve := cal.AddEvent(ev.ID + "@academy")
		ve.SetDtStampTime(stamp)
		ve.SetStartAt(start)
		ve.SetEndAt(end)
		ve.SetSummary(ev.Title)
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		ve.AddCategory(ev.Type)
		if ev.SubType != "" {
			ve.AddCategory(ev.SubType)
		}
	}
	return cal.Serialize(), nil
}

// eventSpan reads the event's day and wall-clock times in loc. An end before the
// start, accepted on older records, is treated as a zero-length event.
func eventSpan(ev event.Event, loc *time.Location) (time.Time, time.Time, error) {
	start, err := wallClock(ev.Date, ev.StartTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := wallClock(ev.Date, ev.EndTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		end = start
	}
	return start, end, nil
}

func wallClock(day, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(event.DateLayout+" "+event.ClockLayout, strings.TrimSpace(day)+" "+strings.TrimSpace(clock), loc)
	return t, errors.Wrapf(err, "parse %s %s", day, clock)
}
