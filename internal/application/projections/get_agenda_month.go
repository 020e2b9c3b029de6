package projections

import (
	"context"
	"sort"
	"time"

	"academy/internal/domain/calendar"
	"academy/internal/domain/event"
)

// GetAgendaMonthQuery selects the month and the group/subgroup filter.
type GetAgendaMonthQuery struct {
	Month     string // YYYY-MM; empty means the current month
	Groups    []string
	Subgroups []string
	CoachID   string // optional: only events assigned to this coach
}

// GetAgendaMonthDeps holds dependencies for the projection.
type GetAgendaMonthDeps struct {
	Events   EventLister
	Roster   RosterSource
	Now      func() time.Time
	Location *time.Location // academy timezone used for "today"; nil means UTC
}

// AgendaMonthView is the month grid with navigation.
type AgendaMonthView struct {
	Month     string           `json:"month"`
	PrevMonth string           `json:"prevMonth"`
	NextMonth string           `json:"nextMonth"`
	Days      []calendar.Day   `json:"days"`
	Weeks     [][]calendar.Day `json:"-"`
	Selection event.Selection  `json:"selection"`
	Matched   int              `json:"matched"` // events passing the filter, in any month
}

// QueryGetAgendaMonth filters the events by the selection and lays the month out.
// Events within a day are ordered by start time.
// PRE: q.Month is empty or YYYY-MM
// POST: returns calendar.ErrInvalidMonth for a malformed month
func QueryGetAgendaMonth(_ context.Context, q GetAgendaMonthQuery, deps GetAgendaMonthDeps) (AgendaMonthView, error) {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	today := now().In(loc)

	ref := today
	if q.Month != "" {
		m, err := calendar.ParseMonth(q.Month)
		if err != nil {
			return AgendaMonthView{}, err
		}
		ref = m
	}

	sel := event.Selection{Groups: q.Groups, Subgroups: q.Subgroups}
	filtered := event.Filter(deps.Events.List(), sel, deps.Roster.Snapshot().Directory)
	if q.CoachID != "" {
		kept := filtered[:0]
		for _, ev := range filtered {
			if ev.CoachID == q.CoachID {
				kept = append(kept, ev)
			}
		}
		filtered = kept
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Date != filtered[j].Date {
			return filtered[i].Date < filtered[j].Date
		}
		return filtered[i].StartTime < filtered[j].StartTime
	})

	days := calendar.BuildMonth(ref, filtered, today)
	first := time.Date(ref.Year(), ref.Month(), 1, 12, 0, 0, 0, time.UTC)
	return AgendaMonthView{
		Month:     first.Format(calendar.MonthLayout),
		PrevMonth: first.AddDate(0, -1, 0).Format(calendar.MonthLayout),
		NextMonth: first.AddDate(0, 1, 0).Format(calendar.MonthLayout),
		Days:      days,
		Weeks:     calendar.Weeks(days),
		Selection: sel,
		Matched:   len(filtered),
	}, nil
}
