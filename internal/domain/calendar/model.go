package calendar

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"academy/internal/domain/event"
)

// MonthLayout is the layout of a month reference such as "2024-07".
const MonthLayout = "2006-01"

// ErrInvalidMonth is returned when a month reference cannot be parsed.
var ErrInvalidMonth = errors.New("month must be in YYYY-MM format")

// Day is one cell of the month grid. Recomputed on every build, never persisted.
type Day struct {
	Date           string        `json:"date"`
	IsCurrentMonth bool          `json:"isCurrentMonth"`
	IsToday        bool          `json:"isToday"`
	Events         []event.Event `json:"events"`
}

// ParseMonth parses a YYYY-MM month reference.
// PRE: none
// POST: returns the first day of the month at noon UTC
func ParseMonth(s string) (time.Time, error) {
	m, err := time.Parse(MonthLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrInvalidMonth, "parse %q", s)
	}
	return civil(m.Year(), m.Month(), 1), nil
}

// civil returns a calendar day anchored at noon UTC so day arithmetic never crosses
// a DST boundary.
func civil(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

// BuildMonth lays out the full weeks covering the month of ref, Sunday first.
// ref and today are read in their own location; only their calendar day is used.
// Events are placed by comparing their Date string to each cell's day string, so an
// event appears on at most one day and never shifts with a timezone offset.
// PRE: none
// POST: len(result) % 7 == 0; result[0] is a Sunday; the last day is a Saturday;
// every day of the month appears exactly once
func BuildMonth(ref time.Time, events []event.Event, today time.Time) []Day {
	first := civil(ref.Year(), ref.Month(), 1)
	last := first.AddDate(0, 1, -1)
	start := first.AddDate(0, 0, -int(first.Weekday()))
	end := last.AddDate(0, 0, int(time.Saturday-last.Weekday()))
	todayKey := today.Format(event.DateLayout)

	byDay := make(map[string][]event.Event)
	for _, ev := range events {
		key := strings.TrimSpace(ev.Date)
		byDay[key] = append(byDay[key], ev)
	}

	days := make([]Day, 0, 42)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(event.DateLayout)
		evs := byDay[key]
		if evs == nil {
			evs = []event.Event{}
		}
		days = append(days, Day{
			Date:           key,
			IsCurrentMonth: d.Month() == first.Month(),
			IsToday:        key == todayKey,
			Events:         evs,
		})
	}
	return days
}

// Weeks splits a grid into rows of seven days.
func Weeks(days []Day) [][]Day {
	weeks := make([][]Day, 0, len(days)/7)
	for i := 0; i+7 <= len(days); i += 7 {
		weeks = append(weeks, days[i:i+7])
	}
	return weeks
}
