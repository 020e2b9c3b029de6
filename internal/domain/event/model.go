package event

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Event type constants.
const (
	TypeTraining = "training"
	TypeMatch    = "match"
	TypeMeeting  = "meeting"
)

// Match subtype that carries a participant count.
const SubTypeTournament = "Tournament"

// DateLayout is the calendar-day layout of Event.Date.
const DateLayout = "2006-01-02"

// ClockLayout is the layout of Event.StartTime and Event.EndTime.
const ClockLayout = "15:04"

// Max length constants.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MaxLocationLength    = 200
)

// ValidTypes lists the event types in form display order.
var ValidTypes = []string{TypeTraining, TypeMatch, TypeMeeting}

// SubTypes is the legal subType vocabulary for each type. The first entry is the default.
var SubTypes = map[string][]string{
	TypeTraining: {
		"physique-A", "physique-B", "physique-C", "physique-D",
		"tactique-A", "tactique-B", "tactique-C", "tactique-D",
	},
	TypeMatch:   {"Friendly", "League", SubTypeTournament},
	TypeMeeting: {"General", "Staff", "Players"},
}

// Domain errors
var (
	ErrInvalidType = errors.New("event type must be one of: training, match, meeting")
	ErrInvalidDate = errors.New("event date must be a YYYY-MM-DD calendar day")
)

// Event is a scheduled training, match or meeting and its audience assignment.
// Group membership arrives in two shapes: AssignedGroups holds group ids (administration
// flow) while Group/GroupID/GroupName/Subgroup are the single-group fields written by
// the coach flow. Canonical folds both into AssignedGroups/AssignedSubgroups.
// INVARIANT: ID is unique within the canonical collection.
type Event struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Type              string   `json:"type"`
	SubType           string   `json:"subType"`
	Date              string   `json:"date"`
	StartTime         string   `json:"startTime"`
	EndTime           string   `json:"endTime"`
	Location          string   `json:"location,omitempty"`
	Description       string   `json:"description,omitempty"`
	AssignedGroups    []string `json:"assignedGroups"`
	AssignedSubgroups []string `json:"assignedSubgroups"`
	CoachID           string   `json:"coachId,omitempty"`
	Absences          []string `json:"absences"`
	CreatedBy         string   `json:"createdBy,omitempty"`
	Participants      int      `json:"participants,omitempty"`
	SeriesID          string   `json:"seriesId,omitempty"`
	Recurrence        string   `json:"recurrence,omitempty"` // RRULE the series was expanded from

	Group     string `json:"group,omitempty"`
	Subgroup  string `json:"subgroup,omitempty"`
	GroupID   string `json:"groupId,omitempty"`
	GroupName string `json:"groupName,omitempty"`
}

// DefaultSubType returns the subtype a form resets to when the type changes.
// PRE: none
// POST: returns "" for unknown types
func DefaultSubType(eventType string) string {
	subs := SubTypes[eventType]
	if len(subs) == 0 {
		return ""
	}
	return subs[0]
}

// IsValidType reports whether t is a known event type.
func IsValidType(t string) bool {
	_, ok := SubTypes[t]
	return ok
}

// IsValidSubType reports whether sub is legal for the event type.
func IsValidSubType(eventType, sub string) bool {
	for _, s := range SubTypes[eventType] {
		if s == sub {
			return true
		}
	}
	return false
}

// Validate checks the record-level invariants every stored event must hold.
// Form-level rules (required coach, assignment) live in ValidateDraft.
// PRE: none
// POST: returns nil if valid, error describing the first violation otherwise
func (e *Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return errors.New("event title cannot be empty")
	}
	if len(e.Title) > MaxTitleLength {
		return errors.New("event title cannot exceed 200 characters")
	}
	if !IsValidType(e.Type) {
		return ErrInvalidType
	}
	if _, err := e.Day(); err != nil {
		return err
	}
	if len(e.Description) > MaxDescriptionLength {
		return errors.New("event description cannot exceed 2000 characters")
	}
	if len(e.Location) > MaxLocationLength {
		return errors.New("event location cannot exceed 200 characters")
	}
	return nil
}

// Day parses the event's calendar day.
// PRE: none
// POST: returns ErrInvalidDate when Date is not YYYY-MM-DD
func (e *Event) Day() (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(e.Date))
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrInvalidDate, "event %s date %q", e.ID, e.Date)
	}
	return d, nil
}

// OnDay reports whether the event falls on the given calendar day string.
// Comparison is on the day string, never on a timestamp.
func (e *Event) OnDay(day string) bool {
	return strings.TrimSpace(e.Date) == day
}

// Clone returns a copy that shares no slices with e.
func (e Event) Clone() Event {
	e.AssignedGroups = cloneStrings(e.AssignedGroups)
	e.AssignedSubgroups = cloneStrings(e.AssignedSubgroups)
	e.Absences = cloneStrings(e.Absences)
	return e
}

// cloneStrings copies s, keeping nil and empty apart.
func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || contains(list, v) {
			continue
		}
		list = append(list, v)
	}
	return list
}

func remove(list []string, values ...string) []string {
	out := list[:0:0]
	for _, v := range list {
		if !contains(values, v) {
			out = append(out, v)
		}
	}
	return out
}
