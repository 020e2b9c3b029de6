package event

import (
	"strings"

	"github.com/pkg/errors"

	"academy/internal/domain/group"
)

// Draft is the editable content of the event form.
type Draft struct {
	ID                string   `json:"id"`
	Title             string   `json:"title" validate:"notblank,max=200"`
	Type              string   `json:"type" validate:"notblank,oneof=training match meeting"`
	SubType           string   `json:"subType"`
	Date              string   `json:"date" validate:"notblank,datestr"`
	StartTime         string   `json:"startTime" validate:"notblank,clock"`
	EndTime           string   `json:"endTime" validate:"notblank,clock"`
	Location          string   `json:"location" validate:"max=200"`
	Description       string   `json:"description" validate:"max=2000"`
	AssignedGroups    []string `json:"assignedGroups"`
	AssignedSubgroups []string `json:"assignedSubgroups"`
	CoachID           string   `json:"coachId" validate:"notblank"`
	Absences          []string `json:"absences"`
	CreatedBy         string   `json:"createdBy"`
	Participants      int      `json:"participants" validate:"min=0"`

	Group     string `json:"group"`
	Subgroup  string `json:"subgroup"`
	GroupID   string `json:"groupId"`
	GroupName string `json:"groupName"`
}

// DraftFrom loads an existing event into an editable draft.
func DraftFrom(ev Event) Draft {
	ev = ev.Clone()
	return Draft{
		ID:                ev.ID,
		Title:             ev.Title,
		Type:              ev.Type,
		SubType:           ev.SubType,
		Date:              ev.Date,
		StartTime:         ev.StartTime,
		EndTime:           ev.EndTime,
		Location:          ev.Location,
		Description:       ev.Description,
		AssignedGroups:    ev.AssignedGroups,
		AssignedSubgroups: ev.AssignedSubgroups,
		CoachID:           ev.CoachID,
		Absences:          ev.Absences,
		CreatedBy:         ev.CreatedBy,
		Participants:      ev.Participants,
		Group:             ev.Group,
		Subgroup:          ev.Subgroup,
		GroupID:           ev.GroupID,
		GroupName:         ev.GroupName,
	}
}

func (d Draft) event() Event {
	return Event{
		ID:                d.ID,
		Title:             d.Title,
		Type:              d.Type,
		SubType:           d.SubType,
		Date:              d.Date,
		StartTime:         d.StartTime,
		EndTime:           d.EndTime,
		Location:          d.Location,
		Description:       d.Description,
		AssignedGroups:    d.AssignedGroups,
		AssignedSubgroups: d.AssignedSubgroups,
		CoachID:           d.CoachID,
		Absences:          d.Absences,
		CreatedBy:         d.CreatedBy,
		Participants:      d.Participants,
		Group:             d.Group,
		Subgroup:          d.Subgroup,
		GroupID:           d.GroupID,
		GroupName:         d.GroupName,
	}
}

// Normalize turns a validated draft into the event that is persisted.
// Text fields are trimmed, an empty subtype takes the type default and
// assignment lists are de-duplicated in order.
// PRE: ValidateDraft(d) == nil
// POST: slices in the result are non-nil and not shared with d
func Normalize(d Draft) Event {
	ev := d.event()
	ev.Title = strings.TrimSpace(ev.Title)
	ev.Location = strings.TrimSpace(ev.Location)
	ev.Description = strings.TrimSpace(ev.Description)
	ev.Date = strings.TrimSpace(ev.Date)
	ev.StartTime = strings.TrimSpace(ev.StartTime)
	ev.EndTime = strings.TrimSpace(ev.EndTime)
	if ev.SubType == "" {
		ev.SubType = DefaultSubType(ev.Type)
	}
	if ev.Type != TypeMatch || ev.SubType != SubTypeTournament {
		ev.Participants = 0
	}
	ev.AssignedGroups = appendUnique([]string{}, d.AssignedGroups...)
	ev.AssignedSubgroups = appendUnique([]string{}, d.AssignedSubgroups...)
	ev.Absences = appendUnique([]string{}, d.Absences...)
	return ev
}

// FormState is the lifecycle state of the event form.
type FormState int

// Form states.
const (
	FormClosed FormState = iota
	FormOpen
	FormSubmitting
)

func (s FormState) String() string {
	switch s {
	case FormOpen:
		return "open"
	case FormSubmitting:
		return "submitting"
	default:
		return "closed"
	}
}

// FormMode distinguishes creating a new event from editing an existing one.
type FormMode string

// Form modes.
const (
	ModeCreate FormMode = "create"
	ModeEdit   FormMode = "edit"
)

// Form errors
var (
	ErrFormClosed = errors.New("event form is not open")
	ErrFormOpen   = errors.New("event form is already open")
	ErrFormBusy   = errors.New("event form is submitting")
)

// SaveFunc persists a normalized event and returns the stored record.
type SaveFunc func(Event) (Event, error)

// Form is the create/edit form state machine: Closed -> Open -> Submitting -> Closed,
// falling back to Open with field errors when validation or the save fails.
// A form is not safe for concurrent use.
type Form struct {
	state  FormState
	mode   FormMode
	draft  Draft
	errors map[string]string
	dir    *group.Directory
}

// NewForm returns a closed form. dir is used to strip a group's subgroups when the
// group is deselected.
func NewForm(dir *group.Directory) *Form {
	return &Form{dir: dir, errors: map[string]string{}}
}

// State returns the current lifecycle state.
func (f *Form) State() FormState { return f.state }

// Mode returns the mode of the open form.
func (f *Form) Mode() FormMode { return f.mode }

// Draft returns a copy of the current draft.
func (f *Form) Draft() Draft {
	d := f.draft
	d.AssignedGroups = append([]string(nil), d.AssignedGroups...)
	d.AssignedSubgroups = append([]string(nil), d.AssignedSubgroups...)
	d.Absences = append([]string(nil), d.Absences...)
	return d
}

// Errors returns the field errors of the last failed submit.
func (f *Form) Errors() map[string]string {
	out := make(map[string]string, len(f.errors))
	for k, v := range f.errors {
		out[k] = v
	}
	return out
}

// OpenCreate opens an empty training draft on the given day.
// PRE: State() == FormClosed
func (f *Form) OpenCreate(date string) error {
	if f.state != FormClosed {
		return ErrFormOpen
	}
	f.open(ModeCreate, Draft{
		Type:    TypeTraining,
		SubType: DefaultSubType(TypeTraining),
		Date:    date,
	})
	return nil
}

// OpenEdit opens the form on an existing event.
// PRE: State() == FormClosed
func (f *Form) OpenEdit(ev Event) error {
	if f.state != FormClosed {
		return ErrFormOpen
	}
	f.open(ModeEdit, DraftFrom(ev))
	return nil
}

func (f *Form) open(mode FormMode, d Draft) {
	f.state = FormOpen
	f.mode = mode
	f.draft = d
	f.errors = map[string]string{}
}

// Cancel closes the form and discards the draft.
func (f *Form) Cancel() error {
	if f.state == FormSubmitting {
		return ErrFormBusy
	}
	f.state = FormClosed
	f.draft = Draft{}
	f.errors = map[string]string{}
	return nil
}

func (f *Form) editable() error {
	switch f.state {
	case FormOpen:
		return nil
	case FormSubmitting:
		return ErrFormBusy
	default:
		return ErrFormClosed
	}
}

// Edit applies fn to the draft. Type changes must go through SetType.
func (f *Form) Edit(fn func(*Draft)) error {
	if err := f.editable(); err != nil {
		return err
	}
	t, sub := f.draft.Type, f.draft.SubType
	fn(&f.draft)
	if f.draft.Type != t {
		f.draft.SubType = DefaultSubType(f.draft.Type)
	} else if f.draft.SubType == "" {
		f.draft.SubType = sub
	}
	return nil
}

// SetType changes the event type and resets the subtype to the type's default.
// POST: Draft().SubType == DefaultSubType(t)
func (f *Form) SetType(t string) error {
	if err := f.editable(); err != nil {
		return err
	}
	f.draft.Type = t
	f.draft.SubType = DefaultSubType(t)
	return nil
}

// ToggleGroup selects or deselects a group. Deselecting a group also deselects
// every subgroup that belongs to it.
func (f *Form) ToggleGroup(groupID string) error {
	if err := f.editable(); err != nil {
		return err
	}
	if contains(f.draft.AssignedGroups, groupID) {
		f.draft.AssignedGroups = remove(f.draft.AssignedGroups, groupID)
		f.draft.AssignedSubgroups = remove(f.draft.AssignedSubgroups, f.dir.SubgroupNames(groupID)...)
		return nil
	}
	f.draft.AssignedGroups = appendUnique(f.draft.AssignedGroups, groupID)
	return nil
}

// ToggleSubgroup selects or deselects a subgroup by name.
func (f *Form) ToggleSubgroup(name string) error {
	if err := f.editable(); err != nil {
		return err
	}
	if contains(f.draft.AssignedSubgroups, name) {
		f.draft.AssignedSubgroups = remove(f.draft.AssignedSubgroups, name)
		return nil
	}
	f.draft.AssignedSubgroups = appendUnique(f.draft.AssignedSubgroups, name)
	return nil
}

// Submit validates the draft and hands the normalized event to save.
// A validation failure returns a *ValidationError without calling save.
// A save failure keeps the draft so the user can retry.
// PRE: State() == FormOpen
// POST: on success State() == FormClosed; on failure State() == FormOpen
func (f *Form) Submit(save SaveFunc) (Event, error) {
	if err := f.editable(); err != nil {
		return Event{}, err
	}
	if err := ValidateDraft(f.draft); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			f.errors = verr.Map()
		}
		return Event{}, err
	}
	f.errors = map[string]string{}
	f.state = FormSubmitting
	saved, err := save(Normalize(f.draft))
	if err != nil {
		f.state = FormOpen
		return Event{}, err
	}
	f.state = FormClosed
	f.draft = Draft{}
	return saved, nil
}
