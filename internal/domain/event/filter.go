package event

import "academy/internal/domain/group"

// Selection is the calendar's group and subgroup filter.
// Empty lists place no constraint.
type Selection struct {
	Groups    []string `json:"groups"`
	Subgroups []string `json:"subgroups"`
}

// IsEmpty reports whether the selection constrains nothing.
func (s Selection) IsEmpty() bool {
	return len(s.Groups) == 0 && len(s.Subgroups) == 0
}

// Filter returns the events matching the selection, in input order.
// An event passes the group rule when it matches any selected group, and the
// subgroup rule when it matches any selected subgroup; both rules must pass.
// PRE: none
// POST: result is non-nil; input is not modified
func Filter(events []Event, sel Selection, dir *group.Directory) []Event {
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		if ev.MatchesSelection(sel, dir) {
			out = append(out, ev)
		}
	}
	return out
}

// MatchesSelection applies the AND of the group rule and the subgroup rule.
func (e *Event) MatchesSelection(sel Selection, dir *group.Directory) bool {
	if len(sel.Groups) > 0 {
		hit := false
		for _, g := range sel.Groups {
			if e.MatchesGroup(g, dir) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if len(sel.Subgroups) > 0 {
		hit := false
		for _, s := range sel.Subgroups {
			if e.MatchesSubgroup(s) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// MatchesGroup reports whether the event targets the selected group through any of
// its representations: an assigned group id, the legacy group id, or the legacy
// group display name of the selected group.
func (e *Event) MatchesGroup(selected string, dir *group.Directory) bool {
	if selected == "" {
		return false
	}
	if contains(e.AssignedGroups, selected) || e.GroupID == selected {
		return true
	}
	ref, ok := dir.Resolve(selected)
	if !ok {
		return e.GroupName == selected || e.Group == selected
	}
	if e.GroupID == ref.ID || (ref.Name != "" && (e.GroupName == ref.Name || e.Group == ref.Name)) {
		return true
	}
	for _, g := range e.AssignedGroups {
		if r, ok := dir.Resolve(g); ok && r.ID == ref.ID {
			return true
		}
	}
	return false
}

// MatchesSubgroup reports whether the event targets the named subgroup.
func (e *Event) MatchesSubgroup(name string) bool {
	if name == "" {
		return false
	}
	return contains(e.AssignedSubgroups, name) || e.Subgroup == name
}
