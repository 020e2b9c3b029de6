package event

import (
	"strings"

	"academy/internal/domain/group"
	"academy/internal/domain/roster"
)

// Canonical folds the coach-flow single-group fields into AssignedGroups and
// AssignedSubgroups, resolving names to canonical group ids through dir.
// Legacy fields are kept so records round-trip unchanged for older readers.
// PRE: none (nil dir keeps unresolved names as-is)
// POST: returned event shares no slices with e
func (e Event) Canonical(dir *group.Directory) Event {
	out := e.Clone()
	for _, key := range []string{e.GroupID, e.GroupName, e.Group} {
		if key == "" {
			continue
		}
		if ref, ok := dir.Resolve(key); ok {
			out.AssignedGroups = appendUnique(out.AssignedGroups, ref.ID)
		} else {
			out.AssignedGroups = appendUnique(out.AssignedGroups, key)
		}
		break
	}
	out.AssignedSubgroups = appendUnique(out.AssignedSubgroups, e.Subgroup)
	if out.AssignedGroups == nil {
		out.AssignedGroups = []string{}
	}
	if out.AssignedSubgroups == nil {
		out.AssignedSubgroups = []string{}
	}
	if out.Absences == nil {
		out.Absences = []string{}
	}
	return out
}

// HasAssignment reports whether the event targets at least one group or subgroup
// in either representation. Blank entries do not count.
func (e *Event) HasAssignment() bool {
	return hasNonBlank(e.AssignedGroups) || hasNonBlank(e.AssignedSubgroups) ||
		hasNonBlank([]string{e.Group, e.GroupID, e.GroupName, e.Subgroup})
}

// Includes reports whether the player is in the event's audience.
// The single-group fields select the players of that group, narrowed to
// Subgroup when one is set. The assignment lists add every player of an
// assigned group unless an assigned subgroup belongs to that group, in which
// case only that group's assigned subgroups are included. An assigned
// subgroup that no assigned group owns selects its members directly.
// PRE: none
// POST: pure; does not consult absences
func (e Event) Includes(p roster.Player, dir *group.Directory) bool {
	ref, ok := dir.PlayerRef(p)
	if !ok {
		ref = group.Ref{ID: p.GroupID, Name: p.Group}
		if ref.ID == "" {
			ref.ID = p.Group
		}
	}
	inGroup := p.InGroup()

	groups, subgroups := e.AssignedGroups, e.AssignedSubgroups
	if legacy, ok := e.legacyGroup(dir); ok {
		if inGroup && sameGroup(ref, legacy) && (e.Subgroup == "" || p.Subgroup == e.Subgroup) {
			return true
		}
		// Canonical copies the single-group fields into the lists; drop them
		// so the legacy subgroup does not leak into other groups.
		groups = dropGroup(groups, legacy, dir)
		subgroups = remove(subgroups, e.Subgroup)
	} else {
		subgroups = appendUnique(cloneStrings(subgroups), e.Subgroup)
	}
	return includesAssigned(p, ref, inGroup, groups, subgroups, dir)
}

// legacyGroup resolves the first non-empty single-group field.
func (e *Event) legacyGroup(dir *group.Directory) (group.Ref, bool) {
	for _, key := range []string{e.GroupID, e.GroupName, e.Group} {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if ref, ok := dir.Resolve(key); ok {
			return ref, true
		}
		return group.Ref{ID: key, Name: key}, true
	}
	return group.Ref{}, false
}

func includesAssigned(p roster.Player, ref group.Ref, inGroup bool, groups, subgroups []string, dir *group.Directory) bool {
	if inGroup && assignsGroup(groups, ref, dir) {
		own := dir.SubgroupNames(ref.ID)
		narrowed := false
		for _, s := range subgroups {
			if contains(own, s) {
				narrowed = true
				break
			}
		}
		return !narrowed || (p.Subgroup != "" && contains(subgroups, p.Subgroup))
	}
	if p.Subgroup == "" || !contains(subgroups, p.Subgroup) {
		return false
	}
	// A subgroup name owned by an assigned group narrows that group only.
	for _, g := range groups {
		key := g
		if r, ok := dir.Resolve(g); ok {
			key = r.ID
		}
		if contains(dir.SubgroupNames(key), p.Subgroup) {
			return false
		}
	}
	return true
}

func assignsGroup(groups []string, ref group.Ref, dir *group.Directory) bool {
	for _, g := range groups {
		if g == "" {
			continue
		}
		if g == ref.ID || (ref.Name != "" && g == ref.Name) {
			return true
		}
		if r, ok := dir.Resolve(g); ok && r.ID == ref.ID {
			return true
		}
	}
	return false
}

func sameGroup(a, b group.Ref) bool {
	return (a.ID != "" && a.ID == b.ID) || (a.Name != "" && a.Name == b.Name)
}

func dropGroup(groups []string, legacy group.Ref, dir *group.Directory) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		if g == legacy.ID || g == legacy.Name {
			continue
		}
		if r, ok := dir.Resolve(g); ok && r.ID == legacy.ID {
			continue
		}
		out = append(out, g)
	}
	return out
}

func hasNonBlank(list []string) bool {
	for _, s := range list {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}
