package projections

import (
	"academy/internal/domain/group"
)

// GroupsView lists the groups derived from the current roster in both shapes.
type GroupsView struct {
	ByID   []group.Group      `json:"byId,omitempty"`
	ByName []group.NamedGroup `json:"byName,omitempty"`
}

// GetGroupsDeps holds dependencies for the projection.
type GetGroupsDeps struct {
	Roster RosterSource
}

// QueryGetGroups derives groups from the roster snapshot. byName selects the
// display-name keyed variant with palette colors used by the coach agenda.
// POST: exactly one of ByID/ByName is set; never nil
func QueryGetGroups(byName bool, deps GetGroupsDeps) GroupsView {
	snap := deps.Roster.Snapshot()
	if byName {
		return GroupsView{ByName: group.DeriveByName(snap.Players)}
	}
	if snap.Groups != nil {
		return GroupsView{ByID: snap.Groups}
	}
	return GroupsView{ByID: group.Derive(snap.Players)}
}
