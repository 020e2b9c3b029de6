package group

import (
	"fmt"

	"academy/internal/domain/roster"
)

// Derive builds the id-keyed group list from players.
// Players without a GroupID are excluded. The first occurrence wins for names,
// duplicate subgroup ids collapse to one entry, and output order is first appearance.
// PRE: none
// POST: deterministic for a given player order; subgroups slice is never nil
func Derive(players []roster.Player) []Group {
	groups := make([]Group, 0)
	index := make(map[string]int)

	for _, p := range players {
		if p.GroupID == "" {
			continue
		}
		i, ok := index[p.GroupID]
		if !ok {
			i = len(groups)
			index[p.GroupID] = i
			groups = append(groups, Group{ID: p.GroupID, Name: p.Group, Subgroups: []Subgroup{}})
		}
		if !p.HasSubgroup() {
			continue
		}
		subID := p.SubgroupID
		if subID == "" {
			subID = p.Subgroup
		}
		if !containsSubgroupID(groups[i].Subgroups, subID) {
			groups[i].Subgroups = append(groups[i].Subgroups, Subgroup{ID: subID, Name: p.Subgroup})
		}
	}
	return groups
}

// DeriveByName builds the display-name keyed group list from players, tagging
// each group with a rotating palette color by first-seen order.
// PRE: none
// POST: deterministic for a given player order
func DeriveByName(players []roster.Player) []NamedGroup {
	groups := make([]NamedGroup, 0)
	index := make(map[string]int)

	for _, p := range players {
		if p.Group == "" {
			continue
		}
		i, ok := index[p.Group]
		if !ok {
			i = len(groups)
			index[p.Group] = i
			groups = append(groups, NamedGroup{Name: p.Group, Color: ColorFor(i), Subgroups: []string{}})
		}
		if p.Subgroup != "" && !containsString(groups[i].Subgroups, p.Subgroup) {
			groups[i].Subgroups = append(groups[i].Subgroups, p.Subgroup)
		}
	}
	return groups
}

// Flatten produces one synthetic player per (group, subgroup) pair, and one per
// group without subgroups, such that Derive(Flatten(g)) reproduces g.
// PRE: groups have non-empty IDs
// POST: every returned player satisfies roster.Player.Validate
func Flatten(groups []Group) []roster.Player {
	var players []roster.Player
	for _, g := range groups {
		if len(g.Subgroups) == 0 {
			players = append(players, roster.Player{
				ID:      fmt.Sprintf("%s/-", g.ID),
				Name:    g.Name,
				GroupID: g.ID,
				Group:   g.Name,
			})
			continue
		}
		for _, s := range g.Subgroups {
			players = append(players, roster.Player{
				ID:         fmt.Sprintf("%s/%s", g.ID, s.ID),
				Name:       g.Name,
				GroupID:    g.ID,
				Group:      g.Name,
				SubgroupID: s.ID,
				Subgroup:   s.Name,
			})
		}
	}
	return players
}

// FlattenNamed is the inverse of DeriveByName for group and subgroup names.
func FlattenNamed(groups []NamedGroup) []roster.Player {
	var players []roster.Player
	for _, g := range groups {
		if len(g.Subgroups) == 0 {
			players = append(players, roster.Player{ID: g.Name + "/-", Name: g.Name, Group: g.Name})
			continue
		}
		for _, s := range g.Subgroups {
			players = append(players, roster.Player{ID: g.Name + "/" + s, Name: g.Name, Group: g.Name, Subgroup: s})
		}
	}
	return players
}

func containsSubgroupID(subs []Subgroup, id string) bool {
	for _, s := range subs {
		if s.ID == id {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
