package group

import "academy/internal/domain/roster"

// Directory translates the two group representations found in event and player
// records (group id from the administration flow, display name from the coach flow)
// into one canonical Ref.
type Directory struct {
	refs      []Ref
	byID      map[string]int
	byName    map[string]int
	subgroups map[string][]string // canonical group ID -> subgroup names
}

// NewDirectory indexes every group and subgroup reachable from the players.
// Id-bearing players are indexed first so a name-only player whose group name
// matches an id-keyed group resolves to that group rather than a duplicate.
// PRE: none
// POST: Resolve succeeds for every group id and group name present in players
func NewDirectory(players []roster.Player) *Directory {
	d := &Directory{
		byID:      make(map[string]int),
		byName:    make(map[string]int),
		subgroups: make(map[string][]string),
	}
	for _, p := range players {
		if p.GroupID == "" {
			continue
		}
		i := d.ensureID(p.GroupID, p.Group)
		d.addSubgroup(d.refs[i].ID, p.Subgroup)
	}
	for _, p := range players {
		if p.GroupID != "" || p.Group == "" {
			continue
		}
		i, ok := d.byName[p.Group]
		if !ok {
			i = d.ensureID(p.Group, p.Group)
		}
		d.addSubgroup(d.refs[i].ID, p.Subgroup)
	}
	return d
}

func (d *Directory) ensureID(id, name string) int {
	if i, ok := d.byID[id]; ok {
		return i
	}
	i := len(d.refs)
	d.refs = append(d.refs, Ref{ID: id, Name: name})
	d.byID[id] = i
	if name != "" {
		if _, taken := d.byName[name]; !taken {
			d.byName[name] = i
		}
	}
	return i
}

func (d *Directory) addSubgroup(groupID, name string) {
	if name == "" {
		return
	}
	for _, s := range d.subgroups[groupID] {
		if s == name {
			return
		}
	}
	d.subgroups[groupID] = append(d.subgroups[groupID], name)
}

// Resolve maps a group id or display name to its canonical Ref. Ids take precedence.
// PRE: none (nil directory resolves nothing)
// POST: ok is false for unknown keys
func (d *Directory) Resolve(key string) (Ref, bool) {
	if d == nil || key == "" {
		return Ref{}, false
	}
	if i, ok := d.byID[key]; ok {
		return d.refs[i], true
	}
	if i, ok := d.byName[key]; ok {
		return d.refs[i], true
	}
	return Ref{}, false
}

// Groups returns every known group in first-seen order.
func (d *Directory) Groups() []Ref {
	if d == nil {
		return nil
	}
	out := make([]Ref, len(d.refs))
	copy(out, d.refs)
	return out
}

// SubgroupNames returns the subgroup names registered under the group id or name.
func (d *Directory) SubgroupNames(key string) []string {
	ref, ok := d.Resolve(key)
	if !ok {
		return nil
	}
	return append([]string(nil), d.subgroups[ref.ID]...)
}

// PlayerRef returns the canonical group of a player.
// PRE: none
// POST: ok is false for players outside every group
func (d *Directory) PlayerRef(p roster.Player) (Ref, bool) {
	if p.GroupID != "" {
		if ref, ok := d.Resolve(p.GroupID); ok {
			return ref, true
		}
	}
	return d.Resolve(p.Group)
}
