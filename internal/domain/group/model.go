package group

// Color palette for name-keyed groups, assigned by first-seen order.
var Palette = []string{
	"#F9B232", // orange
	"#e74c3c", // red
	"#27ae60", // green
	"#2980b9", // blue
	"#8e44ad", // purple
	"#16a085", // teal
	"#7f8c8d", // grey
}

// Subgroup is a named sub-cohort within a group.
type Subgroup struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Group is derived from player records; it is never the source of truth.
type Group struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Subgroups []Subgroup `json:"subgroups"`
}

// Ref is the canonical group identifier used by filtering and recipient resolution.
// Groups that only exist by display name get their name as ID.
type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Ref returns the canonical reference for the group.
func (g Group) Ref() Ref {
	return Ref{ID: g.ID, Name: g.Name}
}

// NamedGroup is the display-name keyed variant used by the coach agenda.
type NamedGroup struct {
	Name      string   `json:"name"`
	Color     string   `json:"color"`
	Subgroups []string `json:"subgroups"`
}

// ColorFor returns the palette color for the group at the given first-seen index.
// PRE: index >= 0
func ColorFor(index int) string {
	return Palette[index%len(Palette)]
}
