package roster

import (
	"strings"

	"github.com/pkg/errors"
)

// Max length constants for user-editable fields.
const (
	MaxNameLength = 100
)

// Player status values as supplied by roster management.
const (
	StatusActive   = "active"
	StatusInjured  = "injured"
	StatusInactive = "inactive"
)

// Domain errors
var (
	ErrEmptyID            = errors.New("roster entry ID cannot be empty")
	ErrEmptyName          = errors.New("roster entry name cannot be empty")
	ErrNameTooLong        = errors.New("roster entry name cannot exceed 100 characters")
	ErrSubgroupNeedsGroup = errors.New("player with a subgroup must also have a group")
)

// Player is a roster entry owned by roster management. The agenda core only reads it,
// to derive groups and to resolve notification recipients.
// INVARIANT: a player with a SubgroupID has a GroupID (subgroup implies group).
type Player struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	Email      string `json:"email,omitempty" yaml:"email"`
	Status     string `json:"status,omitempty" yaml:"status"`
	GroupID    string `json:"groupId,omitempty" yaml:"groupId"`
	Group      string `json:"group,omitempty" yaml:"group"`
	SubgroupID string `json:"subgroupId,omitempty" yaml:"subgroupId"`
	Subgroup   string `json:"subgroup,omitempty" yaml:"subgroup"`
}

// Validate checks the player's invariants.
// PRE: none
// POST: returns nil if valid, error describing the first violation otherwise
func (p *Player) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if len(p.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	if p.SubgroupID != "" && p.GroupID == "" {
		return ErrSubgroupNeedsGroup
	}
	return nil
}

// InGroup reports whether the player belongs to any group.
// INVARIANT: player fields are not mutated
func (p *Player) InGroup() bool {
	return p.GroupID != "" || p.Group != ""
}

// HasSubgroup reports whether the player carries a subgroup by id or by name.
func (p *Player) HasSubgroup() bool {
	return p.SubgroupID != "" || p.Subgroup != ""
}

// Coach is a staff member that events can be assigned to.
type Coach struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email,omitempty" yaml:"email"`
}

// Validate checks the coach's invariants.
// PRE: none
// POST: returns nil if valid, error otherwise
func (c *Coach) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	return nil
}

// FindCoach returns the coach with the given id.
// PRE: none
// POST: ok is false when no coach matches
func FindCoach(coaches []Coach, id string) (Coach, bool) {
	if id == "" {
		return Coach{}, false
	}
	for _, c := range coaches {
		if c.ID == id {
			return c, true
		}
	}
	return Coach{}, false
}
