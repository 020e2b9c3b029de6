package orchestrators

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"academy/internal/adapters/storage/kv"
	"academy/internal/application/agenda"
	"academy/internal/domain/group"
	"academy/internal/domain/roster"
)

// RosterFile is the YAML layout accepted by SeedRoster.
//
//	players:
//	  - {id: p1, name: Ana, groupId: gA, group: U12, subgroupId: sA1, subgroup: U12-A}
//	coaches:
//	  - {id: c1, name: Coach Lee, email: lee@example.com}
type RosterFile struct {
	Players []roster.Player `yaml:"players"`
	Coaches []roster.Coach  `yaml:"coaches"`
}

// SeedRosterDeps holds dependencies for SeedRoster.
type SeedRosterDeps struct {
	KV  kv.Store
	Log *zap.Logger
}

// SeedRosterResult summarizes a seed run.
type SeedRosterResult struct {
	Players int
	Coaches int
	Groups  []group.Group
}

// ExecuteSeedRoster replaces the stored players and coaches with the file contents
// and refreshes the playerGroups cache.
// PRE: r yields a RosterFile document
// POST: nothing is written when any entry is invalid or ids repeat
func ExecuteSeedRoster(ctx context.Context, r io.Reader, deps SeedRosterDeps) (SeedRosterResult, error) {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	var file RosterFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return SeedRosterResult{}, errors.Wrap(err, "decode roster file")
	}

	seen := map[string]bool{}
	for i := range file.Players {
		p := &file.Players[i]
		if err := p.Validate(); err != nil {
			return SeedRosterResult{}, errors.Wrapf(err, "player #%d (%s)", i+1, p.ID)
		}
		if seen["p:"+p.ID] {
			return SeedRosterResult{}, errors.Errorf("duplicate player id %s", p.ID)
		}
		seen["p:"+p.ID] = true
	}
	for i := range file.Coaches {
		c := &file.Coaches[i]
		if err := c.Validate(); err != nil {
			return SeedRosterResult{}, errors.Wrapf(err, "coach #%d (%s)", i+1, c.ID)
		}
		if seen["c:"+c.ID] {
			return SeedRosterResult{}, errors.Errorf("duplicate coach id %s", c.ID)
		}
		seen["c:"+c.ID] = true
	}

	if err := agenda.SaveRoster(ctx, deps.KV, file.Players, file.Coaches); err != nil {
		return SeedRosterResult{}, err
	}
	view, err := agenda.NewRosterView(ctx, deps.KV, log)
	if err != nil {
		return SeedRosterResult{}, err
	}
	view.Close()

	snap := view.Snapshot()
	log.Info("roster_seeded", zap.Int("players", len(snap.Players)), zap.Int("coaches", len(snap.Coaches)), zap.Int("groups", len(snap.Groups)))
	return SeedRosterResult{Players: len(snap.Players), Coaches: len(snap.Coaches), Groups: snap.Groups}, nil
}
