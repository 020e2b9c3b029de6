package agenda

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"academy/internal/adapters/storage/kv"
	"academy/internal/domain/group"
	"academy/internal/domain/roster"
)

// Snapshot is an immutable view of the roster and the groups derived from it.
type Snapshot struct {
	Players   []roster.Player
	Coaches   []roster.Coach
	Groups    []group.Group
	Directory *group.Directory
}

// NewSnapshot derives groups and the directory from the given roster.
func NewSnapshot(players []roster.Player, coaches []roster.Coach) Snapshot {
	if players == nil {
		players = []roster.Player{}
	}
	if coaches == nil {
		coaches = []roster.Coach{}
	}
	return Snapshot{
		Players:   players,
		Coaches:   coaches,
		Groups:    group.Derive(players),
		Directory: group.NewDirectory(players),
	}
}

// RosterView keeps the latest players and coaches written by roster management
// and mirrors the derived groups to the "playerGroups" key.
type RosterView struct {
	kv  kv.Store
	log *zap.Logger

	mu       sync.RWMutex
	current  Snapshot
	versions [2]int64 // players, coaches
	cancels  []func()
}

// NewRosterView loads players and coaches and follows later writes to them.
// PRE: store is non-nil
// POST: Snapshot() reflects the stored roster; missing keys are empty lists
func NewRosterView(ctx context.Context, store kv.Store, log *zap.Logger) (*RosterView, error) {
	if log == nil {
		log = zap.NewNop()
	}
	v := &RosterView{kv: store, log: log}
	if err := v.Reload(ctx); err != nil {
		return nil, err
	}
	reload := func(kv.Change) {
		if err := v.Reload(context.Background()); err != nil {
			v.log.Warn("roster_reload_failed", zap.Error(err))
		}
	}
	v.cancels = append(v.cancels,
		store.Subscribe(kv.KeyPlayers, reload),
		store.Subscribe(kv.KeyCoaches, reload),
	)
	return v, nil
}

// Close stops following roster writes.
func (v *RosterView) Close() {
	v.mu.Lock()
	cancels := v.cancels
	v.cancels = nil
	v.mu.Unlock()
	for _, c := range cancels {
		c()
	}
}

// Snapshot returns the current roster view.
func (v *RosterView) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Refresh reloads the roster when either key changed since the last load.
// POST: changed reports whether a reload happened
func (v *RosterView) Refresh(ctx context.Context) (changed bool, err error) {
	pv, err := v.kv.Version(ctx, kv.KeyPlayers)
	if err != nil {
		return false, errors.Wrap(err, "read players version")
	}
	cv, err := v.kv.Version(ctx, kv.KeyCoaches)
	if err != nil {
		return false, errors.Wrap(err, "read coaches version")
	}
	v.mu.RLock()
	same := v.versions == [2]int64{pv, cv}
	v.mu.RUnlock()
	if same {
		return false, nil
	}
	return true, v.Reload(ctx)
}

// Reload re-reads players and coaches and refreshes the playerGroups cache.
// POST: a failed cache write is logged, not returned
func (v *RosterView) Reload(ctx context.Context) error {
	pv, err := v.kv.Version(ctx, kv.KeyPlayers)
	if err != nil {
		return errors.Wrap(err, "read players version")
	}
	cv, err := v.kv.Version(ctx, kv.KeyCoaches)
	if err != nil {
		return errors.Wrap(err, "read coaches version")
	}
	var players []roster.Player
	if err := readJSON(ctx, v.kv, kv.KeyPlayers, &players); err != nil {
		return err
	}
	var coaches []roster.Coach
	if err := readJSON(ctx, v.kv, kv.KeyCoaches, &coaches); err != nil {
		return err
	}
	snap := NewSnapshot(players, coaches)

	v.mu.Lock()
	v.current = snap
	v.versions = [2]int64{pv, cv}
	v.mu.Unlock()

	if err := writeJSON(ctx, v.kv, kv.KeyPlayerGroups, snap.Groups); err != nil {
		v.log.Warn("player_groups_cache_write_failed", zap.Error(err))
	}
	return nil
}

// readJSON decodes the blob under key into dst, leaving dst untouched when the
// key was never written.
func readJSON(ctx context.Context, store kv.Store, key string, dst any) error {
	blob, err := store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "read %s", key)
	}
	if len(blob.Value) == 0 {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(blob.Value, dst), "decode %s", key)
}

func writeJSON(ctx context.Context, store kv.Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	_, err = store.Set(ctx, key, data)
	return errors.Wrapf(err, "write %s", key)
}

// SaveRoster overwrites the players and coaches keys.
// PRE: every player and coach passed Validate
func SaveRoster(ctx context.Context, store kv.Store, players []roster.Player, coaches []roster.Coach) error {
	if players == nil {
		players = []roster.Player{}
	}
	if coaches == nil {
		coaches = []roster.Coach{}
	}
	if err := writeJSON(ctx, store, kv.KeyPlayers, players); err != nil {
		return err
	}
	return writeJSON(ctx, store, kv.KeyCoaches, coaches)
}
