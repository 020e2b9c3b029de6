package kv

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Well-known keys.
const (
	KeyEvents       = "events"
	KeyPlayers      = "players"
	KeyCoaches      = "coaches"
	KeyPlayerGroups = "playerGroups"
)

// ErrNotFound is returned by Get for a key that was never written.
var ErrNotFound = errors.New("kv: key not found")

// Blob is a stored JSON document and its write counter.
type Blob struct {
	Key       string
	Value     []byte
	Version   int64
	UpdatedAt time.Time
}

// Change is delivered to subscribers of other contexts after a key is written.
type Change struct {
	Key     string
	Value   []byte
	Version int64
	Origin  string // context id of the writer
}

// Store reads and writes named JSON blobs. Each Store value is one context: its
// subscribers hear about writes made through other contexts sharing the same Hub,
// never about its own writes.
type Store interface {
	// Get returns the blob stored under key.
	// PRE: key is non-empty
	// POST: returns ErrNotFound if the key was never written
	Get(ctx context.Context, key string) (Blob, error)

	// Set overwrites the whole value under key and bumps its version.
	// PRE: value is a complete serialized document
	// POST: returns the new version; other contexts are notified
	Set(ctx context.Context, key string, value []byte) (int64, error)

	// Version returns the current write counter of key, 0 if never written.
	Version(ctx context.Context, key string) (int64, error)

	// Subscribe registers fn for writes to key made by other contexts.
	// POST: the returned func removes the subscription
	Subscribe(key string, fn func(Change)) (cancel func())

	// ID identifies this context.
	ID() string
}
