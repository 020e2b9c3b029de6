package kv

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"academy/internal/adapters/http/perf"
	"academy/internal/adapters/storage"
)

const timeLayout = time.RFC3339Nano

// SQLiteStore keeps blobs in the kv_blob table. Handles created with Sibling share the
// table and the hub but are distinct contexts. Writers in other processes are only
// seen through Version polling.
type SQLiteStore struct {
	db        storage.SQLDB
	hub       *Hub
	collector *perf.Collector
	id        string
	now       func() time.Time
}

// Compile-time check that *SQLiteStore satisfies Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens a context over db. A nil hub disables change notification.
// PRE: db has been migrated
func NewSQLiteStore(db storage.SQLDB, hub *Hub, collector *perf.Collector) *SQLiteStore {
	if hub == nil {
		hub = NewHub(nil)
	}
	return &SQLiteStore{
		db:        db,
		hub:       hub,
		collector: collector,
		id:        uuid.NewString(),
		now:       time.Now,
	}
}

// Sibling returns another context over the same table and hub.
func (s *SQLiteStore) Sibling() *SQLiteStore {
	return &SQLiteStore{db: s.db, hub: s.hub, collector: s.collector, id: uuid.NewString(), now: s.now}
}

// ID identifies this context.
func (s *SQLiteStore) ID() string { return s.id }

// Get returns the blob stored under key.
// PRE: key is non-empty
// POST: returns ErrNotFound if the key was never written
func (s *SQLiteStore) Get(ctx context.Context, key string) (Blob, error) {
	defer s.collector.Since(perf.KindBlob, "kv.Get "+key, time.Now())

	b := Blob{Key: key}
	var value, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT value, version, updated_at FROM kv_blob WHERE key = ?`, key).
		Scan(&value, &b.Version, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Blob{}, ErrNotFound
	}
	if err != nil {
		return Blob{}, errors.Wrapf(err, "get %s", key)
	}
	b.Value = []byte(value)
	b.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return b, nil
}

// Set overwrites the whole value under key. Concurrent writers are last-write-wins.
// PRE: key is non-empty
// POST: version incremented; other contexts notified after the row is written
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) (int64, error) {
	defer s.collector.Since(perf.KindBlob, "kv.Set "+key, time.Now())

	var version int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO kv_blob (key, value, version, updated_at) VALUES (?, ?, 1, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   value=excluded.value, version=kv_blob.version+1, updated_at=excluded.updated_at
		 RETURNING version`,
		key, string(value), s.now().UTC().Format(timeLayout)).Scan(&version)
	if err != nil {
		return 0, errors.Wrapf(err, "set %s", key)
	}
	s.hub.Publish(Change{Key: key, Value: append([]byte(nil), value...), Version: version, Origin: s.id})
	return version, nil
}

// Version returns the write counter of key, 0 if never written.
func (s *SQLiteStore) Version(ctx context.Context, key string) (int64, error) {
	var version int64
	err := s.db.QueryRowContext(ctx, `SELECT version FROM kv_blob WHERE key = ?`, key).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return version, errors.Wrapf(err, "version of %s", key)
}

// Subscribe registers fn for writes to key made through other contexts.
func (s *SQLiteStore) Subscribe(key string, fn func(Change)) func() {
	return s.hub.Subscribe(s.id, key, fn)
}
