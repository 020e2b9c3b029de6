package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// migration moves the schema from version-1 to version.
type migration struct {
	version int
	name    string
	stmts   []string
}

// migrations is append-only; never edit an entry that has shipped.
var migrations = []migration{
	{
		version: 1,
		name:    "baseline",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS kv_blob (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				version INTEGER NOT NULL DEFAULT 1,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS notification (
				id TEXT PRIMARY KEY,
				type TEXT NOT NULL,
				recipient_id TEXT NOT NULL,
				recipient_name TEXT NOT NULL DEFAULT '',
				event_id TEXT NOT NULL,
				event_title TEXT NOT NULL DEFAULT '',
				message TEXT NOT NULL,
				created_at TEXT NOT NULL,
				read INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE IF NOT EXISTS outbox (
				id TEXT PRIMARY KEY,
				action_type TEXT NOT NULL,
				payload TEXT NOT NULL,
				status TEXT NOT NULL,
				attempts INTEGER NOT NULL DEFAULT 0,
				max_attempts INTEGER NOT NULL DEFAULT 5,
				last_attempted_at TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				external_id TEXT NOT NULL DEFAULT '',
				error_message TEXT NOT NULL DEFAULT ''
			)`,
		},
	},
	{
		version: 2,
		name:    "lookup_indexes",
		stmts: []string{
			`CREATE INDEX IF NOT EXISTS idx_notification_recipient ON notification (recipient_id, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_notification_event ON notification (event_id)`,
			`CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox (status, created_at)`,
		},
	},
}

// LatestSchemaVersion returns the version MigrateDB brings a database to.
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// pragmas are applied by the driver to every pooled connection.
const pragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"

// Open opens the SQLite database at path with the pragmas every store relies on.
// PRE: path is a file path or ":memory:"
// POST: returns an open, reachable handle; the caller runs MigrateDB
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?"+pragmas)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite %s", path)
	}
	if path == ":memory:" {
		// every pooled connection to :memory: would be a separate database
		db.SetMaxOpenConns(1)
	} else {
		// Connection pool settings for WAL mode
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "ping sqlite %s", path)
	}
	return db, nil
}

// SchemaVersion returns the applied schema version, 0 for an unmigrated database.
func SchemaVersion(db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'`).Scan(&exists)
	if err != nil {
		return 0, errors.Wrap(err, "probe schema_version")
	}
	if exists == 0 {
		return 0, nil
	}
	var v sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&v); err != nil {
		return 0, errors.Wrap(err, "read schema_version")
	}
	return int(v.Int64), nil
}

// MigrateDB applies every pending migration, each in its own transaction.
// A file-backed database that already holds data is snapshotted to
// "<path>.v<N>.bak" before it is upgraded from version N.
// PRE: db is a valid connection
// POST: SchemaVersion(db) == LatestSchemaVersion(); safe to run repeatedly
func MigrateDB(db *sql.DB, path string) error {
	if err := ensureVersionTable(db); err != nil {
		return err
	}
	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	if current >= LatestSchemaVersion() {
		return nil
	}
	if current > 0 && path != "" && !strings.HasPrefix(path, ":memory:") && !strings.Contains(path, "mode=memory") {
		backup := fmt.Sprintf("%s.v%d.bak", path, current)
		if _, err := db.Exec(`VACUUM INTO ?`, backup); err != nil {
			return errors.Wrapf(err, "snapshot database to %s", backup)
		}
	}

	ctx := context.Background()
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return err
		}
	}
	return nil
}

func ensureVersionTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	return errors.Wrap(err, "create schema_version")
}

func apply(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrapf(err, "begin migration %d", m.version)
	}
	defer tx.Rollback()

	for _, stmt := range m.stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "migration %d (%s)", m.version, m.name)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version, name) VALUES (?, ?)`, m.version, m.name); err != nil {
		return errors.Wrapf(err, "record migration %d", m.version)
	}
	return errors.Wrapf(tx.Commit(), "commit migration %d", m.version)
}
