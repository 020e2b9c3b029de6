package cli

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"academy/internal/adapters/http/perf"
	"academy/internal/adapters/storage"
	"academy/internal/adapters/storage/kv"
	"academy/internal/application/agenda"
	"academy/internal/config"
	"academy/internal/logging"
)

// perfBufferSize is how many timing entries the collector keeps.
const perfBufferSize = 2048

// app is the wiring shared by every command: config, logger, the migrated
// database and the kv store on top of it.
type app struct {
	cfg       config.Config
	log       *zap.Logger
	db        *sql.DB
	timed     *storage.TimedDB
	collector *perf.Collector
	hub       *kv.Hub
	kv        *kv.SQLiteStore
}

// openApp loads configuration and opens the database.
// POST: the schema is at LatestSchemaVersion; the caller must Close
func openApp() (*app, error) {
	cfg, err := config.Load(configFile, envFile)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		log.Sync()
		return nil, err
	}
	if err := storage.MigrateDB(db, cfg.DBPath); err != nil {
		db.Close()
		log.Sync()
		return nil, errors.Wrap(err, "migrate database")
	}
	log.Debug("database_ready", zap.String("path", cfg.DBPath), zap.Int("schema_version", storage.LatestSchemaVersion()))

	collector := perf.NewCollector(perfBufferSize)
	timed := storage.NewTimedDB(db, collector, log, cfg.SlowQuery)
	hub := kv.NewHub(log)
	return &app{
		cfg:       cfg,
		log:       log,
		db:        db,
		timed:     timed,
		collector: collector,
		hub:       hub,
		kv:        kv.NewSQLiteStore(timed, hub, collector),
	}, nil
}

// readModels loads the event collection and roster without a notification hook.
func (a *app) readModels(ctx context.Context) (*agenda.EventStore, *agenda.RosterView, error) {
	roster, err := agenda.NewRosterView(ctx, a.kv, a.log)
	if err != nil {
		return nil, nil, errors.Wrap(err, "load roster")
	}
	events, err := agenda.NewEventStore(ctx, agenda.EventStoreDeps{KV: a.kv, Log: a.log})
	if err != nil {
		roster.Close()
		return nil, nil, errors.Wrap(err, "load events")
	}
	return events, roster, nil
}

func (a *app) Close() {
	a.hub.Close()
	if err := a.db.Close(); err != nil {
		a.log.Warn("database_close_failed", zap.Error(err))
	}
	a.log.Sync()
}
