package commands

import (
	"context"
	"database/sql"

	"github.com/d-j-hatton/python-smartem/config"
	"github.com/d-j-hatton/python-smartem/db"
	"github.com/d-j-hatton/python-smartem/errors"
	"github.com/d-j-hatton/python-smartem/extract"
	"github.com/d-j-hatton/python-smartem/logger"
	"github.com/d-j-hatton/python-smartem/metrics"
)

// session is an open, migrated database with a DataAPI over it.
type session struct {
	cfg      *config.Config
	db       *sql.DB
	dialect  db.Dialect
	api      *extract.DataAPI
	recorder *metrics.Recorder
}

// openSession loads configuration, connects and migrates.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	database, dialect, err := db.Connect(ctx, cfg.Database, logger.ComponentLogger("db"))
	if err != nil {
		return nil, err
	}

	recorder, err := metrics.NewRecorder(cfg.Metrics.Namespace)
	if err != nil {
		database.Close()
		return nil, err
	}

	opts := []extract.Option{
		extract.WithLogger(logger.ComponentLogger("extract")),
		extract.WithRecorder(recorder),
		extract.WithWorkers(cfg.Aggregate.Workers),
	}
	if logger.ShouldLogTrace(logger.Verbosity) {
		opts = append(opts, extract.WithQueryArgs())
	}
	api := extract.New(database, dialect, opts...)
	return &session{cfg: cfg, db: database, dialect: dialect, api: api, recorder: recorder}, nil
}

func (s *session) Close() error {
	return s.db.Close()
}
