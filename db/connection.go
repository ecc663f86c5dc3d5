package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/d-j-hatton/python-smartem/config"
	"github.com/d-j-hatton/python-smartem/errors"
	log "github.com/d-j-hatton/python-smartem/logger"
)

// SQLiteBusyTimeoutMS is how long a SQLite writer waits on a locked database.
const SQLiteBusyTimeoutMS = 5000

// SQLiteDSN appends the connection settings to path. go-sqlite3 applies DSN
// parameters to every connection it opens, so each pooled connection gets
// WAL, foreign keys and the busy timeout.
func SQLiteDSN(path string) string {
	params := fmt.Sprintf("_journal_mode=WAL&_foreign_keys=on&_busy_timeout=%d", SQLiteBusyTimeoutMS)
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return path + "?" + params
}

// Open opens a SQLite database at the specified path with optimized settings.
// If logger is provided, logs database operations; otherwise operates silently.
func Open(path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	if logger != nil {
		logger.Debugw("Opening database", log.FieldPath, path, log.FieldDriver, SQLite.Driver())
	}
	db, err := sql.Open(SQLite.Driver(), SQLiteDSN(path))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// Teardown relies on the store rejecting orphans
	var foreignKeys int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to read connection settings")
	}
	if foreignKeys != 1 {
		db.Close()
		return nil, errors.New("sqlite driver did not enable foreign keys")
	}

	if logger != nil {
		logger.Infow("Database opened successfully",
			log.FieldPath, path,
			"wal_mode", true,
			"foreign_keys", true,
		)
	}

	return db, nil
}

// OpenPostgres opens and pings a postgres database through pgx.
func OpenPostgres(ctx context.Context, creds Credentials, logger *zap.SugaredLogger) (*sql.DB, error) {
	if logger != nil {
		logger.Debugw("Opening database",
			log.FieldDriver, Postgres.Driver(),
			log.FieldHost, creds.Host,
			"database", creds.Database,
		)
	}
	db, err := sql.Open(Postgres.Driver(), creds.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.WithHintf(errors.Wrap(err, "failed to ping postgres"),
			"check %s:%d is reachable and the credentials are current", creds.Host, creds.Port)
	}

	if logger != nil {
		logger.Infow("Database opened successfully", log.FieldHost, creds.Host, "database", creds.Database)
	}
	return db, nil
}

// Connect opens the store described by cfg and applies pending migrations.
func Connect(ctx context.Context, cfg config.DatabaseConfig, logger *zap.SugaredLogger) (*sql.DB, Dialect, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, 0, err
	}

	var db *sql.DB
	switch dialect {
	case Postgres:
		creds, err := LoadCredentials(cfg.Credentials)
		if err != nil {
			return nil, 0, err
		}
		db, err = OpenPostgres(ctx, creds, logger)
		if err != nil {
			return nil, 0, err
		}
	default:
		db, err = Open(cfg.Path, logger)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "failed to open database at %s", cfg.Path)
		}
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := Migrate(ctx, db, dialect, logger); err != nil {
		db.Close()
		return nil, 0, errors.Wrap(err, "failed to run migrations")
	}
	return db, dialect, nil
}

// OpenWithMigrations opens a SQLite database and runs pending migrations.
func OpenWithMigrations(path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	db, err := Open(path, logger)
	if err != nil {
		return nil, err
	}
	if err := Migrate(context.Background(), db, SQLite, logger); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to run migrations")
	}
	return db, nil
}
