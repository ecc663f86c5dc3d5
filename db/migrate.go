package db

import (
	"context"
	"database/sql"
	"embed"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/d-j-hatton/python-smartem/errors"
	log "github.com/d-j-hatton/python-smartem/logger"
)

//go:embed sqlite/migrations/*.sql postgres/migrations/*.sql
var migrations embed.FS

func migrationDir(d Dialect) string {
	if d == Postgres {
		return "postgres/migrations"
	}
	return "sqlite/migrations"
}

// Migrations lists the embedded migration files for d in apply order.
func Migrations(d Dialect) ([]string, error) {
	entries, err := migrations.ReadDir(migrationDir(d))
	if err != nil {
		return nil, errors.Wrap(err, "read migrations")
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	// 000_create_schema_migrations.sql runs first
	sort.Strings(files)
	return files, nil
}

// Migrate runs all pending migrations for the dialect.
// If logger is provided, logs migration progress; otherwise operates silently.
func Migrate(ctx context.Context, db *sql.DB, d Dialect, logger *zap.SugaredLogger) error {
	files, err := Migrations(d)
	if err != nil {
		return err
	}

	applied := 0
	for _, filename := range files {
		version := strings.Split(filename, "_")[0]

		done, err := migrationApplied(ctx, db, d, version)
		if err != nil {
			return errors.Wrapf(err, "check %s", filename)
		}
		if done {
			if logger != nil {
				logger.Debugw("Skipping migration (already applied)",
					"migration", filename,
					log.FieldVersion, version,
				)
			}
			continue
		}

		sqlBytes, err := migrations.ReadFile(path.Join(migrationDir(d), filename))
		if err != nil {
			return errors.Wrapf(err, "read %s", filename)
		}

		if logger != nil {
			logger.Infow("Applying migration",
				"migration", filename,
				log.FieldVersion, version,
				"dialect", d.String(),
			)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return wrapClosed(err, "begin tx for "+filename)
		}

		if _, err := tx.ExecContext(ctx, string(sqlBytes)); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "execute %s", filename)
		}

		// Record migration (000 creates the table, then records itself)
		if _, err := tx.ExecContext(ctx, d.Rebind("INSERT INTO schema_migrations (version) VALUES (?)"), version); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "record %s", filename)
		}

		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "commit %s", filename)
		}
		applied++
	}

	if logger != nil {
		logger.Infow("Migrations complete",
			"total_migrations", len(files),
			"applied", applied,
		)
	}
	return nil
}

// migrationApplied reports whether version is recorded. Before 000 has run the
// table does not exist, which only version 000 may tolerate.
func migrationApplied(ctx context.Context, db *sql.DB, d Dialect, version string) (bool, error) {
	exists, err := tableExists(ctx, db, d, "schema_migrations")
	if err != nil {
		return false, err
	}
	if !exists {
		if version != "000" {
			return false, errors.Newf("schema_migrations table missing, but migration is not 000: %s", version)
		}
		return false, nil
	}

	var applied bool
	err = db.QueryRowContext(ctx,
		d.Rebind("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)"), version,
	).Scan(&applied)
	if err != nil {
		return false, wrapClosed(err, "query schema_migrations")
	}
	return applied, nil
}

func tableExists(ctx context.Context, db *sql.DB, d Dialect, table string) (bool, error) {
	query := "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
	if d == Postgres {
		query = "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?"
	}

	var n int
	if err := db.QueryRowContext(ctx, d.Rebind(query), table).Scan(&n); err != nil {
		return false, wrapClosed(err, "inspect tables")
	}
	return n > 0, nil
}

// SchemaVersion returns the highest applied migration version.
func SchemaVersion(ctx context.Context, db *sql.DB) (string, error) {
	var version sql.NullString
	if err := db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version); err != nil {
		return "", wrapClosed(err, "query schema version")
	}
	return version.String, nil
}
