package db

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-j-hatton/python-smartem/schema"
)

func TestOpenWithMigrations(t *testing.T) {
	t.Run("successfully opens database and runs migrations", func(t *testing.T) {
		db, err := OpenWithMigrations(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		defer db.Close()

		var exists int
		err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_migrations'").Scan(&exists)
		require.NoError(t, err)
		assert.Equal(t, 1, exists, "schema_migrations table should exist after migrations")
	})

	t.Run("creates every schema table", func(t *testing.T) {
		db, err := OpenWithMigrations(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		defer db.Close()

		for _, table := range schema.DefaultTables {
			var n int
			err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table.Name()).Scan(&n)
			require.NoError(t, err)
			assert.Equal(t, 1, n, "table %s", table.Name())

			// every declared column is selectable
			query := fmt.Sprintf("SELECT %s FROM %s LIMIT 0", quoteColumns(table.Columns), Quote(table.Name()))
			rows, err := db.Query(query)
			require.NoError(t, err, query)
			rows.Close()
		}
	})
}

func quoteColumns(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += Quote(c)
	}
	return out
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()

	t.Run("is idempotent", func(t *testing.T) {
		db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		defer db.Close()

		require.NoError(t, Migrate(ctx, db, SQLite, nil))
		require.NoError(t, Migrate(ctx, db, SQLite, nil), "running migrations multiple times should be safe")

		files, err := Migrations(SQLite)
		require.NoError(t, err)

		var count int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
		assert.Equal(t, len(files), count)
	})

	t.Run("fails on closed database", func(t *testing.T) {
		db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		db.Close()

		err = Migrate(ctx, db, SQLite, nil)
		require.Error(t, err)
		assert.True(t, IsDatabaseClosed(err))
	})

	t.Run("foreign keys are enforced", func(t *testing.T) {
		db, err := OpenWithMigrations(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		defer db.Close()

		_, err = db.Exec(`INSERT INTO "Tile" (atlas_id, pixel_size, readout_area_x, readout_area_y, stage_position_x, stage_position_y) VALUES (99, 1, 1, 1, 0, 0)`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "FOREIGN KEY")
	})
}

func TestMigrations_DialectsMatch(t *testing.T) {
	sqlite, err := Migrations(SQLite)
	require.NoError(t, err)
	postgres, err := Migrations(Postgres)
	require.NoError(t, err)

	assert.Equal(t, sqlite, postgres)
	assert.Equal(t, "000_create_schema_migrations.sql", sqlite[0])
}
