package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-j-hatton/python-smartem/errors"
)

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)

	d, err = DialectFor("pgx")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)
	assert.Equal(t, "pgx", d.Driver())

	_, err = DialectFor("mysql")
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestRebind(t *testing.T) {
	query := `SELECT t0."x" FROM "Particle" t0 WHERE t0."exposure_name" = ? AND t0."x" > ? LIMIT ?`

	assert.Equal(t, query, SQLite.Rebind(query))
	assert.Equal(t,
		`SELECT t0."x" FROM "Particle" t0 WHERE t0."exposure_name" = $1 AND t0."x" > $2 LIMIT $3`,
		Postgres.Rebind(query),
	)
	assert.Equal(t, "SELECT 1", Postgres.Rebind("SELECT 1"))
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"GridSquare"`, Quote("GridSquare"))
	assert.Equal(t, `"odd""name"`, Quote(`odd"name`))
}

func TestIsDatabaseClosed(t *testing.T) {
	assert.False(t, IsDatabaseClosed(nil))
	assert.True(t, IsDatabaseClosed(errors.Wrap(ErrDatabaseClosed, "query")))
	assert.True(t, IsDatabaseClosed(errors.New("sql: database is closed")))
	assert.False(t, IsDatabaseClosed(errors.New("no such table")))

	marked := WrapQuery(errors.New("sql: database is closed"), "get exposures")
	assert.True(t, errors.Is(marked, ErrDatabaseClosed))
}
