package join

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-j-hatton/python-smartem/db"
	smartemtest "github.com/d-j-hatton/python-smartem/internal/testing"
	"github.com/d-j-hatton/python-smartem/model"
	"github.com/d-j-hatton/python-smartem/schema"
)

func TestRun_WithMock(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer mockDB.Close()

	q, err := Compose(schema.Default, []schema.Entity{schema.Particle}, WithParentAnchor("exp1"))
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT t0."particle_id", t0."exposure_name", t0."x", t0."y" FROM "Particle" t0 WHERE t0."exposure_name" = $1`).
		WithArgs("exp1").
		WillReturnRows(sqlmock.NewRows([]string{"particle_id", "exposure_name", "x", "y"}).
			AddRow(int64(1), "exp1", 10.0, 20.0).
			AddRow(int64(2), "exp1", 30.0, 40.0))

	rows, err := Run(context.Background(), mockDB, db.Postgres, q)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// single-entity queries still yield rows
	p, ok := Get[*model.Particle](rows[1])
	require.True(t, ok)
	assert.Equal(t, &model.Particle{ParticleID: 2, ExposureName: "exp1", X: 30, Y: 40}, p)
	assert.Equal(t, 1, rows[0].Len())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_QueryError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	q, err := Compose(schema.Default, []schema.Entity{schema.Exposure})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .* FROM "Exposure" t0`).WillReturnError(db.ErrDatabaseClosed)

	_, err = Run(context.Background(), mockDB, db.SQLite, q)
	require.Error(t, err)
	assert.True(t, db.IsDatabaseClosed(err))
	assert.Contains(t, err.Error(), "query Exposure")
}

func TestRun_RejectsProjection(t *testing.T) {
	q, err := Compose(schema.Default, []schema.Entity{schema.Exposure})
	require.NoError(t, err)
	q.Select(schema.Exposure, "exposure_name")

	_, err = Run(context.Background(), nil, db.SQLite, q)
	assert.Error(t, err)

	q2, err := Compose(schema.Default, []schema.Entity{schema.Exposure})
	require.NoError(t, err)
	_, err = Strings(context.Background(), nil, db.SQLite, q2)
	assert.Error(t, err)
}

func TestRun_RowsFollowPathOrder(t *testing.T) {
	database := smartemtest.CreateTestDB(t)
	hier := smartemtest.SeedHierarchy(t, database)
	ctx := context.Background()

	path := resolve(t, schema.ParticleInfo, schema.GridSquare)
	q, err := Compose(schema.Default, path, WithAnchor("gs1"))
	require.NoError(t, err)
	q.OrderBy(schema.Particle, "particle_id")

	rows, err := Run(ctx, database, db.SQLite, q)
	require.NoError(t, err)
	require.Len(t, rows, 4, "two foil holes with one exposure of two particles")

	for _, row := range rows {
		require.Equal(t, len(path), row.Len())
		for i, e := range path {
			assert.Equal(t, e, row.At(i).Entity())
		}

		info, ok := row.Info()
		require.True(t, ok)
		assert.Equal(t, "score", info.Measurement().Key)

		gs, ok := Get[*model.GridSquare](row)
		require.True(t, ok)
		assert.Equal(t, "gs1", gs.GridSquareName)
	}

	particle, _ := Get[*model.Particle](rows[0])
	assert.Equal(t, hier.Particles["gs1-fh1-exp"][0], particle.ParticleID)
}

func TestRun_RootAnchorAgainstSQLite(t *testing.T) {
	database := smartemtest.CreateTestDB(t)
	smartemtest.SeedHierarchy(t, database)
	ctx := context.Background()

	q, err := Compose(schema.Default, []schema.Entity{schema.GridSquare, schema.Tile}, WithRoot(schema.Project, smartemtest.Project))
	require.NoError(t, err)
	q.Select(schema.GridSquare, "grid_square_name").OrderBy(schema.GridSquare, "grid_square_name")

	names, err := Strings(ctx, database, db.SQLite, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"gs1", "gs2"}, names)

	q, err = Compose(schema.Default, []schema.Entity{schema.GridSquare, schema.Tile}, WithRoot(schema.Project, "other"))
	require.NoError(t, err)
	q.Select(schema.GridSquare, "grid_square_name")

	names, err = Strings(ctx, database, db.SQLite, q)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestRun_ThroughLinker(t *testing.T) {
	database := smartemtest.CreateTestDB(t)
	hier := smartemtest.SeedHierarchy(t, database)
	smartemtest.SeedParticleSets(t, database, hier)

	q, err := Compose(schema.Default, []schema.Entity{schema.Particle}, WithParentAnchor("gs2-fh1-exp"))
	require.NoError(t, err)
	q.Through(schema.ParticleSetMembership, schema.ParticleSetInfo).OrderBy(schema.Particle, "particle_id")

	rows, err := Run(context.Background(), database, db.SQLite, q)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	want := []float64{3.5, 7.0}
	for i, row := range rows {
		info, ok := Get[*model.ParticleSetInfo](row)
		require.True(t, ok)
		assert.Equal(t, want[i], info.Value)

		linker, ok := Get[*model.ParticleSetLinker](row)
		require.True(t, ok)
		assert.Equal(t, info.SetName, linker.SetName)
	}
}
