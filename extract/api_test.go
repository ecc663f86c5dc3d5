package extract

import (
	"context"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/d-j-hatton/python-smartem/db"
	"github.com/d-j-hatton/python-smartem/errors"
	"github.com/d-j-hatton/python-smartem/logger"
	"github.com/d-j-hatton/python-smartem/metrics"
)

func newMock(t *testing.T, opts ...Option) (*DataAPI, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return New(mockDB, db.Postgres, opts...), mock
}

func TestGetProjects_SQL(t *testing.T) {
	recorder, err := metrics.NewRecorder("test")
	require.NoError(t, err)
	api, mock := newMock(t, WithRecorder(recorder))

	mock.ExpectQuery(`SELECT t0."project_name" FROM "Project" t0 ORDER BY t0."project_name"`).
		WillReturnRows(sqlmock.NewRows([]string{"project_name"}).AddRow("a").AddRow("b"))

	projects, err := api.GetProjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, projects)
	require.NoError(t, mock.ExpectationsWereMet())

	expected := `
# HELP test_query_rows_total Rows returned by DataAPI operations.
# TYPE test_query_rows_total counter
test_query_rows_total{operation="get_projects"} 2
`
	require.NoError(t, testutil.GatherAndCompare(recorder.Registry(), strings.NewReader(expected), "test_query_rows_total"))
}

func TestGetParticleID_SQL(t *testing.T) {
	api, mock := newMock(t)

	mock.ExpectQuery(`SELECT t0."particle_id", t0."exposure_name", t0."x", t0."y" FROM "Particle" t0`+
		` WHERE t0."exposure_name" = $1 AND t0."x" = $2 AND t0."y" = $3 LIMIT 2`).
		WithArgs("exp1", 10.0, 20.0).
		WillReturnRows(sqlmock.NewRows([]string{"particle_id", "exposure_name", "x", "y"}).
			AddRow(int64(1), "exp1", 10.0, 20.0).
			AddRow(int64(2), "exp1", 10.0, 20.0))

	_, ok, err := api.GetParticleID(context.Background(), "exp1", 10, 20)
	require.Error(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrMultipleMatches)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProject_SQL(t *testing.T) {
	api, mock := newMock(t)

	mock.ExpectExec(`UPDATE "Project" SET "acquisition_directory" = $1, "processing_directory" = $2 WHERE "project_name" = $3`).
		WithArgs("/a", "/p", "gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := api.UpdateProject(context.Background(), "gone", "/a", "/p")
	assert.True(t, errors.IsNotFoundError(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryErrors_AreCounted(t *testing.T) {
	recorder, err := metrics.NewRecorder("test")
	require.NoError(t, err)
	api, mock := newMock(t, WithRecorder(recorder))

	mock.ExpectQuery(`SELECT t0."project_name" FROM "Project" t0 ORDER BY t0."project_name"`).
		WillReturnError(errors.New("connection reset"))

	_, err = api.GetProjects(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get_projects")

	n, err := testutil.GatherAndCount(recorder.Registry(), "test_query_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestQueryLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	api := New(mockDB, db.Postgres, WithLogger(zap.New(core).Sugar()), WithQueryArgs())

	mock.ExpectQuery(`SELECT .* FROM "Project" t0 WHERE t0."project_name" = \$1`).
		WithArgs("proj").
		WillReturnRows(sqlmock.NewRows([]string{"project_name", "acquisition_directory", "processing_directory", "atlas_id"}).
			AddRow("proj", "/a", "/p", nil))

	ctx := logger.WithProject(context.Background(), "proj")
	p, ok, err := api.GetProject(ctx, "proj")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, p.AtlasID.Valid)
	require.NoError(t, mock.ExpectationsWereMet())

	running := logs.FilterMessage("Running query").All()
	require.Len(t, running, 1)
	fields := running[0].ContextMap()
	assert.Equal(t, "proj", fields[logger.FieldProject])
	assert.Equal(t, []interface{}{"proj"}, fields[logger.FieldArgs])
}

func TestWithWorkers_IgnoresNonPositive(t *testing.T) {
	api := New(nil, db.SQLite, WithWorkers(0))
	assert.Equal(t, DefaultWorkers, api.workers)
	assert.Equal(t, 3, New(nil, db.SQLite, WithWorkers(3)).workers)
	assert.Equal(t, db.SQLite, api.Dialect())
}
