package extract

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-j-hatton/python-smartem/db"
	"github.com/d-j-hatton/python-smartem/errors"
	smartemtest "github.com/d-j-hatton/python-smartem/internal/testing"
	"github.com/d-j-hatton/python-smartem/model"
	"github.com/d-j-hatton/python-smartem/schema"
)

func countRows(t *testing.T, database *sql.DB, e schema.Entity) int {
	t.Helper()
	var n int
	err := database.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", db.Quote(string(e)))).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestProjects(t *testing.T) {
	api, _, hier := seeded(t)
	ctx := context.Background()

	projects, err := api.GetProjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{smartemtest.Project}, projects)

	p, ok, err := api.GetProject(ctx, smartemtest.Project)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.NullID(hier.AtlasID), p.AtlasID)
	assert.Equal(t, "/dls/acquisition", p.AcquisitionDirectory)

	_, ok, err = api.GetProject(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateProject(t *testing.T) {
	api, _, _ := seeded(t)
	ctx := context.Background()

	require.NoError(t, api.UpdateProject(ctx, smartemtest.Project, "/new/acquisition", ""))

	p, _, err := api.GetProject(ctx, smartemtest.Project)
	require.NoError(t, err)
	assert.Equal(t, "/new/acquisition", p.AcquisitionDirectory)
	assert.Equal(t, "/dls/processing", p.ProcessingDirectory, "empty directory is left unchanged")

	err = api.UpdateProject(ctx, "nope", "/a", "/b")
	assert.True(t, errors.IsNotFoundError(err))

	err = api.UpdateProject(ctx, smartemtest.Project, "", "")
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestAtlases(t *testing.T) {
	api, database, hier := seeded(t)
	ctx := context.Background()

	other := smartemtest.Insert(t, database, &model.Atlas{Image: model.Image{PixelSize: 1, ReadoutAreaX: 1, ReadoutAreaY: 1}})

	atlas, ok, err := api.GetAtlasFromProject(ctx, smartemtest.Project)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, hier.AtlasID, atlas.AtlasID)

	_, ok, err = api.GetAtlasFromProject(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := api.GetAtlases(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, other, all[1].AtlasID)

	require.NoError(t, api.UpdateAtlas(ctx, hier.AtlasID, "atlas.jpg"))
	atlas, _, err = api.GetAtlasFromProject(ctx, smartemtest.Project)
	require.NoError(t, err)
	assert.Equal(t, "atlas.jpg", atlas.Thumbnail)

	assert.True(t, errors.IsNotFoundError(api.UpdateAtlas(ctx, other+1, "x")))
}

func TestDeleteProject(t *testing.T) {
	ctx := context.Background()

	t.Run("removes every row of the project", func(t *testing.T) {
		api, database, _ := seeded(t)

		// a second project with its own atlas must survive
		atlas := smartemtest.Insert(t, database, &model.Atlas{Image: model.Image{PixelSize: 1, ReadoutAreaX: 1, ReadoutAreaY: 1}})
		smartemtest.Insert(t, database, &model.Project{ProjectName: "other", AcquisitionDirectory: "a", ProcessingDirectory: "p", AtlasID: model.NullID(atlas)})
		smartemtest.Insert(t, database, &model.Tile{AtlasID: atlas, Image: model.Image{PixelSize: 1, ReadoutAreaX: 1, ReadoutAreaY: 1}})

		require.NoError(t, api.DeleteProject(ctx, smartemtest.Project))

		for _, table := range schema.DefaultTables {
			want := 0
			switch table.Entity {
			case schema.Project, schema.Atlas, schema.Tile:
				want = 1
			}
			assert.Equal(t, want, countRows(t, database, table.Entity), "%s rows", table.Entity)
		}

		projects, err := api.GetProjects(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"other"}, projects)
	})

	t.Run("project without an atlas", func(t *testing.T) {
		api, database, _ := seeded(t)
		smartemtest.Insert(t, database, &model.Project{ProjectName: "bare", AcquisitionDirectory: "a", ProcessingDirectory: "p"})

		p, ok, err := api.GetProject(ctx, "bare")
		require.NoError(t, err)
		require.True(t, ok)
		assert.False(t, p.AtlasID.Valid)

		require.NoError(t, api.DeleteProject(ctx, "bare"))
		projects, err := api.GetProjects(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{smartemtest.Project}, projects)
		assert.Equal(t, 8, countRows(t, database, schema.Particle))
	})

	t.Run("unknown project", func(t *testing.T) {
		api, _, _ := seeded(t)
		err := api.DeleteProject(ctx, "nope")
		assert.True(t, errors.IsNotFoundError(err))
	})

	t.Run("shared atlas is a conflict and nothing is deleted", func(t *testing.T) {
		api, database, hier := seeded(t)
		smartemtest.Insert(t, database, &model.Project{ProjectName: "shared", AcquisitionDirectory: "a", ProcessingDirectory: "p", AtlasID: model.NullID(hier.AtlasID)})

		err := api.DeleteProject(ctx, smartemtest.Project)
		require.Error(t, err)
		assert.True(t, errors.IsConflictError(err))
		assert.NotEmpty(t, errors.GetAllHints(err))
		assert.Equal(t, 8, countRows(t, database, schema.Particle))
		assert.Equal(t, 2, countRows(t, database, schema.Project))
	})
}

func TestTeardownPlan_FollowsTeardownOrder(t *testing.T) {
	api := New(nil, db.SQLite)
	plan, err := api.teardownPlan("proj", 1)
	require.NoError(t, err)

	var order []schema.Entity
	for _, d := range plan {
		if len(order) == 0 || order[len(order)-1] != d.entity {
			order = append(order, d.entity)
		}
	}
	assert.Equal(t, schema.TeardownOrder, order)

	query, args, err := plan[len(plan)-3].statement()
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "Atlas" WHERE "atlas_id" IN (SELECT t0."atlas_id" FROM "Atlas" t0 WHERE t0."atlas_id" = ?)`, query)
	assert.Equal(t, []any{int64(1)}, args)
}

func TestDeleteProject_RollsBackOnFailure(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "Project" t0 WHERE t0."project_name" = \$1`).
		WithArgs("proj").
		WillReturnRows(sqlmock.NewRows([]string{"project_name", "acquisition_directory", "processing_directory", "atlas_id"}).
			AddRow("proj", "a", "p", int64(1)))
	mock.ExpectQuery(`SELECT t0."project_name" FROM "Project" t0 WHERE t0."atlas_id" = \$1 AND t0."project_name" <> \$2`).
		WithArgs(int64(1), "proj").
		WillReturnRows(sqlmock.NewRows([]string{"project_name"}))
	mock.ExpectExec(`UPDATE "Project" SET "atlas_id" = NULL WHERE "project_name" = \$1`).
		WithArgs("proj").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "ParticleSetInfo"`).
		WillReturnError(fmt.Errorf("disk I/O error"))
	mock.ExpectRollback()

	api := New(mockDB, db.Postgres)
	err = api.DeleteProject(context.Background(), "proj")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ParticleSetInfo")
	require.NoError(t, mock.ExpectationsWereMet())
}
