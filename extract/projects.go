package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/d-j-hatton/python-smartem/db"
	"github.com/d-j-hatton/python-smartem/errors"
	"github.com/d-j-hatton/python-smartem/join"
	"github.com/d-j-hatton/python-smartem/logger"
	"github.com/d-j-hatton/python-smartem/model"
	"github.com/d-j-hatton/python-smartem/schema"
)

// GetProjects lists project names in order.
func (a *DataAPI) GetProjects(ctx context.Context) ([]string, error) {
	q, err := join.Compose(a.graph, []schema.Entity{schema.Project})
	if err != nil {
		return nil, err
	}
	q.Select(schema.Project, "project_name").OrderBy(schema.Project, "project_name")
	return a.strings(ctx, "get_projects", q)
}

// GetProject returns the named project. ok is false when it does not exist.
func (a *DataAPI) GetProject(ctx context.Context, name string) (*model.Project, bool, error) {
	q, err := join.Compose(a.graph, []schema.Entity{schema.Project}, join.WithAnchor(name))
	if err != nil {
		return nil, false, err
	}
	rows, err := a.run(ctx, "get_project", q)
	if err != nil {
		return nil, false, err
	}
	p, ok := scanOne[*model.Project](rows)
	return p, ok, nil
}

// UpdateProject re-points the acquisition and processing directories of a
// project. An empty directory is left unchanged.
func (a *DataAPI) UpdateProject(ctx context.Context, name, acquisition, processing string) error {
	var sets []string
	var args []any
	if acquisition != "" {
		sets = append(sets, db.Quote("acquisition_directory")+" = ?")
		args = append(args, acquisition)
	}
	if processing != "" {
		sets = append(sets, db.Quote("processing_directory")+" = ?")
		args = append(args, processing)
	}
	if len(sets) == 0 {
		return errors.NewInvalidRequestError("update project %q: nothing to change", name)
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		db.Quote(string(schema.Project)), strings.Join(sets, ", "), db.Quote("project_name"))
	n, err := a.exec(ctx, a.h, "update_project", query, append(args, name)...)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NewNotFoundError("project %q", name)
	}
	a.log(ctx).Infow("Updated project",
		logger.FieldProject, name,
	)
	return nil
}

// GetAtlasFromProject returns the atlas a project was acquired on.
func (a *DataAPI) GetAtlasFromProject(ctx context.Context, project string) (*model.Atlas, bool, error) {
	atlases, err := a.getAtlases(ctx, "get_atlas_from_project", project)
	if err != nil {
		return nil, false, err
	}
	if len(atlases) == 0 {
		return nil, false, nil
	}
	return atlases[0], true, nil
}

// GetAtlases lists the atlases of project, or every atlas when project is empty.
func (a *DataAPI) GetAtlases(ctx context.Context, project string) ([]*model.Atlas, error) {
	return a.getAtlases(ctx, "get_atlases", project)
}

func (a *DataAPI) getAtlases(ctx context.Context, op, project string) ([]*model.Atlas, error) {
	var opts []join.Option
	if project != "" {
		opts = append(opts, join.WithRoot(schema.Project, project))
	}
	q, err := join.Compose(a.graph, []schema.Entity{schema.Atlas}, opts...)
	if err != nil {
		return nil, err
	}
	q.OrderBy(schema.Atlas, "atlas_id")

	rows, err := a.run(ctx, op, q)
	if err != nil {
		return nil, err
	}
	return firsts[*model.Atlas](rows), nil
}

// UpdateAtlas replaces the thumbnail of an atlas.
func (a *DataAPI) UpdateAtlas(ctx context.Context, atlasID int64, thumbnail string) error {
	query := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?",
		db.Quote(string(schema.Atlas)), db.Quote("thumbnail"), db.Quote("atlas_id"))
	n, err := a.exec(ctx, a.h, "update_atlas", query, thumbnail, atlasID)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NewNotFoundError("atlas %d", atlasID)
	}
	return nil
}

// deletion removes the rows of entity whose column is selected by sub.
type deletion struct {
	entity schema.Entity
	column string
	sub    *join.Query
}

func (d deletion) statement() (string, []any, error) {
	inner, args, err := d.sub.Subquery()
	if err != nil {
		return "", nil, errors.Wrapf(err, "delete %s", d.entity)
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)", db.Quote(string(d.entity)), db.Quote(d.column), inner), args, nil
}

// DeleteProject removes a project with its atlas, imaging hierarchy, metrics
// and particle sets in one transaction. The atlas must not be shared with
// another project.
func (a *DataAPI) DeleteProject(ctx context.Context, name string) error {
	return db.InTx(ctx, a.h, func(tx db.Handle) error {
		api := a.WithHandle(tx)

		p, ok, err := api.GetProject(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			return errors.NewNotFoundError("project %q", name)
		}
		if err := api.checkAtlasUnshared(ctx, p); err != nil {
			return err
		}

		plan, err := api.teardownPlan(p.ProjectName, p.AtlasID.Int64)
		if err != nil {
			return err
		}

		// Project references Atlas but goes last, so the reference is cleared first
		detach := fmt.Sprintf("UPDATE %s SET %s = NULL WHERE %s = ?",
			db.Quote(string(schema.Project)), db.Quote("atlas_id"), db.Quote("project_name"))
		if _, err := api.exec(ctx, tx, "detach_project", detach, name); err != nil {
			return err
		}

		for _, d := range plan {
			query, args, err := d.statement()
			if err != nil {
				return err
			}
			n, err := api.exec(ctx, tx, "delete_project", query, args...)
			if err != nil {
				return errors.Wrapf(err, "delete %s rows of project %q", d.entity, name)
			}
			api.log(ctx).Debugw("Deleted rows",
				logger.FieldProject, name,
				logger.FieldEntity, string(d.entity),
				logger.FieldCount, n,
			)
		}

		api.log(ctx).Infow("Deleted project",
			logger.FieldProject, name,
			logger.FieldAtlasID, p.AtlasID.Int64,
		)
		return nil
	})
}

func (a *DataAPI) checkAtlasUnshared(ctx context.Context, p *model.Project) error {
	if !p.AtlasID.Valid {
		return nil
	}
	q, err := join.Compose(a.graph, []schema.Entity{schema.Project})
	if err != nil {
		return err
	}
	q.Where(schema.Project, "atlas_id", p.AtlasID.Int64).
		Compare(schema.Project, "project_name", "<>", p.ProjectName).
		Select(schema.Project, "project_name")

	others, err := a.strings(ctx, "check_atlas_shared", q)
	if err != nil {
		return err
	}
	if len(others) > 0 {
		return errors.WithHintf(
			errors.NewConflictError("atlas %d of project %q is shared with %v", p.AtlasID.Int64, p.ProjectName, others),
			"delete or re-point the other projects first")
	}
	return nil
}

// teardownPlan scopes a deletion to the project for every entity in
// schema.TeardownOrder. Imaging rows are scoped through the atlas, particle
// set rows through the project.
func (a *DataAPI) teardownPlan(project string, atlasID int64) ([]deletion, error) {
	var plan []deletion
	for _, e := range schema.TeardownOrder {
		switch e {
		case schema.ParticleSetLinker:
			sets, err := a.scopedColumn(schema.ParticleSet, project, atlasID)
			if err != nil {
				return nil, err
			}
			particles, err := a.scopedColumn(schema.Particle, project, atlasID)
			if err != nil {
				return nil, err
			}
			m := schema.ParticleSetMembership
			plan = append(plan,
				deletion{entity: e, column: m.Right.Column, sub: sets.sub},
				deletion{entity: e, column: m.Left.Column, sub: particles.sub},
			)
		default:
			d, err := a.scopedColumn(e, project, atlasID)
			if err != nil {
				return nil, err
			}
			plan = append(plan, d)
		}
	}
	return plan, nil
}

// scopedColumn selects the key column of e for the rows that belong to the
// project or its atlas. Tables without a primary key match on their foreign key.
func (a *DataAPI) scopedColumn(e schema.Entity, project string, atlasID int64) (deletion, error) {
	table, err := a.graph.Table(e)
	if err != nil {
		return deletion{}, err
	}
	column := table.PrimaryKey
	if column == "" {
		fk, ok, err := a.graph.Parent(e)
		if err != nil {
			return deletion{}, err
		}
		if !ok {
			return deletion{}, errors.AssertionFailedf("%s has no key to delete by", e)
		}
		column = fk.Column
	}

	var q *join.Query
	switch {
	case e == schema.Atlas:
		q, err = join.Compose(a.graph, []schema.Entity{e}, join.WithAnchor(atlasID))
	case e == schema.Project:
		q, err = join.Compose(a.graph, []schema.Entity{e}, join.WithAnchor(project))
	case a.reaches(e, schema.Tile):
		q, err = a.compose(e, schema.Tile, join.WithParentAnchor(atlasID))
	case a.reaches(e, schema.ParticleSet):
		q, err = a.compose(e, schema.ParticleSet, join.WithParentAnchor(project))
	default:
		return deletion{}, errors.AssertionFailedf("%s is not owned by a project", e)
	}
	if err != nil {
		return deletion{}, errors.Wrapf(err, "scope %s", e)
	}
	q.Select(e, column)
	return deletion{entity: e, column: column, sub: q}, nil
}

func (a *DataAPI) reaches(start, end schema.Entity) bool {
	path, err := a.graph.ResolvePath(start, end)
	return err == nil && schema.Reaches(path, end)
}
