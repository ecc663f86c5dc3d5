package extract

import (
	"context"

	"github.com/d-j-hatton/python-smartem/errors"
	"github.com/d-j-hatton/python-smartem/join"
	"github.com/d-j-hatton/python-smartem/model"
	"github.com/d-j-hatton/python-smartem/schema"
	"github.com/d-j-hatton/python-smartem/stage"
)

// Scope narrows a hierarchy listing. The deepest set field above the listed
// entity anchors the query; with none set the listing covers Project.
// Fields at or below the listed entity are ignored.
type Scope struct {
	Project    string
	AtlasID    int64
	TileID     int64
	GridSquare string
	FoilHole   string
	Exposure   string
}

// anchor returns the deepest level above depth that s fixes.
func (s Scope) anchor(depth int) (schema.Entity, any, bool) {
	candidates := []struct {
		level schema.Entity
		value any
		set   bool
	}{
		{schema.Exposure, s.Exposure, s.Exposure != ""},
		{schema.FoilHole, s.FoilHole, s.FoilHole != ""},
		{schema.GridSquare, s.GridSquare, s.GridSquare != ""},
		{schema.Tile, s.TileID, s.TileID != 0},
		{schema.Atlas, s.AtlasID, s.AtlasID != 0},
	}
	for _, c := range candidates {
		if c.set && hierarchyDepth(c.level) < depth {
			return c.level, c.value, true
		}
	}
	return "", nil, false
}

func hierarchyDepth(e schema.Entity) int {
	for i, h := range schema.Hierarchy {
		if h == e {
			return i
		}
	}
	return len(schema.Hierarchy)
}

// scoped composes the walk from start up to the scope's anchor. The anchor
// entity itself is skipped and matched on the foreign key below it. Without
// an anchor the walk stops at Tile and joins Project through the atlas.
// Info tables sit one level below their owner, so they can be anchored on it.
func (a *DataAPI) scoped(start schema.Entity, s Scope) (*join.Query, error) {
	depth := hierarchyDepth(start)
	if owner, ok := schema.InfoOwners[start]; ok {
		depth = hierarchyDepth(owner) + 1
	}
	if level, value, ok := s.anchor(depth); ok {
		return a.compose(start, level, join.Skip(level), join.WithParentAnchor(value))
	}
	if s.Project == "" {
		return nil, errors.NewInvalidRequestError("listing %s needs a project or an anchor", start)
	}
	return a.compose(start, schema.Atlas, join.Skip(schema.Atlas), join.WithRoot(schema.Project, s.Project))
}

// GetTiles lists the tiles of an atlas.
func (a *DataAPI) GetTiles(ctx context.Context, atlasID int64) ([]*model.Tile, error) {
	q, err := a.scoped(schema.Tile, Scope{AtlasID: atlasID})
	if err != nil {
		return nil, err
	}
	q.OrderBy(schema.Tile, "tile_id")
	rows, err := a.run(ctx, "get_tiles", q)
	if err != nil {
		return nil, err
	}
	return firsts[*model.Tile](rows), nil
}

// GetTile finds the tile of atlasID whose field of view contains p.
func (a *DataAPI) GetTile(ctx context.Context, atlasID int64, p stage.Point) (*model.Tile, bool, error) {
	tiles, err := a.GetTiles(ctx, atlasID)
	if err != nil {
		return nil, false, err
	}
	for _, t := range tiles {
		if stage.Contains(t.Image, p) {
			return t, true, nil
		}
	}
	return nil, false, nil
}

// GetTileID is GetTile returning only the id.
func (a *DataAPI) GetTileID(ctx context.Context, atlasID int64, p stage.Point) (int64, bool, error) {
	t, ok, err := a.GetTile(ctx, atlasID, p)
	if err != nil || !ok {
		return 0, false, err
	}
	return t.TileID, true, nil
}

// GetGridSquares lists grid squares in name order.
func (a *DataAPI) GetGridSquares(ctx context.Context, s Scope) ([]*model.GridSquare, error) {
	rows, err := a.list(ctx, "get_grid_squares", schema.GridSquare, "grid_square_name", s)
	if err != nil {
		return nil, err
	}
	return firsts[*model.GridSquare](rows), nil
}

// GetFoilHoles lists foil holes in name order.
func (a *DataAPI) GetFoilHoles(ctx context.Context, s Scope) ([]*model.FoilHole, error) {
	rows, err := a.list(ctx, "get_foil_holes", schema.FoilHole, "foil_hole_name", s)
	if err != nil {
		return nil, err
	}
	return firsts[*model.FoilHole](rows), nil
}

// GetExposures lists exposures in name order.
func (a *DataAPI) GetExposures(ctx context.Context, s Scope) ([]*model.Exposure, error) {
	rows, err := a.list(ctx, "get_exposures", schema.Exposure, "exposure_name", s)
	if err != nil {
		return nil, err
	}
	return firsts[*model.Exposure](rows), nil
}

func (a *DataAPI) list(ctx context.Context, op string, e schema.Entity, order string, s Scope) ([]join.Row, error) {
	q, err := a.scoped(e, s)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	q.OrderBy(e, order)
	return a.run(ctx, op, q)
}

// ParticleFilter selects particles for GetParticles.
type ParticleFilter struct {
	Scope

	// Source keeps particles with at least one ParticleInfo row from this source.
	Source string
	// Group keeps particles linked to a particle set of this group.
	Group string

	Limit  int
	Offset int
}

// GetParticles lists particles in id order.
func (a *DataAPI) GetParticles(ctx context.Context, f ParticleFilter) ([]*model.Particle, error) {
	q, err := a.scoped(schema.Particle, f.Scope)
	if err != nil {
		return nil, errors.Wrap(err, "get_particles")
	}

	if f.Source != "" {
		sourced, err := join.Compose(a.graph, []schema.Entity{schema.ParticleInfo})
		if err != nil {
			return nil, err
		}
		sourced.Where(schema.ParticleInfo, "source", f.Source).Select(schema.ParticleInfo, "particle_id")
		q.WhereInQuery(schema.Particle, "particle_id", sourced)
	}

	if f.Group != "" {
		sets, err := a.particleSetQuery(f.Project, f.Group, nil, "")
		if err != nil {
			return nil, err
		}
		sets.Select(schema.ParticleSet, "identifier")

		m := schema.ParticleSetMembership
		members, err := join.Compose(a.graph, []schema.Entity{m.Linker})
		if err != nil {
			return nil, err
		}
		members.WhereInQuery(m.Linker, m.Right.Column, sets).Select(m.Linker, m.Left.Column)
		q.WhereInQuery(schema.Particle, "particle_id", members)
	}

	q.OrderBy(schema.Particle, "particle_id").Limit(f.Limit).Offset(f.Offset)
	rows, err := a.run(ctx, "get_particles", q)
	if err != nil {
		return nil, err
	}
	return firsts[*model.Particle](rows), nil
}

// particleSetQuery selects the sets of project, optionally restricted by
// group, identifiers and the source of their ParticleSetInfo rows. An empty
// project selects sets of every project.
func (a *DataAPI) particleSetQuery(project, group string, ids []string, source string) (*join.Query, error) {
	var opts []join.Option
	if project != "" {
		opts = append(opts, join.WithParentAnchor(project))
	}
	q, err := join.Compose(a.graph, []schema.Entity{schema.ParticleSet}, opts...)
	if err != nil {
		return nil, err
	}
	if group != "" {
		q.Where(schema.ParticleSet, "group_name", group)
	}
	if ids != nil {
		q.WhereStrings(schema.ParticleSet, "identifier", ids)
	}
	if source != "" {
		sourced, err := join.Compose(a.graph, []schema.Entity{schema.ParticleSetInfo})
		if err != nil {
			return nil, err
		}
		sourced.Where(schema.ParticleSetInfo, "source", source).Select(schema.ParticleSetInfo, "set_name")
		q.WhereInQuery(schema.ParticleSet, "identifier", sourced)
	}
	return q, nil
}

// GetParticleSets lists the particle sets of project. group, ids and source
// narrow the list when set; a non-nil empty ids matches nothing.
func (a *DataAPI) GetParticleSets(ctx context.Context, project, group string, ids []string, source string) ([]*model.ParticleSet, error) {
	q, err := a.particleSetQuery(project, group, ids, source)
	if err != nil {
		return nil, err
	}
	q.OrderBy(schema.ParticleSet, "identifier")
	rows, err := a.run(ctx, "get_particle_sets", q)
	if err != nil {
		return nil, err
	}
	return firsts[*model.ParticleSet](rows), nil
}

// GetParticleLinkers lists set memberships of the sets GetParticleSets would return.
func (a *DataAPI) GetParticleLinkers(ctx context.Context, project string, ids []string, source string) ([]*model.ParticleSetLinker, error) {
	sets, err := a.particleSetQuery(project, "", ids, source)
	if err != nil {
		return nil, err
	}
	sets.Select(schema.ParticleSet, "identifier")

	m := schema.ParticleSetMembership
	q, err := join.Compose(a.graph, []schema.Entity{m.Linker})
	if err != nil {
		return nil, err
	}
	q.WhereInQuery(m.Linker, m.Right.Column, sets).
		OrderBy(m.Linker, m.Left.Column).
		OrderBy(m.Linker, m.Right.Column)

	rows, err := a.run(ctx, "get_particle_linkers", q)
	if err != nil {
		return nil, err
	}
	return firsts[*model.ParticleSetLinker](rows), nil
}

// GetParticleID finds the particle picked at (x, y) on an exposure. No match
// is reported with ok false; more than one match is ErrMultipleMatches.
func (a *DataAPI) GetParticleID(ctx context.Context, exposure string, x, y float64) (int64, bool, error) {
	q, err := join.Compose(a.graph, []schema.Entity{schema.Particle}, join.WithParentAnchor(exposure))
	if err != nil {
		return 0, false, err
	}
	q.Where(schema.Particle, "x", x).Where(schema.Particle, "y", y).Limit(2)

	rows, err := a.run(ctx, "get_particle_id", q)
	if err != nil {
		return 0, false, err
	}
	switch len(rows) {
	case 0:
		return 0, false, nil
	case 1:
		p, _ := join.Get[*model.Particle](rows[0])
		return p.ParticleID, true, nil
	}
	return 0, false, errors.Wrapf(ErrMultipleMatches, "particles on exposure %s at (%g, %g)", exposure, x, y)
}
