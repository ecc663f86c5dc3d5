package extract

import (
	"context"

	"github.com/d-j-hatton/python-smartem/aggregate"
	"github.com/d-j-hatton/python-smartem/errors"
	"github.com/d-j-hatton/python-smartem/join"
	"github.com/d-j-hatton/python-smartem/schema"
)

// GetExposureInfo returns the particle and particle set metric rows of one
// exposure. Exposure keys are not consulted.
func (a *DataAPI) GetExposureInfo(ctx context.Context, exposure string, req aggregate.Request) ([]join.Row, error) {
	req.ExposureKeys = nil
	return a.infoRows(ctx, "get_exposure_info", Scope{Exposure: exposure}, req)
}

// GetFoilHoleInfo returns the metric rows of every exposure of a foil hole.
func (a *DataAPI) GetFoilHoleInfo(ctx context.Context, foilHole string, req aggregate.Request) ([]join.Row, error) {
	return a.infoRows(ctx, "get_foil_hole_info", Scope{FoilHole: foilHole}, req)
}

// GetGridSquareInfo returns the metric rows of every exposure of a grid square.
func (a *DataAPI) GetGridSquareInfo(ctx context.Context, gridSquare string, req aggregate.Request) ([]join.Row, error) {
	return a.infoRows(ctx, "get_grid_square_info", Scope{GridSquare: gridSquare}, req)
}

// GetAtlasInfo returns the metric rows of every exposure of an atlas.
func (a *DataAPI) GetAtlasInfo(ctx context.Context, atlasID int64, req aggregate.Request) ([]join.Row, error) {
	return a.infoRows(ctx, "get_atlas_info", Scope{AtlasID: atlasID}, req)
}

// infoRows runs up to three queries, exposure, particle and particle set
// metrics, and returns their rows in that order. Each row lists its records in
// path order: the info record, then its owner and the owner's ancestors up to
// the scope's anchor. Particle set rows start at Particle and end with the
// linker and the ParticleSetInfo record.
func (a *DataAPI) infoRows(ctx context.Context, op string, s Scope, req aggregate.Request) ([]join.Row, error) {
	var out []join.Row

	if len(req.ExposureKeys) > 0 {
		q, err := a.scoped(schema.ExposureInfo, s)
		if err != nil {
			return nil, errors.Wrap(err, op)
		}
		q.WhereStrings(schema.ExposureInfo, "key", req.ExposureKeys).
			OrderBy(schema.ExposureInfo, "exposure_name").
			OrderBy(schema.ExposureInfo, "key")
		rows, err := a.run(ctx, op, q)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}

	if len(req.ParticleKeys) > 0 {
		q, err := a.scoped(schema.ParticleInfo, s)
		if err != nil {
			return nil, errors.Wrap(err, op)
		}
		q.WhereStrings(schema.ParticleInfo, "key", req.ParticleKeys).
			OrderBy(schema.ParticleInfo, "particle_id").
			OrderBy(schema.ParticleInfo, "key")
		rows, err := a.run(ctx, op, q)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}

	if len(req.ParticleSetKeys) > 0 {
		q, err := a.scoped(schema.Particle, s)
		if err != nil {
			return nil, errors.Wrap(err, op)
		}
		q.Through(schema.ParticleSetMembership, schema.ParticleSetInfo).
			WhereStrings(schema.ParticleSetInfo, "key", req.ParticleSetKeys).
			OrderBy(schema.Particle, "particle_id").
			OrderBy(schema.ParticleSetInfo, "key")
		rows, err := a.run(ctx, op, q)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}
