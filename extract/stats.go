package extract

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/d-j-hatton/python-smartem/aggregate"
	"github.com/d-j-hatton/python-smartem/errors"
	"github.com/d-j-hatton/python-smartem/logger"
	"github.com/d-j-hatton/python-smartem/schema"
)

// GetExposureStats returns the values of one particle key across the
// particles of an exposure, in particle id order.
func (a *DataAPI) GetExposureStats(ctx context.Context, exposure, key string) ([]float64, error) {
	stats, err := a.GetExposureStatsMulti(ctx, exposure, []string{key})
	if err != nil {
		return nil, err
	}
	return stats[key], nil
}

// GetExposureStatsMulti is GetExposureStats for several keys. Each key's
// series is independent: a particle missing one key still counts for the others.
func (a *DataAPI) GetExposureStatsMulti(ctx context.Context, exposure string, keys []string) (map[string][]float64, error) {
	return a.exposureStats(ctx, exposure, aggregate.Request{ParticleKeys: keys}, func(k string) aggregate.Request {
		return aggregate.Request{ParticleKeys: []string{k}}
	})
}

// GetExposureStatsParticleSet returns the values of one particle set key
// across the particles of an exposure. A particle in several sets gets the
// mean over its sets.
func (a *DataAPI) GetExposureStatsParticleSet(ctx context.Context, exposure, key string) ([]float64, error) {
	stats, err := a.GetExposureStatsParticleSetMulti(ctx, exposure, []string{key})
	if err != nil {
		return nil, err
	}
	return stats[key], nil
}

// GetExposureStatsParticleSetMulti is GetExposureStatsParticleSet for several keys.
func (a *DataAPI) GetExposureStatsParticleSetMulti(ctx context.Context, exposure string, keys []string) (map[string][]float64, error) {
	return a.exposureStats(ctx, exposure, aggregate.Request{ParticleSetKeys: keys}, func(k string) aggregate.Request {
		return aggregate.Request{ParticleSetKeys: []string{k}}
	})
}

func (a *DataAPI) exposureStats(ctx context.Context, exposure string, req aggregate.Request, single func(string) aggregate.Request) (map[string][]float64, error) {
	keys := req.Keys()
	stats := make(map[string][]float64, len(keys))
	if len(keys) == 0 {
		return stats, nil
	}

	rows, err := a.GetExposureInfo(ctx, exposure, req)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		res, err := aggregate.Aggregate(rows, single(k))
		if err != nil {
			return nil, errors.Wrapf(err, "exposure %s key %s", exposure, k)
		}
		stats[k] = res.Series[k]
	}
	a.log(ctx).Debugw("Aggregated exposure",
		logger.FieldExposure, exposure,
		logger.FieldKeys, keys,
	)
	return stats, nil
}

// GetFoilHoleStatsAll aggregates the metrics of one foil hole. In exposure
// and averaged modes the owners are the foil hole's exposures in name order.
func (a *DataAPI) GetFoilHoleStatsAll(ctx context.Context, foilHole string, req aggregate.Request) (aggregate.Result, error) {
	res, err := a.stats(ctx, "get_foil_hole_stats_all", Scope{FoilHole: foilHole}, req)
	if err != nil {
		return aggregate.Result{}, err
	}
	a.log(ctx).Debugw("Aggregated foil hole",
		logger.FieldFoilHole, foilHole,
		logger.FieldCount, res.Len(),
	)
	return res, nil
}

// FoilHoleStats is the aggregate of one foil hole.
type FoilHoleStats struct {
	FoilHole string
	aggregate.Result
}

// GetGridSquareStatsAll aggregates every foil hole of a grid square
// separately. Foil holes without complete owners have empty series.
func (a *DataAPI) GetGridSquareStatsAll(ctx context.Context, gridSquare string, req aggregate.Request) ([]FoilHoleStats, error) {
	foilHoles, err := a.GetFoilHoles(ctx, Scope{GridSquare: gridSquare})
	if err != nil {
		return nil, err
	}
	res, err := a.GetGridSquareStatsFlat(ctx, gridSquare, req)
	if err != nil {
		return nil, err
	}

	// Coverage is per owner, so splitting the aligned grid square result by
	// foil hole equals aggregating each foil hole on its own.
	byFoilHole := make(map[string]*FoilHoleStats, len(foilHoles))
	out := make([]FoilHoleStats, len(foilHoles))
	for i, fh := range foilHoles {
		out[i] = FoilHoleStats{FoilHole: fh.FoilHoleName, Result: emptyResult(res)}
		byFoilHole[fh.FoilHoleName] = &out[i]
	}
	for i, owner := range res.Owners {
		fh, ok := byFoilHole[owner.FoilHole]
		if !ok {
			continue
		}
		fh.Owners = append(fh.Owners, owner)
		for _, k := range res.Keys {
			fh.Series[k] = append(fh.Series[k], res.Series[k][i])
		}
	}
	return out, nil
}

func emptyResult(like aggregate.Result) aggregate.Result {
	r := aggregate.Result{
		Mode:   like.Mode,
		Keys:   like.Keys,
		Owners: []aggregate.Owner{},
		Series: make(map[string][]float64, len(like.Keys)),
	}
	for _, k := range like.Keys {
		r.Series[k] = []float64{}
	}
	return r
}

// GetGridSquareStatsFlat aggregates a whole grid square at once. Groups holds
// the per foil hole means of the aligned values.
func (a *DataAPI) GetGridSquareStatsFlat(ctx context.Context, gridSquare string, req aggregate.Request) (aggregate.Result, error) {
	return a.stats(ctx, "get_grid_square_stats_flat", Scope{GridSquare: gridSquare}, req, aggregate.WithGroupAverages(schema.FoilHole))
}

// GridSquareStats is the aggregate of one grid square.
type GridSquareStats struct {
	GridSquare string
	aggregate.Result
}

// GetAtlasStatsFlat runs GetGridSquareStatsFlat for every grid square of an
// atlas, at most WithWorkers at a time on a *sql.DB and one at a time on a
// transaction or connection. Results are in grid square name order.
func (a *DataAPI) GetAtlasStatsFlat(ctx context.Context, atlasID int64, req aggregate.Request) ([]GridSquareStats, error) {
	start := time.Now()
	gridSquares, err := a.GetGridSquares(ctx, Scope{AtlasID: atlasID})
	if err != nil {
		return nil, err
	}

	out := make([]GridSquareStats, len(gridSquares))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.fanOut())
	for i, gs := range gridSquares {
		i, gs := i, gs
		g.Go(func() error {
			done := a.metrics.Track()
			defer done()

			res, err := a.GetGridSquareStatsFlat(gctx, gs.GridSquareName, req)
			if err != nil {
				return errors.Wrapf(err, "grid square %s", gs.GridSquareName)
			}
			a.log(gctx).Debugw("Aggregated grid square",
				logger.FieldGridSquare, gs.GridSquareName,
				logger.FieldCount, res.Len(),
			)
			out[i] = GridSquareStats{GridSquare: gs.GridSquareName, Result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.metrics.Observe("get_atlas_stats_flat", start, 0, err)
		return nil, err
	}

	a.metrics.Observe("get_atlas_stats_flat", start, len(out), nil)
	a.log(ctx).Infow("Aggregated atlas",
		logger.FieldAtlasID, atlasID,
		logger.FieldCount, len(out),
		logger.FieldKeys, req.Keys(),
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	return out, nil
}

// stats fetches the rows of a scope and aggregates them, fixing the owner
// list to the scope's exposures outside particle mode.
func (a *DataAPI) stats(ctx context.Context, op string, s Scope, req aggregate.Request, opts ...aggregate.Option) (aggregate.Result, error) {
	if req.Mode() == aggregate.ModeNone {
		return aggregate.Aggregate(nil, req, opts...)
	}

	if req.Mode() != aggregate.ModeParticle && req.Exposures == nil {
		exposures, err := a.GetExposures(ctx, s)
		if err != nil {
			return aggregate.Result{}, err
		}
		req.Exposures = make([]string, len(exposures))
		for i, e := range exposures {
			req.Exposures[i] = e.ExposureName
		}
	}

	rows, err := a.infoRows(ctx, op, s, req)
	if err != nil {
		return aggregate.Result{}, err
	}
	res, err := aggregate.Aggregate(rows, req, opts...)
	if err != nil {
		return aggregate.Result{}, errors.Wrap(err, op)
	}
	return res, nil
}
