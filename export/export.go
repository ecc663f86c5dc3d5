// Package export writes foil hole training labels for downstream models.
package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/d-j-hatton/python-smartem/aggregate"
	"github.com/d-j-hatton/python-smartem/errors"
	"github.com/d-j-hatton/python-smartem/extract"
	"github.com/d-j-hatton/python-smartem/logger"
	"github.com/d-j-hatton/python-smartem/model"
	"github.com/d-j-hatton/python-smartem/stage"
)

// LabelsFile is the name of the file FoilHoles writes.
const LabelsFile = "labels.csv"

// Source is the part of extract.DataAPI the export reads.
type Source interface {
	GetProject(ctx context.Context, name string) (*model.Project, bool, error)
	GetGridSquares(ctx context.Context, s extract.Scope) ([]*model.GridSquare, error)
	GetFoilHoles(ctx context.Context, s extract.Scope) ([]*model.FoilHole, error)
	GetGridSquareStatsFlat(ctx context.Context, gridSquare string, req aggregate.Request) (aggregate.Result, error)
}

// Options selects what FoilHoles exports.
type Options struct {
	Projects        []string
	ExposureKeys    []string
	ParticleKeys    []string
	ParticleSetKeys []string
	Logger          *zap.SugaredLogger
}

func (o Options) request() aggregate.Request {
	return aggregate.Request{
		ExposureKeys:     o.ExposureKeys,
		ParticleKeys:     o.ParticleKeys,
		ParticleSetKeys:  o.ParticleSetKeys,
		AverageParticles: true,
	}
}

// Column is the CSV header of a metric key. Relion label prefixes are dropped.
func Column(key string) string {
	return strings.TrimPrefix(key, "_rln")
}

var geometryHeader = []string{
	"grid_square",
	"grid_square_thumbnail",
	"grid_square_pixel_size",
	"grid_square_x",
	"grid_square_y",
	"foil_hole",
	"foil_hole_thumbnail",
	"foil_hole_pixel_size",
	"foil_hole_x",
	"foil_hole_y",
	"foil_hole_pixel_x",
	"foil_hole_pixel_y",
}

// FoilHoles writes LabelsFile into outDir with one row per foil hole that has
// a per foil hole average for every requested key. It returns the number of
// rows written.
func FoilHoles(ctx context.Context, src Source, outDir string, opts Options) (int, error) {
	req := opts.request()
	keys := req.Keys()
	if len(keys) == 0 {
		return 0, errors.NewInvalidRequestError("export needs at least one metric key")
	}
	if len(opts.Projects) == 0 {
		return 0, errors.NewInvalidRequestError("export needs at least one project")
	}
	log := opts.Logger
	if log == nil {
		log = logger.ComponentLogger("export")
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, errors.Wrapf(err, "create %s", outDir)
	}
	path := filepath.Join(outDir, LabelsFile)
	f, err := os.Create(path)
	if err != nil {
		return 0, errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{}, geometryHeader...)
	for _, k := range keys {
		header = append(header, Column(k))
	}
	if err := w.Write(header); err != nil {
		return 0, errors.Wrap(err, "write header")
	}

	total := 0
	for _, project := range opts.Projects {
		n, err := writeProject(ctx, src, w, project, req)
		if err != nil {
			return total, errors.Wrapf(err, "export project %q", project)
		}
		total += n
		log.Infow("Exported foil holes",
			logger.FieldProject, project,
			logger.FieldCount, n,
		)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return total, errors.Wrapf(err, "write %s", path)
	}
	return total, f.Close()
}

func writeProject(ctx context.Context, src Source, w *csv.Writer, project string, req aggregate.Request) (int, error) {
	if _, ok, err := src.GetProject(ctx, project); err != nil {
		return 0, err
	} else if !ok {
		return 0, errors.NewNotFoundError("project %q", project)
	}

	gridSquares, err := src.GetGridSquares(ctx, extract.Scope{Project: project})
	if err != nil {
		return 0, err
	}
	foilHoles, err := src.GetFoilHoles(ctx, extract.Scope{Project: project})
	if err != nil {
		return 0, err
	}
	byGridSquare := make(map[string][]*model.FoilHole, len(gridSquares))
	for _, fh := range foilHoles {
		byGridSquare[fh.GridSquareName] = append(byGridSquare[fh.GridSquareName], fh)
	}

	keys := req.Keys()
	written := 0
	for _, gs := range gridSquares {
		res, err := src.GetGridSquareStatsFlat(ctx, gs.GridSquareName, req)
		if err != nil {
			return written, err
		}
		for _, fh := range byGridSquare[gs.GridSquareName] {
			values, ok := averages(res, keys, fh.FoilHoleName)
			if !ok {
				continue
			}
			if err := w.Write(record(gs, fh, values)); err != nil {
				return written, errors.Wrap(err, "write row")
			}
			written++
		}
	}
	return written, nil
}

// averages returns the group mean of every key for one foil hole, or false
// when any key has none.
func averages(res aggregate.Result, keys []string, foilHole string) ([]float64, bool) {
	values := make([]float64, len(keys))
	for i, k := range keys {
		v, ok := res.Groups[k][foilHole]
		if !ok || aggregate.IsMissing(v) {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}

func record(gs *model.GridSquare, fh *model.FoilHole, values []float64) []string {
	px := stage.PixelIn(fh.Image, gs.Image, stage.NoFlip)
	rec := []string{
		gs.GridSquareName,
		gs.Thumbnail,
		formatFloat(gs.PixelSize),
		formatFloat(gs.StagePositionX),
		formatFloat(gs.StagePositionY),
		fh.FoilHoleName,
		fh.Thumbnail,
		formatFloat(fh.PixelSize),
		formatFloat(fh.StagePositionX),
		formatFloat(fh.StagePositionY),
		strconv.Itoa(px.X),
		strconv.Itoa(px.Y),
	}
	for _, v := range values {
		rec = append(rec, formatFloat(v))
	}
	return rec
}

// formatFloat leaves NaN cells empty.
func formatFloat(v float64) string {
	if aggregate.IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
