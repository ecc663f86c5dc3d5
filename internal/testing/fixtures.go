package testing

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/d-j-hatton/python-smartem/db"
	"github.com/d-j-hatton/python-smartem/model"
	"github.com/d-j-hatton/python-smartem/schema"
)

// Project is the project name used by SeedHierarchy.
const Project = "proj"

// Hierarchy records what SeedHierarchy inserted.
type Hierarchy struct {
	AtlasID     int64
	TileID      int64
	GridSquares []string
	FoilHoles   map[string][]string // grid square -> foil holes
	Exposures   map[string]string   // foil hole -> exposure
	Particles   map[string][]int64  // exposure -> particle ids
	Defocus     map[string]float64  // exposure -> defocus value
}

// ParticleScores are the "score" values of the two particles in every exposure.
var ParticleScores = []float64{0.2, 0.8}

// Insert writes rec with a plain INSERT and returns the generated id for
// auto-increment tables left at zero.
func Insert(t *testing.T, h db.Handle, rec model.Record) int64 {
	t.Helper()

	table, err := schema.Default.Table(rec.Entity())
	if err != nil {
		t.Fatalf("Insert %s: %v", rec.Entity(), err)
	}

	cols := make([]string, 0, len(table.Columns))
	args := make([]any, 0, len(table.Columns))
	for i, v := range model.Values(rec) {
		col := table.Columns[i]
		if table.AutoIncrement && col == table.PrimaryKey && v == int64(0) {
			continue
		}
		cols = append(cols, db.Quote(col))
		args = append(args, v)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		db.Quote(table.Name()),
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
	)
	res, err := h.ExecContext(context.Background(), query, args...)
	if err != nil {
		t.Fatalf("Insert %s: %v", rec.Entity(), err)
	}
	id, _ := res.LastInsertId()
	return id
}

func image(x, y float64) model.Image {
	return model.Image{
		Thumbnail:      "thumb.jpg",
		PixelSize:      10,
		ReadoutAreaX:   100,
		ReadoutAreaY:   100,
		StagePositionX: x,
		StagePositionY: y,
	}
}

// SeedHierarchy inserts one Atlas, one Tile, two grid squares with two foil
// holes each, one exposure per foil hole and two particles per exposure
// scored 0.2 and 0.8. Every exposure also gets a "defocus" value.
func SeedHierarchy(t *testing.T, h db.Handle) Hierarchy {
	t.Helper()

	hier := Hierarchy{
		FoilHoles: map[string][]string{},
		Exposures: map[string]string{},
		Particles: map[string][]int64{},
		Defocus:   map[string]float64{},
	}

	hier.AtlasID = Insert(t, h, &model.Atlas{Image: image(0, 0)})
	Insert(t, h, &model.Project{
		ProjectName:          Project,
		AcquisitionDirectory: "/dls/acquisition",
		ProcessingDirectory:  "/dls/processing",
		AtlasID:              model.NullID(hier.AtlasID),
	})
	// covers stage positions within 500nm of the origin
	hier.TileID = Insert(t, h, &model.Tile{AtlasID: hier.AtlasID, Image: image(0, 0)})

	defocus := 1.0
	for g := 1; g <= 2; g++ {
		gs := fmt.Sprintf("gs%d", g)
		hier.GridSquares = append(hier.GridSquares, gs)
		Insert(t, h, &model.GridSquare{GridSquareName: gs, TileID: hier.TileID, Image: image(float64(g*100), float64(g*100))})

		for f := 1; f <= 2; f++ {
			fh := fmt.Sprintf("%s-fh%d", gs, f)
			hier.FoilHoles[gs] = append(hier.FoilHoles[gs], fh)
			Insert(t, h, &model.FoilHole{FoilHoleName: fh, GridSquareName: gs, Image: image(float64(f*10), float64(f*10))})

			exp := fh + "-exp"
			hier.Exposures[fh] = exp
			Insert(t, h, &model.Exposure{ExposureName: exp, FoilHoleName: fh, Image: image(float64(f*10), float64(f*10))})
			Insert(t, h, &model.ExposureInfo{ExposureName: exp, Metric: model.Metric{Source: "ctf", Key: "defocus", Value: defocus}})
			hier.Defocus[exp] = defocus
			defocus++

			for i, score := range ParticleScores {
				id := Insert(t, h, &model.Particle{ExposureName: exp, X: float64(i * 50), Y: float64(i * 50)})
				hier.Particles[exp] = append(hier.Particles[exp], id)
				Insert(t, h, &model.ParticleInfo{ParticleID: id, Metric: model.Metric{Source: "cryolo", Key: "score", Value: score}})
			}
		}
	}
	return hier
}

// SeedParticleSets puts the first particle of every exposure into set "class-1"
// and the second into "class-2", both in group "2d", with a "resolution" per set.
func SeedParticleSets(t *testing.T, h db.Handle, hier Hierarchy) {
	t.Helper()

	sets := []struct {
		name       string
		cluster    int64
		resolution float64
	}{
		{"class-1", 1, 3.5},
		{"class-2", 2, 7.0},
	}
	for _, s := range sets {
		Insert(t, h, &model.ParticleSet{Identifier: s.name, ProjectName: Project, GroupName: "2d", ClusterID: s.cluster})
		Insert(t, h, &model.ParticleSetInfo{SetName: s.name, Metric: model.Metric{Source: "relion", Key: "resolution", Value: s.resolution}})
	}

	for _, ids := range hier.Particles {
		for i, id := range ids {
			Insert(t, h, &model.ParticleSetLinker{ParticleID: id, SetName: sets[i].name})
		}
	}
}
