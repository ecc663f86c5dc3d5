// Package model holds one record type per schema entity.
//
// Fields returns pointers in the column order of the entity's schema.Table, so
// a record can be scanned from and inserted into its table without reflection.
package model

import (
	"database/sql"

	"github.com/d-j-hatton/python-smartem/errors"
	"github.com/d-j-hatton/python-smartem/schema"
)

// Record is a row of one schema entity.
type Record interface {
	Entity() schema.Entity
	Fields() []any
}

// Info is a (owner, source, key, value) metric row.
type Info interface {
	Record
	Measurement() Metric
	OwnerKey() any
}

// Metric is the payload shared by every info table.
type Metric struct {
	Source string
	Key    string
	Value  float64
}

func (m *Metric) fields() []any {
	return []any{&m.Source, &m.Key, &m.Value}
}

// Image is carried by every imaging entity. Stage positions are in nanometres.
type Image struct {
	Thumbnail      string
	PixelSize      float64
	ReadoutAreaX   int64
	ReadoutAreaY   int64
	StagePositionX float64
	StagePositionY float64
}

func (i *Image) fields() []any {
	return []any{&i.Thumbnail, &i.PixelSize, &i.ReadoutAreaX, &i.ReadoutAreaY, &i.StagePositionX, &i.StagePositionY}
}

// Project is one acquisition session. AtlasID is NULL until an atlas is
// recorded and while the project is torn down.
type Project struct {
	ProjectName          string
	AcquisitionDirectory string
	ProcessingDirectory  string
	AtlasID              sql.NullInt64
}

func (*Project) Entity() schema.Entity { return schema.Project }
func (p *Project) Fields() []any {
	return []any{&p.ProjectName, &p.AcquisitionDirectory, &p.ProcessingDirectory, &p.AtlasID}
}

type Atlas struct {
	AtlasID int64
	Image
}

func (*Atlas) Entity() schema.Entity { return schema.Atlas }
func (a *Atlas) Fields() []any       { return append([]any{&a.AtlasID}, a.Image.fields()...) }

type Tile struct {
	TileID  int64
	AtlasID int64
	Image
}

func (*Tile) Entity() schema.Entity { return schema.Tile }
func (t *Tile) Fields() []any       { return append([]any{&t.TileID, &t.AtlasID}, t.Image.fields()...) }

type GridSquare struct {
	GridSquareName string
	TileID         int64
	Image
}

func (*GridSquare) Entity() schema.Entity { return schema.GridSquare }
func (g *GridSquare) Fields() []any {
	return append([]any{&g.GridSquareName, &g.TileID}, g.Image.fields()...)
}

type FoilHole struct {
	FoilHoleName   string
	GridSquareName string
	Image
}

func (*FoilHole) Entity() schema.Entity { return schema.FoilHole }
func (f *FoilHole) Fields() []any {
	return append([]any{&f.FoilHoleName, &f.GridSquareName}, f.Image.fields()...)
}

type Exposure struct {
	ExposureName string
	FoilHoleName string
	Image
}

func (*Exposure) Entity() schema.Entity { return schema.Exposure }
func (e *Exposure) Fields() []any {
	return append([]any{&e.ExposureName, &e.FoilHoleName}, e.Image.fields()...)
}

// Particle positions are pixel coordinates within the exposure.
type Particle struct {
	ParticleID   int64
	ExposureName string
	X            float64
	Y            float64
}

func (*Particle) Entity() schema.Entity { return schema.Particle }
func (p *Particle) Fields() []any {
	return []any{&p.ParticleID, &p.ExposureName, &p.X, &p.Y}
}

type ExposureInfo struct {
	ExposureName string
	Metric
}

func (*ExposureInfo) Entity() schema.Entity { return schema.ExposureInfo }
func (i *ExposureInfo) Fields() []any       { return append([]any{&i.ExposureName}, i.Metric.fields()...) }
func (i *ExposureInfo) Measurement() Metric { return i.Metric }
func (i *ExposureInfo) OwnerKey() any       { return i.ExposureName }

type ParticleInfo struct {
	ParticleID int64
	Metric
}

func (*ParticleInfo) Entity() schema.Entity { return schema.ParticleInfo }
func (i *ParticleInfo) Fields() []any       { return append([]any{&i.ParticleID}, i.Metric.fields()...) }
func (i *ParticleInfo) Measurement() Metric { return i.Metric }
func (i *ParticleInfo) OwnerKey() any       { return i.ParticleID }

type ParticleSet struct {
	Identifier  string
	ProjectName string
	GroupName   string
	ClusterID   int64
}

func (*ParticleSet) Entity() schema.Entity { return schema.ParticleSet }
func (s *ParticleSet) Fields() []any {
	return []any{&s.Identifier, &s.ProjectName, &s.GroupName, &s.ClusterID}
}

type ParticleSetInfo struct {
	SetName string
	Metric
}

func (*ParticleSetInfo) Entity() schema.Entity { return schema.ParticleSetInfo }
func (i *ParticleSetInfo) Fields() []any       { return append([]any{&i.SetName}, i.Metric.fields()...) }
func (i *ParticleSetInfo) Measurement() Metric { return i.Metric }
func (i *ParticleSetInfo) OwnerKey() any       { return i.SetName }

type ParticleSetLinker struct {
	ParticleID int64
	SetName    string
}

func (*ParticleSetLinker) Entity() schema.Entity { return schema.ParticleSetLinker }
func (l *ParticleSetLinker) Fields() []any       { return []any{&l.ParticleID, &l.SetName} }

// Values dereferences Fields for use as statement arguments.
func Values(r Record) []any {
	fields := r.Fields()
	out := make([]any, len(fields))
	for i, f := range fields {
		switch v := f.(type) {
		case *string:
			out[i] = *v
		case *int64:
			out[i] = *v
		case *float64:
			out[i] = *v
		case *sql.NullInt64:
			out[i] = *v
		default:
			out[i] = f
		}
	}
	return out
}

// NullID is a present foreign key.
func NullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: true}
}

// New returns an empty record for e, ready to scan into.
func New(e schema.Entity) (Record, error) {
	switch e {
	case schema.Project:
		return &Project{}, nil
	case schema.Atlas:
		return &Atlas{}, nil
	case schema.Tile:
		return &Tile{}, nil
	case schema.GridSquare:
		return &GridSquare{}, nil
	case schema.FoilHole:
		return &FoilHole{}, nil
	case schema.Exposure:
		return &Exposure{}, nil
	case schema.Particle:
		return &Particle{}, nil
	case schema.ExposureInfo:
		return &ExposureInfo{}, nil
	case schema.ParticleInfo:
		return &ParticleInfo{}, nil
	case schema.ParticleSet:
		return &ParticleSet{}, nil
	case schema.ParticleSetInfo:
		return &ParticleSetInfo{}, nil
	case schema.ParticleSetLinker:
		return &ParticleSetLinker{}, nil
	}
	return nil, errors.Wrapf(schema.ErrUnknownEntity, "no record type for %s", e)
}
