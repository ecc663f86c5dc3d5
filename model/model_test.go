package model

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-j-hatton/python-smartem/errors"
	"github.com/d-j-hatton/python-smartem/schema"
)

func TestNew_MatchesTableColumns(t *testing.T) {
	for _, table := range schema.DefaultTables {
		t.Run(string(table.Entity), func(t *testing.T) {
			rec, err := New(table.Entity)
			require.NoError(t, err)
			assert.Equal(t, table.Entity, rec.Entity())
			assert.Len(t, rec.Fields(), len(table.Columns))
		})
	}
}

func TestNew_Unknown(t *testing.T) {
	_, err := New("Microscope")
	assert.True(t, errors.Is(err, schema.ErrUnknownEntity))
}

func TestValues(t *testing.T) {
	p := &Particle{ParticleID: 7, ExposureName: "exp1", X: 1.5, Y: 2.5}
	assert.Equal(t, []any{int64(7), "exp1", 1.5, 2.5}, Values(p))

	info := &ExposureInfo{ExposureName: "exp1", Metric: Metric{Source: "ctffind", Key: "defocus", Value: -1.2}}
	assert.Equal(t, []any{"exp1", "ctffind", "defocus", -1.2}, Values(info))

	bare := &Project{ProjectName: "p", AcquisitionDirectory: "a", ProcessingDirectory: "b"}
	assert.Equal(t, []any{"p", "a", "b", sql.NullInt64{}}, Values(bare))
	bare.AtlasID = NullID(3)
	assert.Equal(t, sql.NullInt64{Int64: 3, Valid: true}, Values(bare)[3])
}

func TestInfoOwners(t *testing.T) {
	records := []Info{
		&ExposureInfo{ExposureName: "exp1", Metric: Metric{Key: "a", Value: 1}},
		&ParticleInfo{ParticleID: 3, Metric: Metric{Key: "b", Value: 2}},
		&ParticleSetInfo{SetName: "set", Metric: Metric{Key: "c", Value: 3}},
	}
	want := []any{"exp1", int64(3), "set"}

	for i, rec := range records {
		_, ok := schema.InfoOwners[rec.Entity()]
		assert.True(t, ok)
		assert.Equal(t, want[i], rec.OwnerKey())
		assert.Equal(t, float64(i+1), rec.Measurement().Value)
	}
}
