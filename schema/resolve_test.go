package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-j-hatton/python-smartem/errors"
)

func TestResolvePath_DefaultChains(t *testing.T) {
	tests := []struct {
		start, end Entity
		want       []Entity
	}{
		{ExposureInfo, Atlas, []Entity{ExposureInfo, Exposure, FoilHole, GridSquare, Tile, Atlas}},
		{ParticleInfo, Atlas, []Entity{ParticleInfo, Particle, Exposure, FoilHole, GridSquare, Tile, Atlas}},
		{ParticleSetInfo, Atlas, []Entity{ParticleSetInfo, ParticleSet, Project, Atlas}},
		{GridSquare, Tile, []Entity{GridSquare, Tile}},
		{ExposureInfo, FoilHole, []Entity{ExposureInfo, Exposure, FoilHole}},
		{Exposure, Exposure, []Entity{Exposure}},
	}

	for _, tt := range tests {
		t.Run(string(tt.start)+"->"+string(tt.end), func(t *testing.T) {
			got, err := ResolvePath(tt.start, tt.end)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, Reaches(got, tt.end))
		})
	}
}

func TestResolvePath_Deterministic(t *testing.T) {
	for i, start := range Hierarchy {
		for j := 0; j <= i; j++ {
			end := Hierarchy[j]
			first, err := ResolvePath(start, end)
			require.NoError(t, err)
			assert.Len(t, first, i-j+1, "%s to %s", start, end)

			for n := 0; n < 5; n++ {
				again, err := ResolvePath(start, end)
				require.NoError(t, err)
				assert.Equal(t, first, again)
			}
		}
	}
}

func TestResolvePath_PartialWhenUnreachable(t *testing.T) {
	// Atlas has no foreign key, so the walk stops there
	got, err := ResolvePath(Tile, Project)
	require.NoError(t, err)
	assert.Equal(t, []Entity{Tile, Atlas}, got)
	assert.False(t, Reaches(got, Project))
}

func TestResolvePath_Ambiguous(t *testing.T) {
	t.Run("linker as start", func(t *testing.T) {
		_, err := ResolvePath(ParticleSetLinker, ParticleSet)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrAmbiguousChain))
		assert.NotEmpty(t, errors.GetAllHints(err))
	})

	t.Run("intermediate node", func(t *testing.T) {
		g, err := NewGraph(MaxChainDepth,
			Table{Entity: "Root", PrimaryKey: "id", Columns: []string{"id"}},
			Table{Entity: "Other", PrimaryKey: "id", Columns: []string{"id"}},
			Table{
				Entity:     "Middle",
				PrimaryKey: "id",
				Columns:    []string{"id", "root_id", "other_id"},
				ForeignKeys: []ForeignKey{
					{Column: "root_id", Parent: "Root", ParentColumn: "id"},
					{Column: "other_id", Parent: "Other", ParentColumn: "id"},
				},
			},
			Table{
				Entity:      "Leaf",
				PrimaryKey:  "id",
				Columns:     []string{"id", "middle_id"},
				ForeignKeys: []ForeignKey{{Column: "middle_id", Parent: "Middle", ParentColumn: "id"}},
			},
		)
		require.NoError(t, err)

		_, err = g.ResolvePath("Leaf", "Root")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrAmbiguousChain))
		assert.Contains(t, err.Error(), "Middle")

		// stopping before the ambiguous node is fine
		path, err := g.ResolvePath("Leaf", "Middle")
		require.NoError(t, err)
		assert.Equal(t, []Entity{"Leaf", "Middle"}, path)
	})
}

func TestResolvePath_TooDeep(t *testing.T) {
	tables := []Table{{Entity: "E0", PrimaryKey: "id", Columns: []string{"id"}}}
	for i := 1; i <= 4; i++ {
		tables = append(tables, Table{
			Entity:      Entity("E" + string(rune('0'+i))),
			PrimaryKey:  "id",
			Columns:     []string{"id", "parent"},
			ForeignKeys: []ForeignKey{{Column: "parent", Parent: Entity("E" + string(rune('0'+i-1))), ParentColumn: "id"}},
		})
	}
	g, err := NewGraph(2, tables...)
	require.NoError(t, err)

	_, err = g.ResolvePath("E4", "E0")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChainTooDeep))

	path, err := g.ResolvePath("E4", "E2")
	require.NoError(t, err)
	assert.Equal(t, []Entity{"E4", "E3", "E2"}, path)
}

func TestResolvePath_UnknownEntity(t *testing.T) {
	_, err := ResolvePath("Microscope", Atlas)
	assert.True(t, errors.Is(err, ErrUnknownEntity))

	_, err = ResolvePath(Exposure, "Microscope")
	assert.True(t, errors.Is(err, ErrUnknownEntity))
}
