package schema

// MaxChainDepth bounds walks in the Default graph. ParticleInfo to Atlas is the
// longest chain at six hops.
const MaxChainDepth = 6

// Image columns shared by every imaging entity.
var imageColumns = []string{
	"thumbnail",
	"pixel_size",
	"readout_area_x",
	"readout_area_y",
	"stage_position_x",
	"stage_position_y",
}

func with(cols ...string) []string {
	return append(cols, imageColumns...)
}

func fk(column string, parent Entity, parentColumn string) ForeignKey {
	return ForeignKey{Column: column, Parent: parent, ParentColumn: parentColumn}
}

// DefaultTables is the smartem schema.
var DefaultTables = []Table{
	{
		Entity:      Project,
		PrimaryKey:  "project_name",
		Columns:     []string{"project_name", "acquisition_directory", "processing_directory", "atlas_id"},
		ForeignKeys: []ForeignKey{fk("atlas_id", Atlas, "atlas_id")},
	},
	{
		Entity:        Atlas,
		PrimaryKey:    "atlas_id",
		AutoIncrement: true,
		Columns:       with("atlas_id"),
	},
	{
		Entity:        Tile,
		PrimaryKey:    "tile_id",
		AutoIncrement: true,
		Columns:       with("tile_id", "atlas_id"),
		ForeignKeys:   []ForeignKey{fk("atlas_id", Atlas, "atlas_id")},
	},
	{
		Entity:      GridSquare,
		PrimaryKey:  "grid_square_name",
		Columns:     with("grid_square_name", "tile_id"),
		ForeignKeys: []ForeignKey{fk("tile_id", Tile, "tile_id")},
	},
	{
		Entity:      FoilHole,
		PrimaryKey:  "foil_hole_name",
		Columns:     with("foil_hole_name", "grid_square_name"),
		ForeignKeys: []ForeignKey{fk("grid_square_name", GridSquare, "grid_square_name")},
	},
	{
		Entity:      Exposure,
		PrimaryKey:  "exposure_name",
		Columns:     with("exposure_name", "foil_hole_name"),
		ForeignKeys: []ForeignKey{fk("foil_hole_name", FoilHole, "foil_hole_name")},
	},
	{
		Entity:        Particle,
		PrimaryKey:    "particle_id",
		AutoIncrement: true,
		Columns:       []string{"particle_id", "exposure_name", "x", "y"},
		ForeignKeys:   []ForeignKey{fk("exposure_name", Exposure, "exposure_name")},
	},
	{
		Entity:      ExposureInfo,
		Columns:     []string{"exposure_name", "source", "key", "value"},
		ForeignKeys: []ForeignKey{fk("exposure_name", Exposure, "exposure_name")},
	},
	{
		Entity:      ParticleInfo,
		Columns:     []string{"particle_id", "source", "key", "value"},
		ForeignKeys: []ForeignKey{fk("particle_id", Particle, "particle_id")},
	},
	{
		Entity:      ParticleSet,
		PrimaryKey:  "identifier",
		Columns:     []string{"identifier", "project_name", "group_name", "cluster_id"},
		ForeignKeys: []ForeignKey{fk("project_name", Project, "project_name")},
	},
	{
		Entity:      ParticleSetInfo,
		Columns:     []string{"set_name", "source", "key", "value"},
		ForeignKeys: []ForeignKey{fk("set_name", ParticleSet, "identifier")},
	},
	{
		Entity:  ParticleSetLinker,
		Columns: []string{"particle_id", "set_name"},
		ForeignKeys: []ForeignKey{
			fk("particle_id", Particle, "particle_id"),
			fk("set_name", ParticleSet, "identifier"),
		},
	},
}

// ParticleSetMembership links particles to the sets they belong to.
var ParticleSetMembership = ManyToMany{
	Linker: ParticleSetLinker,
	Left:   fk("particle_id", Particle, "particle_id"),
	Right:  fk("set_name", ParticleSet, "identifier"),
}

// Hierarchy lists the imaging entities root first.
var Hierarchy = []Entity{Atlas, Tile, GridSquare, FoilHole, Exposure, Particle}

// InfoOwners maps each info entity to the entity its rows describe.
var InfoOwners = map[Entity]Entity{
	ExposureInfo:    Exposure,
	ParticleInfo:    Particle,
	ParticleSetInfo: ParticleSet,
}

// TeardownOrder deletes a project without violating foreign keys. The
// imaging hierarchy goes child to parent; Project.atlas_id is cleared before
// Atlas rows are removed and the project row goes last.
var TeardownOrder = []Entity{
	ParticleSetInfo,
	ParticleSetLinker,
	ParticleInfo,
	ExposureInfo,
	Particle,
	Exposure,
	FoilHole,
	GridSquare,
	Tile,
	Atlas,
	ParticleSet,
	Project,
}

// Default is the graph of DefaultTables.
var Default = mustGraph(NewGraph(MaxChainDepth, DefaultTables...))

func mustGraph(g *Graph, err error) *Graph {
	if err != nil {
		panic(err)
	}
	return g
}
