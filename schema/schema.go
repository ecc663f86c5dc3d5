// Package schema describes the smartem tables as a static adjacency table and
// resolves foreign-key chains through it.
//
// Every imaging entity carries exactly one foreign key toward its parent.
// ParticleSetLinker is the only table with two; it is described separately by
// ManyToMany and joined explicitly instead of being walked.
package schema

import (
	"fmt"
	"sort"

	"github.com/d-j-hatton/python-smartem/errors"
)

// Entity names a table in the schema.
type Entity string

const (
	Project           Entity = "Project"
	Atlas             Entity = "Atlas"
	Tile              Entity = "Tile"
	GridSquare        Entity = "GridSquare"
	FoilHole          Entity = "FoilHole"
	Exposure          Entity = "Exposure"
	Particle          Entity = "Particle"
	ExposureInfo      Entity = "ExposureInfo"
	ParticleInfo      Entity = "ParticleInfo"
	ParticleSet       Entity = "ParticleSet"
	ParticleSetInfo   Entity = "ParticleSetInfo"
	ParticleSetLinker Entity = "ParticleSetLinker"
)

// ForeignKey references the primary key of Parent from Column.
type ForeignKey struct {
	Column       string
	Parent       Entity
	ParentColumn string
}

func (fk ForeignKey) String() string {
	return fmt.Sprintf("%s -> %s.%s", fk.Column, fk.Parent, fk.ParentColumn)
}

// Table describes one entity. Columns are in scan order and include the
// primary key and foreign key columns.
type Table struct {
	Entity        Entity
	PrimaryKey    string // empty for info and linker tables
	AutoIncrement bool
	Columns       []string
	ForeignKeys   []ForeignKey
}

// Name is the SQL table name.
func (t Table) Name() string {
	return string(t.Entity)
}

// HasColumn reports whether column belongs to the table.
func (t Table) HasColumn(column string) bool {
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// ManyToMany joins Left.Parent to Right.Parent through Linker.
type ManyToMany struct {
	Linker Entity
	Left   ForeignKey
	Right  ForeignKey
}

// Graph is an immutable set of tables. Safe for concurrent use.
type Graph struct {
	tables   map[Entity]Table
	maxDepth int
}

// NewGraph validates tables and builds a Graph whose chains are bounded by maxDepth hops.
func NewGraph(maxDepth int, tables ...Table) (*Graph, error) {
	if maxDepth < 1 {
		return nil, errors.Newf("max depth must be >= 1, got %d", maxDepth)
	}

	g := &Graph{tables: make(map[Entity]Table, len(tables)), maxDepth: maxDepth}
	for _, t := range tables {
		if _, dup := g.tables[t.Entity]; dup {
			return nil, errors.Newf("entity %s declared twice", t.Entity)
		}
		g.tables[t.Entity] = t
	}

	for _, t := range tables {
		if t.PrimaryKey != "" && !t.HasColumn(t.PrimaryKey) {
			return nil, errors.Newf("%s: primary key %s is not a column", t.Entity, t.PrimaryKey)
		}
		for _, fk := range t.ForeignKeys {
			parent, ok := g.tables[fk.Parent]
			if !ok {
				return nil, errors.Wrapf(ErrUnknownEntity, "%s references %s", t.Entity, fk.Parent)
			}
			if !t.HasColumn(fk.Column) {
				return nil, errors.Newf("%s: foreign key column %s is not a column", t.Entity, fk.Column)
			}
			if parent.PrimaryKey != fk.ParentColumn {
				return nil, errors.Newf("%s.%s must reference the primary key of %s (%s), not %s",
					t.Entity, fk.Column, fk.Parent, parent.PrimaryKey, fk.ParentColumn)
			}
		}
	}
	return g, nil
}

// MaxDepth is the longest chain, in hops, the graph will walk.
func (g *Graph) MaxDepth() int {
	return g.maxDepth
}

// Table returns the description of e.
func (g *Graph) Table(e Entity) (Table, error) {
	t, ok := g.tables[e]
	if !ok {
		return Table{}, errors.Wrapf(ErrUnknownEntity, "%s", e)
	}
	return t, nil
}

// Entities lists every entity in name order.
func (g *Graph) Entities() []Entity {
	out := make([]Entity, 0, len(g.tables))
	for e := range g.tables {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Parent returns the single foreign key of e. ok is false when e has none.
// An entity with more than one foreign key yields ErrAmbiguousChain.
func (g *Graph) Parent(e Entity) (fk ForeignKey, ok bool, err error) {
	t, err := g.Table(e)
	if err != nil {
		return ForeignKey{}, false, err
	}
	switch len(t.ForeignKeys) {
	case 0:
		return ForeignKey{}, false, nil
	case 1:
		return t.ForeignKeys[0], true, nil
	default:
		return ForeignKey{}, false, ambiguous(t)
	}
}

func ambiguous(t Table) error {
	keys := make([]string, len(t.ForeignKeys))
	for i, fk := range t.ForeignKeys {
		keys[i] = fk.String()
	}
	err := errors.Wrapf(ErrAmbiguousChain, "%s has %d foreign keys %v", t.Entity, len(keys), keys)
	return errors.WithHint(err, "join multi-parent tables explicitly through a ManyToMany description")
}
