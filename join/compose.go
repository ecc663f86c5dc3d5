// Package join composes one SQL query along a resolved entity path and scans
// its rows into uniform Row values.
//
// Adjacent path entities are joined child.fk = parent.pk. A query is anchored
// either directly, by filtering the last entity, or through an alternate root
// such as Project that the hierarchy's own foreign keys never reach.
package join

import (
	"fmt"

	"github.com/d-j-hatton/python-smartem/db"
	"github.com/d-j-hatton/python-smartem/errors"
	"github.com/d-j-hatton/python-smartem/schema"
)

var (
	// ErrEmptyPath is returned when there is nothing left to select.
	ErrEmptyPath = errors.New("empty join path")

	// ErrNotJoinable is returned when an entity has no key linking it to the query.
	ErrNotJoinable = errors.New("entity cannot be joined")
)

type node struct {
	entity schema.Entity
	table  schema.Table
	alias  string
	on     string // empty for the FROM table
}

type column struct {
	alias string
	name  string
}

func (c column) String() string {
	return c.alias + "." + db.Quote(c.name)
}

// anchor filters one column of the last kept path entity.
type anchor struct {
	value  any
	parent bool // filter the foreign key column instead of the primary key
}

type options struct {
	anchor    *anchor
	root      schema.Entity
	rootValue any
	skip      map[schema.Entity]bool
}

// Option configures Compose.
type Option func(*options)

// WithAnchor filters the last kept path entity by its primary key.
func WithAnchor(value any) Option {
	return func(o *options) { o.anchor = &anchor{value: value} }
}

// WithParentAnchor filters the last kept path entity by its foreign key, which
// anchors one level above the path without another join.
func WithParentAnchor(value any) Option {
	return func(o *options) { o.anchor = &anchor{value: value, parent: true} }
}

// WithRoot appends root to the query, joins it to the hierarchy through the
// entity it references and filters it by primary key.
func WithRoot(root schema.Entity, value any) Option {
	return func(o *options) {
		o.root = root
		o.rootValue = value
	}
}

// Skip leaves trailing path entities out of the query. Skipped entities must
// form a suffix of the path.
func Skip(entities ...schema.Entity) Option {
	return func(o *options) {
		if o.skip == nil {
			o.skip = make(map[schema.Entity]bool, len(entities))
		}
		for _, e := range entities {
			o.skip[e] = true
		}
	}
}

// Query is a composed join. Builder methods record the first error, which is
// returned by SQL and Run.
type Query struct {
	graph   *schema.Graph
	nodes   []node
	where   queryBuilder
	order   []string
	project []column
	limit   int
	offset  int
	unique  bool
	err     error
}

// Compose builds a query selecting every entity of path, joined pairwise.
func Compose(g *schema.Graph, path []schema.Entity, opts ...Option) (*Query, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	kept, err := trimSkipped(path, o.skip)
	if err != nil {
		return nil, err
	}

	q := &Query{graph: g}
	for i, e := range kept {
		table, err := g.Table(e)
		if err != nil {
			return nil, err
		}
		n := node{entity: e, table: table, alias: fmt.Sprintf("t%d", i)}
		if i > 0 {
			on, err := q.adjacent(q.nodes[i-1], n)
			if err != nil {
				return nil, err
			}
			n.on = on
		}
		q.nodes = append(q.nodes, n)
	}

	last := q.nodes[len(q.nodes)-1]
	if o.anchor != nil {
		col, err := anchorColumn(g, last, *o.anchor)
		if err != nil {
			return nil, err
		}
		q.where.addClause(col.String()+" = ?", o.anchor.value)
	}

	if o.root != "" {
		if err := q.joinRoot(last, o.root, o.rootValue); err != nil {
			return nil, err
		}
	}
	return q, nil
}

func trimSkipped(path []schema.Entity, skip map[schema.Entity]bool) ([]schema.Entity, error) {
	kept := path
	for len(kept) > 0 && skip[kept[len(kept)-1]] {
		kept = kept[:len(kept)-1]
	}
	for _, e := range kept {
		if skip[e] {
			return nil, errors.Newf("skipped entity %s is not at the end of path %v", e, path)
		}
		if e == "" {
			return nil, ErrEmptyPath
		}
	}
	if len(kept) == 0 {
		return nil, errors.Wrapf(ErrEmptyPath, "path %v", path)
	}
	return kept, nil
}

// adjacent joins next as the parent of prev through prev's single foreign key.
func (q *Query) adjacent(prev, next node) (string, error) {
	fk, ok, err := q.graph.Parent(prev.entity)
	if err != nil {
		return "", errors.Wrapf(err, "join %s to %s", prev.entity, next.entity)
	}
	if !ok || fk.Parent != next.entity {
		return "", errors.Wrapf(ErrNotJoinable, "%s has no foreign key to %s", prev.entity, next.entity)
	}
	return equal(column{prev.alias, fk.Column}, column{next.alias, fk.ParentColumn}), nil
}

func anchorColumn(g *schema.Graph, n node, a anchor) (column, error) {
	if !a.parent {
		if n.table.PrimaryKey == "" {
			return column{}, errors.Newf("%s has no primary key to anchor on", n.entity)
		}
		return column{n.alias, n.table.PrimaryKey}, nil
	}
	fk, ok, err := g.Parent(n.entity)
	if err != nil {
		return column{}, err
	}
	if !ok {
		return column{}, errors.Newf("%s has no foreign key to anchor on", n.entity)
	}
	return column{n.alias, fk.Column}, nil
}

// joinRoot links root to last, either because last is the entity root
// references or because both reference the same parent.
func (q *Query) joinRoot(last node, root schema.Entity, value any) error {
	table, err := q.graph.Table(root)
	if err != nil {
		return err
	}
	if q.has(root) {
		return errors.Newf("root %s is already part of the query", root)
	}
	rootFK, ok, err := q.graph.Parent(root)
	if err != nil {
		return errors.Wrapf(err, "root %s", root)
	}
	if !ok {
		return errors.Wrapf(ErrNotJoinable, "root %s has no foreign key into the hierarchy", root)
	}

	n := node{entity: root, table: table, alias: fmt.Sprintf("t%d", len(q.nodes))}
	rootCol := column{n.alias, rootFK.Column}

	switch {
	case last.entity == rootFK.Parent:
		n.on = equal(rootCol, column{last.alias, last.table.PrimaryKey})
	default:
		lastFK, ok, err := q.graph.Parent(last.entity)
		if err != nil {
			return errors.Wrapf(err, "root %s", root)
		}
		if !ok || lastFK.Parent != rootFK.Parent {
			return errors.Wrapf(ErrNotJoinable, "root %s cannot reach %s", root, last.entity)
		}
		n.on = equal(rootCol, column{last.alias, lastFK.Column})
	}

	q.nodes = append(q.nodes, n)
	q.where.addClause(column{n.alias, table.PrimaryKey}.String()+" = ?", value)
	return nil
}

// Attach joins e through its single foreign key to an entity already in the query.
func (q *Query) Attach(e schema.Entity) *Query {
	if q.err != nil {
		return q
	}
	table, err := q.graph.Table(e)
	if err != nil {
		return q.fail(err)
	}
	fk, ok, err := q.graph.Parent(e)
	if err != nil {
		return q.fail(errors.Wrapf(err, "attach %s", e))
	}
	parent, found := q.node(fk.Parent)
	if !ok || !found || q.has(e) {
		return q.fail(errors.Wrapf(ErrNotJoinable, "attach %s", e))
	}

	n := node{entity: e, table: table, alias: fmt.Sprintf("t%d", len(q.nodes))}
	n.on = equal(column{n.alias, fk.Column}, column{parent.alias, fk.ParentColumn})
	q.nodes = append(q.nodes, n)
	return q
}

// Through joins m's linker to its left entity, then target on the linker's
// right key. target is either the right entity itself or a table whose single
// foreign key references it.
func (q *Query) Through(m schema.ManyToMany, target schema.Entity) *Query {
	if q.err != nil {
		return q
	}
	left, ok := q.node(m.Left.Parent)
	if !ok {
		return q.fail(errors.Wrapf(ErrNotJoinable, "%s is not in the query for %s", m.Left.Parent, m.Linker))
	}
	if q.has(m.Linker) || q.has(target) {
		return q.fail(errors.Newf("%s or %s is already part of the query", m.Linker, target))
	}

	linkerTable, err := q.graph.Table(m.Linker)
	if err != nil {
		return q.fail(err)
	}
	linker := node{entity: m.Linker, table: linkerTable, alias: fmt.Sprintf("t%d", len(q.nodes))}
	linker.on = equal(column{linker.alias, m.Left.Column}, column{left.alias, m.Left.ParentColumn})

	targetTable, err := q.graph.Table(target)
	if err != nil {
		return q.fail(err)
	}
	t := node{entity: target, table: targetTable, alias: fmt.Sprintf("t%d", len(q.nodes)+1)}
	right := column{linker.alias, m.Right.Column}
	if target == m.Right.Parent {
		t.on = equal(column{t.alias, m.Right.ParentColumn}, right)
	} else {
		fk, ok, err := q.graph.Parent(target)
		if err != nil {
			return q.fail(errors.Wrapf(err, "join %s through %s", target, m.Linker))
		}
		if !ok || fk.Parent != m.Right.Parent {
			return q.fail(errors.Wrapf(ErrNotJoinable, "%s does not reference %s", target, m.Right.Parent))
		}
		t.on = equal(column{t.alias, fk.Column}, right)
	}

	q.nodes = append(q.nodes, linker, t)
	return q
}

// Entities lists the selected entities in row order.
func (q *Query) Entities() []schema.Entity {
	out := make([]schema.Entity, len(q.nodes))
	for i, n := range q.nodes {
		out[i] = n.entity
	}
	return out
}

// Err returns the first builder error.
func (q *Query) Err() error {
	return q.err
}

func (q *Query) fail(err error) *Query {
	if q.err == nil {
		q.err = err
	}
	return q
}

func (q *Query) node(e schema.Entity) (node, bool) {
	for _, n := range q.nodes {
		if n.entity == e {
			return n, true
		}
	}
	return node{}, false
}

func (q *Query) has(e schema.Entity) bool {
	_, ok := q.node(e)
	return ok
}

// column resolves e.name for a filter or projection.
func (q *Query) column(e schema.Entity, name string) (column, error) {
	n, ok := q.node(e)
	if !ok {
		return column{}, errors.Newf("%s is not part of the query", e)
	}
	if !n.table.HasColumn(name) {
		return column{}, errors.Newf("%s has no column %s", e, name)
	}
	return column{n.alias, name}, nil
}

func equal(a, b column) string {
	return a.String() + " = " + b.String()
}
