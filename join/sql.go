package join

import (
	"fmt"
	"strings"

	"github.com/d-j-hatton/python-smartem/db"
)

// SQL renders the query for dialect d.
func (q *Query) SQL(d db.Dialect) (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if q.unique {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(strings.Join(q.selectList(), ", "))

	for i, n := range q.nodes {
		if i == 0 {
			fmt.Fprintf(&b, " FROM %s %s", db.Quote(n.table.Name()), n.alias)
			continue
		}
		fmt.Fprintf(&b, " JOIN %s %s ON %s", db.Quote(n.table.Name()), n.alias, n.on)
	}

	if where := q.where.build(); where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	if len(q.order) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(q.order, ", "))
	}

	switch {
	case q.limit > 0:
		fmt.Fprintf(&b, " LIMIT %d", q.limit)
	case q.offset > 0 && d == db.SQLite:
		// sqlite only accepts OFFSET after LIMIT
		b.WriteString(" LIMIT -1")
	}
	if q.offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", q.offset)
	}

	args := make([]any, len(q.where.args))
	copy(args, q.where.args)
	return d.Rebind(b.String()), args, nil
}

// Subquery renders the query with ? placeholders for embedding in another
// statement, which is rebound as a whole.
func (q *Query) Subquery() (string, []any, error) {
	return q.SQL(db.SQLite)
}

func (q *Query) selectList() []string {
	if len(q.project) > 0 {
		cols := make([]string, len(q.project))
		for i, c := range q.project {
			cols[i] = c.String()
		}
		return cols
	}

	var cols []string
	for _, n := range q.nodes {
		for _, c := range n.table.Columns {
			cols = append(cols, column{n.alias, c}.String())
		}
	}
	return cols
}
