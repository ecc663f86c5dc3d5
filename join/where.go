package join

import (
	"strings"

	"github.com/d-j-hatton/python-smartem/errors"
	"github.com/d-j-hatton/python-smartem/schema"
)

// queryBuilder accumulates SQL WHERE clauses and parameters
type queryBuilder struct {
	whereClauses []string
	args         []any
}

// addClause appends a WHERE clause with its arguments
func (qb *queryBuilder) addClause(clause string, args ...any) {
	qb.whereClauses = append(qb.whereClauses, clause)
	qb.args = append(qb.args, args...)
}

// build returns the WHERE clauses joined with AND
func (qb *queryBuilder) build() string {
	return strings.Join(qb.whereClauses, " AND ")
}

var operators = map[string]bool{"=": true, "<>": true, "<": true, ">": true, "<=": true, ">=": true}

// Where filters e.column = value.
func (q *Query) Where(e schema.Entity, column string, value any) *Query {
	return q.Compare(e, column, "=", value)
}

// Compare filters e.column <op> value.
func (q *Query) Compare(e schema.Entity, column, op string, value any) *Query {
	if q.err != nil {
		return q
	}
	if !operators[op] {
		return q.fail(errors.Newf("unsupported operator %q", op))
	}
	col, err := q.column(e, column)
	if err != nil {
		return q.fail(err)
	}
	q.where.addClause(col.String()+" "+op+" ?", value)
	return q
}

// WhereIn filters e.column to values. An empty list matches nothing.
func (q *Query) WhereIn(e schema.Entity, column string, values ...any) *Query {
	if q.err != nil {
		return q
	}
	col, err := q.column(e, column)
	if err != nil {
		return q.fail(err)
	}
	if len(values) == 0 {
		q.where.addClause("1 = 0")
		return q
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	q.where.addClause(col.String()+" IN ("+marks+")", values...)
	return q
}

// WhereStrings is WhereIn for string values.
func (q *Query) WhereStrings(e schema.Entity, column string, values []string) *Query {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return q.WhereIn(e, column, args...)
}

// OrderBy sorts ascending by e.column. Calls accumulate.
func (q *Query) OrderBy(e schema.Entity, column string) *Query {
	if q.err != nil {
		return q
	}
	col, err := q.column(e, column)
	if err != nil {
		return q.fail(err)
	}
	q.order = append(q.order, col.String())
	return q
}

// Limit caps the number of rows. Zero means no limit.
func (q *Query) Limit(n int) *Query {
	if n < 0 {
		return q.fail(errors.Newf("limit must be >= 0, got %d", n))
	}
	q.limit = n
	return q
}

// Offset skips the first n rows.
func (q *Query) Offset(n int) *Query {
	if n < 0 {
		return q.fail(errors.Newf("offset must be >= 0, got %d", n))
	}
	q.offset = n
	return q
}

// Select projects the query onto e.column instead of whole records.
// Calls accumulate; rows are then read with Strings or Scan.
func (q *Query) Select(e schema.Entity, column string) *Query {
	if q.err != nil {
		return q
	}
	col, err := q.column(e, column)
	if err != nil {
		return q.fail(err)
	}
	q.project = append(q.project, col)
	return q
}

// Distinct removes duplicate rows.
func (q *Query) Distinct() *Query {
	q.unique = true
	return q
}

// WhereInQuery filters e.column to the values selected by sub, which must
// project exactly one column.
func (q *Query) WhereInQuery(e schema.Entity, column string, sub *Query) *Query {
	if q.err != nil {
		return q
	}
	if sub.err != nil {
		return q.fail(errors.Wrap(sub.err, "subquery"))
	}
	if len(sub.project) != 1 {
		return q.fail(errors.Newf("subquery must select one column, got %d", len(sub.project)))
	}
	col, err := q.column(e, column)
	if err != nil {
		return q.fail(err)
	}
	inner, args, err := sub.Subquery()
	if err != nil {
		return q.fail(err)
	}
	q.where.addClause(col.String()+" IN ("+inner+")", args...)
	return q
}
