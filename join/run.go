package join

import (
	"context"
	"database/sql"

	"github.com/d-j-hatton/python-smartem/db"
	"github.com/d-j-hatton/python-smartem/errors"
	"github.com/d-j-hatton/python-smartem/model"
)

// Run executes q on h and scans every row.
func Run(ctx context.Context, h db.Handle, d db.Dialect, q *Query) ([]Row, error) {
	if len(q.project) > 0 {
		return nil, errors.New("projected query must be read with Strings or Scan")
	}
	query, args, err := q.SQL(d)
	if err != nil {
		return nil, err
	}

	rows, err := h.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, db.WrapQuery(err, "query "+entityList(q))
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		row, dest, err := q.newRow()
		if err != nil {
			return nil, err
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrapf(err, "scan %s", entityList(q))
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, db.WrapQuery(err, "iterate "+entityList(q))
	}
	return out, nil
}

// Strings executes a single-column projection and returns its values.
func Strings(ctx context.Context, h db.Handle, d db.Dialect, q *Query) ([]string, error) {
	var out []string
	err := Scan(ctx, h, d, q, func(rows *sql.Rows) error {
		var s string
		if err := rows.Scan(&s); err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

// Scan executes a projection and calls fn for every row.
func Scan(ctx context.Context, h db.Handle, d db.Dialect, q *Query, fn func(*sql.Rows) error) error {
	if len(q.project) == 0 && q.err == nil {
		return errors.New("Scan requires a projected query, use Select")
	}
	query, args, err := q.SQL(d)
	if err != nil {
		return err
	}

	rows, err := h.QueryContext(ctx, query, args...)
	if err != nil {
		return db.WrapQuery(err, "query "+entityList(q))
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return errors.Wrapf(err, "scan %s", entityList(q))
		}
	}
	if err := rows.Err(); err != nil {
		return db.WrapQuery(err, "iterate "+entityList(q))
	}
	return nil
}

func (q *Query) newRow() (Row, []any, error) {
	records := make([]model.Record, len(q.nodes))
	var dest []any
	for i, n := range q.nodes {
		rec, err := model.New(n.entity)
		if err != nil {
			return Row{}, nil, err
		}
		records[i] = rec
		dest = append(dest, rec.Fields()...)
	}
	return Row{records: records}, dest, nil
}

func entityList(q *Query) string {
	s := ""
	for i, e := range q.Entities() {
		if i > 0 {
			s += "/"
		}
		s += string(e)
	}
	return s
}
