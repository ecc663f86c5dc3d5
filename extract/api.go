// Package extract is the data access facade used by importers, viewers and
// dataset loaders.
//
// Every DataAPI call runs on the db.Handle the API was built with. Passing a
// *sql.DB lets writes open their own transaction; passing a *sql.Tx makes the
// caller's transaction the unit of work:
//
//	tx, _ := database.BeginTx(ctx, nil)
//	api := extract.New(tx, db.SQLite)
//	api.PutParticles(ctx, particles)
//	api.PutInfo(ctx, true, scores...)
//	tx.Commit()
package extract

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/d-j-hatton/python-smartem/db"
	"github.com/d-j-hatton/python-smartem/errors"
	"github.com/d-j-hatton/python-smartem/join"
	"github.com/d-j-hatton/python-smartem/logger"
	"github.com/d-j-hatton/python-smartem/metrics"
	"github.com/d-j-hatton/python-smartem/model"
	"github.com/d-j-hatton/python-smartem/schema"
)

var (
	// ErrMultipleMatches is returned when a lookup that must be unique matches more than one row.
	ErrMultipleMatches = errors.Mark(errors.New("multiple rows match a unique lookup"), errors.ErrConflict)

	// ErrOwnerMissing is returned by validated info writes whose owner does not exist.
	ErrOwnerMissing = errors.Mark(errors.New("info owner does not exist"), errors.ErrNotFound)
)

// DefaultWorkers bounds concurrent grid square aggregation when no option is given.
const DefaultWorkers = 4

// DataAPI runs named queries against one handle.
type DataAPI struct {
	h       db.Handle
	dialect db.Dialect
	graph   *schema.Graph
	logger  *zap.SugaredLogger
	metrics *metrics.Recorder
	workers int
	// log bound arguments with every query
	queryArgs bool
}

// Option configures a DataAPI.
type Option func(*DataAPI)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(a *DataAPI) { a.logger = l }
}

// WithRecorder records every operation on r.
func WithRecorder(r *metrics.Recorder) Option {
	return func(a *DataAPI) { a.metrics = r }
}

// WithGraph replaces schema.Default.
func WithGraph(g *schema.Graph) Option {
	return func(a *DataAPI) { a.graph = g }
}

// WithWorkers bounds how many grid squares GetAtlasStatsFlat aggregates at once.
func WithWorkers(n int) Option {
	return func(a *DataAPI) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithQueryArgs logs bound arguments alongside composed SQL.
func WithQueryArgs() Option {
	return func(a *DataAPI) { a.queryArgs = true }
}

// New creates a DataAPI on h.
func New(h db.Handle, d db.Dialect, opts ...Option) *DataAPI {
	a := &DataAPI{
		h:       h,
		dialect: d,
		graph:   schema.Default,
		logger:  zap.NewNop().Sugar(),
		workers: DefaultWorkers,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// WithHandle returns a copy of a that runs on h, typically a transaction.
func (a *DataAPI) WithHandle(h db.Handle) *DataAPI {
	c := *a
	c.h = h
	return &c
}

// fanOut is how many goroutines may share the handle. A *sql.Tx or *sql.Conn
// is one driver connection, and pgx cannot run overlapping queries on one.
func (a *DataAPI) fanOut() int {
	if _, ok := a.h.(*sql.DB); ok {
		return a.workers
	}
	return 1
}

// log is the API logger with the fields carried by ctx.
func (a *DataAPI) log(ctx context.Context) *zap.SugaredLogger {
	fields := logger.FieldsFromContext(ctx)
	if len(fields) == 0 {
		return a.logger
	}
	return logger.ChildLogger(a.logger, fields...)
}

// Dialect is the SQL dialect of the handle.
func (a *DataAPI) Dialect() db.Dialect {
	return a.dialect
}

// compose resolves start to end and composes the path.
func (a *DataAPI) compose(start, end schema.Entity, opts ...join.Option) (*join.Query, error) {
	path, err := a.graph.ResolvePath(start, end)
	if err != nil {
		return nil, err
	}
	if !schema.Reaches(path, end) {
		return nil, errors.Wrapf(join.ErrNotJoinable, "%s does not reach %s", start, end)
	}
	return join.Compose(a.graph, path, opts...)
}

// run executes q and records it under op.
func (a *DataAPI) run(ctx context.Context, op string, q *join.Query) ([]join.Row, error) {
	start := time.Now()
	a.debugQuery(ctx, op, q)

	rows, err := join.Run(ctx, a.h, a.dialect, q)
	a.finish(ctx, op, start, len(rows), err)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	return rows, nil
}

// strings executes a one column projection.
func (a *DataAPI) strings(ctx context.Context, op string, q *join.Query) ([]string, error) {
	start := time.Now()
	a.debugQuery(ctx, op, q)

	values, err := join.Strings(ctx, a.h, a.dialect, q)
	a.finish(ctx, op, start, len(values), err)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	return values, nil
}

// exec runs a statement written with ? placeholders.
func (a *DataAPI) exec(ctx context.Context, h db.Handle, op, query string, args ...any) (int64, error) {
	query = a.dialect.Rebind(query)
	fields := []any{logger.FieldOperation, op, logger.FieldQuery, query}
	if a.queryArgs {
		fields = append(fields, logger.FieldArgs, args)
	}
	a.log(ctx).Debugw("Executing statement", fields...)
	res, err := h.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, db.WrapQuery(err, op)
	}
	// some drivers cannot count affected rows
	n, _ := res.RowsAffected()
	return n, nil
}

func (a *DataAPI) debugQuery(ctx context.Context, op string, q *join.Query) {
	query, args, err := q.SQL(a.dialect)
	if err != nil {
		return
	}
	fields := []any{logger.FieldOperation, op, logger.FieldQuery, query}
	if a.queryArgs {
		fields = append(fields, logger.FieldArgs, args)
	}
	a.log(ctx).Debugw("Running query", fields...)
}

func (a *DataAPI) finish(ctx context.Context, op string, start time.Time, rows int, err error) {
	a.metrics.Observe(op, start, rows, err)
	if err != nil {
		a.log(ctx).Debugw("Query failed",
			logger.FieldOperation, op,
			logger.FieldError, err,
		)
		return
	}
	a.log(ctx).Debugw("Query finished",
		logger.FieldOperation, op,
		logger.FieldCount, rows,
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
}

// firsts returns the first record of every row as T.
func firsts[T model.Record](rows []join.Row) []T {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		if rec, ok := row.At(0).(T); ok {
			out = append(out, rec)
		}
	}
	return out
}

// scanOne reads a single record by query and reports whether it exists.
func scanOne[T model.Record](rows []join.Row) (T, bool) {
	var zero T
	if len(rows) == 0 {
		return zero, false
	}
	rec, ok := rows[0].At(0).(T)
	return rec, ok
}
