package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/d-j-hatton/python-smartem/db"
	"github.com/d-j-hatton/python-smartem/errors"
	"github.com/d-j-hatton/python-smartem/join"
	"github.com/d-j-hatton/python-smartem/logger"
	"github.com/d-j-hatton/python-smartem/model"
	"github.com/d-j-hatton/python-smartem/schema"
)

// Put inserts records in one transaction, in order. Auto-increment keys left
// at zero are generated and written back into their records.
func (a *DataAPI) Put(ctx context.Context, records ...model.Record) error {
	if len(records) == 0 {
		return nil
	}
	start := time.Now()
	err := db.InTx(ctx, a.h, func(tx db.Handle) error {
		return a.insertAll(ctx, tx, records)
	})
	a.finish(ctx, "put", start, len(records), err)
	return err
}

// PutParticle inserts one particle and returns its generated id.
func (a *DataAPI) PutParticle(ctx context.Context, exposure string, x, y float64) (int64, error) {
	p := &model.Particle{ExposureName: exposure, X: x, Y: y}
	if err := a.Put(ctx, p); err != nil {
		return 0, err
	}
	return p.ParticleID, nil
}

// PutParticles inserts particles in one transaction and fills in their ids.
func (a *DataAPI) PutParticles(ctx context.Context, particles []*model.Particle) error {
	records := make([]model.Record, len(particles))
	for i, p := range particles {
		records[i] = p
	}
	return a.Put(ctx, records...)
}

// PutInfo inserts metric rows. With validate set every owner is checked first
// and a missing one fails the whole call with ErrOwnerMissing.
func (a *DataAPI) PutInfo(ctx context.Context, validate bool, info ...model.Info) error {
	if len(info) == 0 {
		return nil
	}
	start := time.Now()
	err := db.InTx(ctx, a.h, func(tx db.Handle) error {
		api := a.WithHandle(tx)
		if validate {
			if err := api.checkOwners(ctx, info); err != nil {
				return err
			}
		}
		records := make([]model.Record, len(info))
		for i, in := range info {
			records[i] = in
		}
		return api.insertAll(ctx, tx, records)
	})
	a.finish(ctx, "put_info", start, len(info), err)
	return err
}

type ownerRef struct {
	entity schema.Entity
	key    any
}

func (a *DataAPI) checkOwners(ctx context.Context, info []model.Info) error {
	seen := make(map[ownerRef]bool)
	for _, in := range info {
		owner, ok := schema.InfoOwners[in.Entity()]
		if !ok {
			return errors.NewInvalidRequestError("%s is not an info table", in.Entity())
		}
		ref := ownerRef{entity: owner, key: in.OwnerKey()}
		if seen[ref] {
			continue
		}
		seen[ref] = true

		q, err := join.Compose(a.graph, []schema.Entity{owner}, join.WithAnchor(ref.key))
		if err != nil {
			return err
		}
		table, err := a.graph.Table(owner)
		if err != nil {
			return err
		}
		q.Select(owner, table.PrimaryKey)

		found, err := a.strings(ctx, "check_info_owner", q)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return errors.Wrapf(ErrOwnerMissing, "%s %v", owner, ref.key)
		}
	}
	return nil
}

func (a *DataAPI) insertAll(ctx context.Context, h db.Handle, records []model.Record) error {
	for i, rec := range records {
		if err := a.insert(ctx, h, rec); err != nil {
			return errors.Wrapf(err, "record %d", i)
		}
	}
	a.log(ctx).Debugw("Inserted records",
		logger.FieldBatchSize, len(records),
	)
	return nil
}

// insert writes one record. A zero auto-increment key is left to the
// database and read back with RETURNING.
func (a *DataAPI) insert(ctx context.Context, h db.Handle, rec model.Record) error {
	table, err := a.graph.Table(rec.Entity())
	if err != nil {
		return err
	}

	fields := rec.Fields()
	values := model.Values(rec)
	cols := make([]string, 0, len(table.Columns))
	args := make([]any, 0, len(table.Columns))
	var generated any
	for i, col := range table.Columns {
		if table.AutoIncrement && col == table.PrimaryKey && values[i] == int64(0) {
			generated = fields[i]
			continue
		}
		cols = append(cols, db.Quote(col))
		args = append(args, values[i])
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		db.Quote(table.Name()),
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
	)

	if generated == nil {
		if _, err := h.ExecContext(ctx, a.dialect.Rebind(query), args...); err != nil {
			return db.WrapQuery(err, "insert "+table.Name())
		}
		return nil
	}

	query += " RETURNING " + db.Quote(table.PrimaryKey)
	if err := h.QueryRowContext(ctx, a.dialect.Rebind(query), args...).Scan(generated); err != nil {
		return db.WrapQuery(err, "insert "+table.Name())
	}
	return nil
}
