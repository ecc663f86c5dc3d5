package join

import (
	"github.com/d-j-hatton/python-smartem/model"
	"github.com/d-j-hatton/python-smartem/schema"
)

// Row holds one record per selected entity, in query order. A single-entity
// query still yields a Row.
type Row struct {
	records []model.Record
}

// NewRow builds a Row from records in query order.
func NewRow(records ...model.Record) Row {
	return Row{records: records}
}

// Len is the number of records in the row.
func (r Row) Len() int {
	return len(r.records)
}

// At returns the i-th record.
func (r Row) At(i int) model.Record {
	return r.records[i]
}

// Records returns the records in query order.
func (r Row) Records() []model.Record {
	return r.records
}

// Get returns the record of entity e.
func (r Row) Get(e schema.Entity) (model.Record, bool) {
	for _, rec := range r.records {
		if rec.Entity() == e {
			return rec, true
		}
	}
	return nil, false
}

// Info returns the first info record of the row.
func (r Row) Info() (model.Info, bool) {
	for _, rec := range r.records {
		if info, ok := rec.(model.Info); ok {
			return info, true
		}
	}
	return nil, false
}

// Get returns the first record of type T in r.
func Get[T model.Record](r Row) (T, bool) {
	for _, rec := range r.records {
		if typed, ok := rec.(T); ok {
			return typed, true
		}
	}
	var zero T
	return zero, false
}
