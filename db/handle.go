package db

import (
	"context"
	"database/sql"

	"github.com/d-j-hatton/python-smartem/errors"
)

// Handle is satisfied by *sql.DB, *sql.Tx and *sql.Conn. Callers choose which
// one to pass, and with it the transaction scope of every call.
type Handle interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxBeginner is implemented by handles that can open a transaction.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// InTx runs fn in a new transaction when h can begin one, otherwise directly
// on h, which is then assumed to be a transaction owned by the caller.
func InTx(ctx context.Context, h Handle, fn func(Handle) error) error {
	beginner, ok := h.(TxBeginner)
	if !ok {
		return fn(h)
	}

	tx, err := beginner.BeginTx(ctx, nil)
	if err != nil {
		return wrapClosed(err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.WithSecondaryError(err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapClosed(err, "commit transaction")
	}
	return nil
}
