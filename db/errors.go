package db

import (
	"strings"

	"github.com/d-j-hatton/python-smartem/errors"
)

// ErrDatabaseClosed is returned when operations are attempted on a closed database.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed checks if an error indicates the database connection is closed.
// The string match covers raw database/sql and driver errors that never carry
// ErrDatabaseClosed.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}

// wrapClosed wraps err with msg, marking it ErrDatabaseClosed when the
// underlying connection is gone.
func wrapClosed(err error, msg string) error {
	if IsDatabaseClosed(err) {
		err = errors.Mark(err, ErrDatabaseClosed)
	}
	return errors.Wrap(err, msg)
}

// WrapQuery is wrapClosed for callers outside the package.
func WrapQuery(err error, msg string) error {
	return wrapClosed(err, msg)
}
