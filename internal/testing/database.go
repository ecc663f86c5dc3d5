package testing

import (
	"context"
	"database/sql"
	"testing"

	"github.com/d-j-hatton/python-smartem/db"
)

// CreateTestDB creates an in-memory SQLite database with every migration applied.
// Automatically registers cleanup via t.Cleanup().
func CreateTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database := CreateEmptyDB(t)
	if err := db.Migrate(context.Background(), database, db.SQLite, nil); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return database
}

// CreateEmptyDB creates an in-memory SQLite database without migrations.
func CreateEmptyDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := sql.Open("sqlite3", db.SQLiteDSN(":memory:"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	// Every pooled connection would get its own in-memory database
	database.SetMaxOpenConns(1)

	t.Cleanup(func() {
		database.Close()
	})

	return database
}
