// Package testing provides testing utilities and helpers for the betbridge project.
package testing

import (
	"database/sql"
	"fmt"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3" // cgo driver for in-memory repository tests
	_ "modernc.org/sqlite"

	"github.com/pyethone/betbridge/internal/database"
)

// NewTestDB creates a temporary-file SQLite database through database.New, the same
// path production takes, and applies the embedded schema for name.
// Returns the database instance and a cleanup function that closes and removes it.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", fmt.Sprintf("test_%s_*.db", name))
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	return db, func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
		for _, suffix := range []string{"", "-wal", "-shm"} {
			_ = os.Remove(tmpPath + suffix)
		}
	}
}

// NewMemoryDB opens an in-memory database (mattn/go-sqlite3) with the embedded
// schema for name applied. The pool is pinned to one connection so every query
// sees the same in-memory database. Closed automatically at test end.
func NewMemoryDB(t *testing.T, name string) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })

	schema, err := database.Schema(name)
	if err != nil {
		t.Fatalf("Failed to load schema %s: %v", name, err)
	}
	if _, err := conn.Exec(schema); err != nil {
		t.Fatalf("Failed to apply schema %s: %v", name, err)
	}
	return conn
}
