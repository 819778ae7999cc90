package sqlite_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/mmiller-dev/folio/internal/infra/sqlite"
)

func TestNewDB_Pragmas(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)

	tests := []struct {
		pragma string
		want   string
	}{
		{pragma: "journal_mode", want: "wal"},
		{pragma: "foreign_keys", want: "1"},
		{pragma: "busy_timeout", want: "5000"},
		{pragma: "synchronous", want: "1"}, // NORMAL
		{pragma: "cache_size", want: "-8000"},
	}
	for _, tt := range tests {
		var got string
		if err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got); err != nil {
			t.Fatalf("PRAGMA %s scan error = %v", tt.pragma, err)
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q; want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestNewDB_FilePool(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	if got := db.Stats().MaxOpenConnections; got != 4 {
		t.Errorf("MaxOpenConnections = %d; want 4", got)
	}
	if err := db.Ping(); err != nil {
		t.Fatalf("db.Ping() error = %v; want nil", err)
	}
}

// An in-memory database must live on one connection, otherwise each
// connection would see its own empty database.
func TestNewDB_InMemory(t *testing.T) {
	t.Parallel()

	db, err := sqlite.NewDB(":memory:")
	if err != nil {
		t.Fatalf("NewDB(\":memory:\") error = %v; want nil", err)
	}
	defer db.Close()

	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("in-memory MaxOpenConnections = %d; want 1", got)
	}
	if _, err := db.Exec("CREATE TABLE probe (id INTEGER)"); err != nil {
		t.Fatalf("create probe table: %v", err)
	}
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM probe").Scan(&n); err != nil {
		t.Fatalf("probe table not visible on the next statement: %v", err)
	}
}

func TestNewDB_InvalidDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nonexistent_dir", "db.sqlite")

	db, err := sqlite.NewDB(path)
	if err == nil {
		db.Close()
		t.Errorf("NewDB(%q) = nil error; want error for non-existent parent dir", path)
	}
}

func TestOpen_CreatesDirectoryAndSchema(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache", "folio", "sessions.db")
	db, err := sqlite.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open(%q) error = %v; want nil", path, err)
	}
	defer db.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected DB file %q to exist: %v", path, err)
	}
	assertTableExists(t, db, "session_kv")

	// Opening again must not re-apply migrations.
	again, err := sqlite.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("second Open error = %v; want nil", err)
	}
	defer again.Close()
	if v, _ := sqlite.MigrationVersion(context.Background(), again); v != 1 {
		t.Errorf("MigrationVersion = %d; want 1", v)
	}
}

// --- helpers ---

// mustOpenDB opens a temp SQLite DB, registers cleanup, and fails the test on error.
func mustOpenDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.NewDB(tempDBPath(t))
	if err != nil {
		t.Fatalf("sqlite.NewDB error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// tempDBPath returns a unique temp file path for a test DB (auto-cleaned).
func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.sqlite")
}
