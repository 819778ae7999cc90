package sqlite_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/mmiller-dev/folio/internal/infra/sqlite"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := mustOpenDB(t)

	if v, err := sqlite.MigrationVersion(ctx, db); err != nil || v != 0 {
		t.Fatalf("MigrationVersion() before MigrateUp = %d, %v; want 0, nil", v, err)
	}
	if err := sqlite.MigrateUp(ctx, db); err != nil {
		t.Fatalf("MigrateUp() error = %v; want nil", err)
	}

	assertTableExists(t, db, "session_kv")
	if v, err := sqlite.MigrationVersion(ctx, db); err != nil || v != 1 {
		t.Errorf("MigrationVersion() = %d, %v; want 1, nil", v, err)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := mustOpenDB(t)

	for run := 1; run <= 3; run++ {
		if err := sqlite.MigrateUp(ctx, db); err != nil {
			t.Fatalf("MigrateUp() run %d error = %v; want nil", run, err)
		}
	}
	if n := countRows(t, db, "schema_migrations"); n != 1 {
		t.Errorf("schema_migrations rows = %d; want 1", n)
	}
}

// session_kv is keyed by (session_id, key).
func TestMigrateUp_SessionKeyIsPrimary(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	if err := sqlite.MigrateUp(context.Background(), db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	insert := `INSERT INTO session_kv (session_id, key, value, updated_at, expires_at)
		VALUES (?, 'chatMessages', '[]', 0, 1)`
	for _, tt := range []struct {
		session string
		wantErr bool
	}{
		{session: "s-1"},
		{session: "s-2"},
		{session: "s-1", wantErr: true},
	} {
		_, err := db.Exec(insert, tt.session)
		if (err != nil) != tt.wantErr {
			t.Errorf("insert session %q error = %v; wantErr %v", tt.session, err, tt.wantErr)
		}
	}
	if n := countRows(t, db, "session_kv"); n != 2 {
		t.Errorf("session_kv rows = %d; want 2", n)
	}
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

// assertTableExists fails the test if the given table doesn't exist in the DB.
func assertTableExists(t *testing.T, db *sql.DB, tableName string) {
	t.Helper()

	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
		tableName,
	).Scan(&name)
	if err == sql.ErrNoRows {
		t.Errorf("table %q not found in sqlite_master", tableName)
		return
	}
	if err != nil {
		t.Fatalf("assertTableExists(%q) query error = %v", tableName, err)
	}
}
