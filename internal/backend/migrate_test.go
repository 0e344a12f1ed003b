package backend

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
	).Scan(&count)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return count > 0
}

func TestMigrateUpDownRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "timercard-migrate.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := MigrateUp(db); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	for _, table := range []string{"timers", "schedules"} {
		if !tableExists(t, db, table) {
			t.Fatalf("table %s missing after up", table)
		}
	}

	// Up is idempotent.
	if err := MigrateUp(db); err != nil {
		t.Fatalf("second migrate up: %v", err)
	}

	if err := MigrateDown(db); err != nil {
		t.Fatalf("migrate down: %v", err)
	}
	for _, table := range []string{"timers", "schedules"} {
		if tableExists(t, db, table) {
			t.Fatalf("table %s still present after down", table)
		}
	}

	if err := MigrateUp(db); err != nil {
		t.Fatalf("migrate up after down: %v", err)
	}
	if !tableExists(t, db, "timers") || !tableExists(t, db, "schedules") {
		t.Fatal("schema not rebuilt after down/up")
	}
}
