package migrations_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/playperu/triviabattle/internal/database"
	"github.com/playperu/triviabattle/internal/migrations"
)

func TestMigrations(t *testing.T) {
	db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "battle.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	if err := migrations.Run(db, database.DriverSQLite); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	// Verify all tables exist by querying sqlite_master.
	want := []string{"sessions", "rooms", "teams", "participants", "rounds", "answers", "bank_questions", "admins", "admin_sessions"}

	for _, table := range want {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "battle.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	if err := migrations.Run(db, database.DriverSQLite); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := migrations.Run(db, database.DriverSQLite); err != nil {
		t.Fatalf("second run (should be no-op): %v", err)
	}
}

func TestMigrationsUnknownDriver(t *testing.T) {
	if err := migrations.Run(nil, "oracle"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
