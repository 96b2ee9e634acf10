// Package storetest opens migrated throwaway stores for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/playperu/triviabattle/internal/battle"
	"github.com/playperu/triviabattle/internal/database"
	"github.com/playperu/triviabattle/internal/migrations"
	"github.com/playperu/triviabattle/internal/store"
)

// New returns a store backed by a fresh SQLite file in t.TempDir().
func New(t testing.TB) *store.SQLStore {
	t.Helper()
	ctx := context.Background()

	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "battle.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := migrations.Run(db, database.DriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	s, err := store.New(db, database.DriverSQLite)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

// Session creates a session named name.
func Session(t testing.TB, s store.Store, name string) battle.Session {
	t.Helper()
	sess, err := s.UpsertSession(context.Background(), "fp-"+name, name)
	if err != nil {
		t.Fatalf("upsert session %s: %v", name, err)
	}
	return sess
}
