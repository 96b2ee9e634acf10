package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/playperu/triviabattle/internal/database"
)

//go:embed sqlite/*.sql postgres/*.sql
var fs embed.FS

// Run applies all pending migrations for driver against db.
func Run(db *sql.DB, driver string) error {
	var dialect, dir string
	switch driver {
	case database.DriverSQLite:
		dialect, dir = "sqlite3", "sqlite"
	case database.DriverPostgres:
		dialect, dir = "postgres", "postgres"
	default:
		return fmt.Errorf("no migrations for driver %q", driver)
	}

	goose.SetBaseFS(fs)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
