package database

import (
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

// Commands accepted by Migrate.
const (
	MigrateUp     = "up"
	MigrateDown   = "down"
	MigrateStatus = "status"
	MigrateRedo   = "redo"
	MigrateReset  = "reset"
)

var gooseRun = goose.Run

// Migrate runs a goose command against db using the embedded migration files.
func Migrate(db *sql.DB, migrations fs.FS, command string, args ...string) error {
	switch command {
	case MigrateUp, MigrateDown, MigrateStatus, MigrateRedo, MigrateReset:
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := gooseRun(command, db, ".", args...); err != nil {
		return fmt.Errorf("migrate %s: %w", command, err)
	}
	return nil
}
