package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"go.uber.org/zap"

	"github.com/bryanwahyu/leafcheck/migrations"
)

// Migrate applies the embedded SQLite migrations. The migrate driver closes
// the database it is given, so it gets its own handle.
func Migrate(path string, logger *zap.Logger) error {
	db, err := sql.Open("sqlite3", DSN(path))
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer db.Close()

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	return migrations.Run("sqlite", "sqlite3", driver, logger)
}
