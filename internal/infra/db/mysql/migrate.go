package mysql

import (
	"database/sql"
	"fmt"

	driver "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"go.uber.org/zap"

	"github.com/bryanwahyu/leafcheck/migrations"
)

// Migrate applies the embedded MySQL migrations. The migration files hold
// several statements each, so multiStatements is forced on.
func Migrate(dsn string, logger *zap.Logger) error {
	cfg, err := driver.ParseDSN(dsn)
	if err != nil {
		return fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.MultiStatements = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer db.Close()

	drv, err := mysql.WithInstance(db, &mysql.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	return migrations.Run("mysql", "mysql", drv, logger)
}
