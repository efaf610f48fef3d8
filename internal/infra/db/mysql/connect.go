package mysql

import (
	"context"
	"database/sql"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"github.com/bryanwahyu/leafcheck/internal/infra/db/sqlstore"
)

// DSN builds a go-sql-driver DSN with parseTime and UTC.
func DSN(host string, port int, user, password, name string) string {
	cfg := driver.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = hostPort(host, port)
	cfg.DBName = name
	cfg.ParseTime = true
	// UPDATE reports matched rows, not changed rows
	cfg.ClientFoundRows = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

// Connect opens the pool. MySQL drops idle connections after wait_timeout
// (8h by default), so connections are recycled well before that.
func Connect(ctx context.Context, dsn string, maxOpen int) (*sql.DB, error) {
	return sqlstore.OpenPool(ctx, "mysql", dsn, sqlstore.PoolConfig{
		MaxOpen:     maxOpen,
		MaxLifetime: 5 * time.Minute,
	})
}
