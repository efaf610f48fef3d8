package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/lib/pq"

	"github.com/bryanwahyu/leafcheck/internal/infra/db/sqlstore"
)

// DSN builds a lib/pq connection URL.
func DSN(host string, port int, user, password, name, sslMode string) string {
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     fmt.Sprintf("%s:%d", host, port),
		Path:     "/" + name,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

func Connect(ctx context.Context, dsn string, maxOpen int) (*sql.DB, error) {
	return sqlstore.OpenPool(ctx, "postgres", dsn, sqlstore.PoolConfig{MaxOpen: maxOpen})
}
