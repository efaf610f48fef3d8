// Package sqlstore implements the analysis, folder, history and catalog
// repositories on database/sql. Queries are built from a resolved schema and
// written with ? placeholders; the Dialect rebinds them for the driver.
package sqlstore

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Dialect hides the differences between the supported SQL engines.
type Dialect interface {
	Name() string
	Quote(ident string) string
	Rebind(query string) string
	// InsertID runs an INSERT and returns the generated value of idColumn.
	InsertID(ctx context.Context, q DBTX, query, idColumn string, args ...any) (int64, error)
}
