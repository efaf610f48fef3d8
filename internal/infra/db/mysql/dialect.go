package mysql

import (
	"context"
	"strings"

	"github.com/bryanwahyu/leafcheck/internal/infra/db/sqlstore"
)

// Dialect for MySQL: backtick identifiers, ? placeholders, LastInsertId.
type Dialect struct{}

func (Dialect) Name() string { return "mysql" }

func (Dialect) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (Dialect) Rebind(query string) string { return query }

func (Dialect) InsertID(ctx context.Context, q sqlstore.DBTX, query, _ string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
