package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/bryanwahyu/leafcheck/internal/infra/db/sqlstore"
)

// Dialect for PostgreSQL: $n placeholders and INSERT ... RETURNING.
type Dialect struct{}

func (Dialect) Name() string { return "postgres" }

func (Dialect) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// Rebind rewrites ? placeholders to $1..$n.
func (Dialect) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (d Dialect) InsertID(ctx context.Context, q sqlstore.DBTX, query, idColumn string, args ...any) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, d.Rebind(query)+" RETURNING "+d.Quote(idColumn), args...).Scan(&id)
	return id, err
}
