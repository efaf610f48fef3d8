package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bryanwahyu/leafcheck/internal/domain/apperrors"
	"github.com/bryanwahyu/leafcheck/internal/domain/catalog"
	"github.com/bryanwahyu/leafcheck/internal/infra/db/schema"
)

// CatalogRepository reads the disease catalog. Without a catalog table every
// lookup is a miss.
type CatalogRepository struct{ s *Store }

func (r *CatalogRepository) Find(ctx context.Context, key string) (*catalog.Entry, error) {
	s := r.s
	d := s.schema.Catalog
	if d == nil {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s, %s, %s, %s FROM %s d WHERE %s = ?",
		s.col("d", d, schema.ColKey), s.col("d", d, schema.ColTitle),
		s.col("d", d, schema.ColDescription), s.col("d", d, schema.ColTips),
		s.table(d), s.col("d", d, schema.ColKey))

	var (
		e                 catalog.Entry
		title, desc, tips sql.NullString
	)
	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(query), key).Scan(&e.Key, &title, &desc, &tips)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Storage("find disease", err)
	}
	e.Title = ptrString(title)
	e.Description = ptrString(desc)
	e.Tips = ptrString(tips)
	return &e, nil
}
