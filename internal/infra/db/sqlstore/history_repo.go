package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/bryanwahyu/leafcheck/internal/domain/apperrors"
	"github.com/bryanwahyu/leafcheck/internal/domain/history"
	"github.com/bryanwahyu/leafcheck/internal/infra/db/schema"
)

// HistoryRepository answers the owner scoped history listings.
type HistoryRepository struct{ s *Store }

const defaultHistoryLimit = 200

// List returns the owner's records joined with the disease catalog and the
// current folder, newest first with id as tiebreak.
func (r *HistoryRepository) List(ctx context.Context, q history.Query) ([]history.Item, error) {
	query, args := r.s.selectItems(q)
	rows, err := r.s.db.QueryContext(ctx, r.s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, apperrors.Storage("list history", err)
	}
	defer rows.Close()

	out := make([]history.Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, apperrors.Storage("list history", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage("list history", err)
	}
	return out, nil
}

// folderExpr is where the current folder of alias "a" lives.
func (s *Store) folderExpr() string {
	if s.schema.FolderMode == schema.FolderAssociation {
		return s.col("sr", s.schema.Saved, schema.ColFolder)
	}
	return s.col("a", &s.schema.Analysis, schema.ColFolder)
}

// filter is an extra WHERE condition with one placeholder.
type filter struct {
	cond string
	arg  any
}

// selectItems builds the joined listing query. Single record lookups reuse
// it with an id filter.
func (s *Store) selectItems(q history.Query, extra ...filter) (string, []any) {
	a := &s.schema.Analysis
	d := s.schema.Catalog

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s",
		s.col("a", a, schema.ColID),
		s.col("a", a, schema.ColOwner),
		s.col("a", a, schema.ColPredictedKey),
		s.col("a", a, schema.ColConfidence),
		s.col("a", a, schema.ColImage),
		s.col("a", a, schema.ColCreatedAt),
		s.col("a", a, schema.ColVerified),
		s.col("a", a, schema.ColVerifiedAt),
		s.folderExpr(),
		s.col("a", a, schema.ColOutcomeReason),
		s.col("d", d, schema.ColTitle),
		s.col("d", d, schema.ColDescription),
		s.col("d", d, schema.ColTips),
	)
	fmt.Fprintf(&b, " FROM %s a", s.table(a))
	if sv := s.schema.Saved; s.schema.FolderMode == schema.FolderAssociation {
		fmt.Fprintf(&b, " LEFT JOIN %s sr ON %s = %s AND %s = %s",
			s.table(sv),
			s.col("sr", sv, schema.ColAnalysis), s.col("a", a, schema.ColID),
			s.col("sr", sv, schema.ColOwner), s.col("a", a, schema.ColOwner))
	}
	if d != nil {
		fmt.Fprintf(&b, " LEFT JOIN %s d ON %s = %s",
			s.table(d), s.col("d", d, schema.ColKey), s.col("a", a, schema.ColPredictedKey))
	}

	where := []string{s.col("a", a, schema.ColOwner) + " = ?"}
	args := []any{q.OwnerID}
	switch q.Scope {
	case history.ScopeUnassigned:
		where = append(where, s.folderExpr()+" IS NULL")
	case history.ScopeFolder:
		where = append(where, s.folderExpr()+" = ?")
		args = append(args, q.FolderID)
	}
	if q.Verified != nil {
		where = append(where, s.col("a", a, schema.ColVerified)+" = ?")
		args = append(args, *q.Verified)
	}
	for _, f := range extra {
		where = append(where, f.cond)
		args = append(args, f.arg)
	}
	fmt.Fprintf(&b, " WHERE %s", strings.Join(where, " AND "))
	fmt.Fprintf(&b, " ORDER BY %s DESC, %s DESC",
		s.col("a", a, schema.ColCreatedAt), s.col("a", a, schema.ColID))

	limit := q.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	b.WriteString(" LIMIT ?")
	args = append(args, limit)
	return b.String(), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (history.Item, error) {
	var (
		it         history.Item
		owner      sql.NullInt64
		key        sql.NullString
		conf       sql.NullFloat64
		verifiedAt sql.NullTime
		folder     sql.NullInt64
		reason     sql.NullString
		title      sql.NullString
		desc       sql.NullString
		tips       sql.NullString
	)
	if err := row.Scan(
		&it.ID, &owner, &key, &conf, &it.ImageRef, &it.CreatedAt, &it.Verified,
		&verifiedAt, &folder, &reason, &title, &desc, &tips,
	); err != nil {
		return history.Item{}, err
	}
	it.CreatedAt = it.CreatedAt.UTC()
	it.OwnerID = ptrInt(owner)
	it.PredictedKey = ptrString(key)
	it.Confidence = ptrFloat(conf)
	it.VerifiedAt = ptrTime(verifiedAt)
	it.FolderID = ptrInt(folder)
	it.OutcomeReason = ptrString(reason)
	it.Title = ptrString(title)
	it.Description = ptrString(desc)
	it.Tips = ptrString(tips)
	return it, nil
}
