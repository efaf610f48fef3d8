package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/leafcheck/internal/infra/db/schema"
)

// Store owns the connection and the resolved schema shared by the repositories.
type Store struct {
	db      *sql.DB
	dialect Dialect
	schema  *schema.Schema
	logger  *zap.Logger
}

func New(db *sql.DB, d Dialect, s *schema.Schema, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, dialect: d, schema: s, logger: logger.Named("sqlstore")}
}

func (s *Store) Analyses() *AnalysisRepository { return &AnalysisRepository{s} }
func (s *Store) Folders() *FolderRepository     { return &FolderRepository{s} }
func (s *Store) History() *HistoryRepository    { return &HistoryRepository{s} }
func (s *Store) Diseases() *CatalogRepository   { return &CatalogRepository{s} }

// col renders alias.column for a logical column, or NULL when absent.
func (s *Store) col(alias string, t *schema.Table, logical string) string {
	phys := t.Col(logical)
	if phys == "" {
		return "NULL"
	}
	if alias == "" {
		return s.dialect.Quote(phys)
	}
	return alias + "." + s.dialect.Quote(phys)
}

func (s *Store) table(t *schema.Table) string { return s.dialect.Quote(t.Name) }

// withTx runs fn in a transaction, rolling back on error. Every statement in
// fn must go through tx.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	return tx.Commit()
}

func (s *Store) exec(ctx context.Context, q DBTX, query string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// folderOwned reports whether folder id belongs to owner.
func (s *Store) folderOwned(ctx context.Context, q DBTX, owner, id int64) (bool, error) {
	f := &s.schema.Folders
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ? AND %s = ?",
		s.table(f), s.col("", f, schema.ColID), s.col("", f, schema.ColOwner))
	var one int
	err := q.QueryRowContext(ctx, s.dialect.Rebind(query), id, owner).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// assignFolder points analysis id at folder (nil clears it). In association
// mode the saved row is updated or inserted, and a folder column on the
// analysis table, when present, is kept in step.
func (s *Store) assignFolder(ctx context.Context, tx DBTX, id, owner int64, folder *int64, at time.Time) error {
	a := &s.schema.Analysis
	if a.Has(schema.ColFolder) {
		query := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ? AND %s = ?",
			s.table(a), s.col("", a, schema.ColFolder), s.col("", a, schema.ColID), s.col("", a, schema.ColOwner))
		if _, err := s.exec(ctx, tx, query, nullInt(folder), id, owner); err != nil {
			return err
		}
	}
	if s.schema.FolderMode != schema.FolderAssociation {
		return nil
	}

	sv := s.schema.Saved
	set := []string{s.col("", sv, schema.ColFolder) + " = ?"}
	args := []any{nullInt(folder)}
	if sv.Has(schema.ColSavedAt) {
		set = append(set, s.col("", sv, schema.ColSavedAt)+" = ?")
		args = append(args, at)
	}
	update := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ? AND %s = ?",
		s.table(sv), strings.Join(set, ", "), s.col("", sv, schema.ColAnalysis), s.col("", sv, schema.ColOwner))
	n, err := s.exec(ctx, tx, update, append(args, id, owner)...)
	if err != nil || n > 0 {
		return err
	}

	cols := []string{s.col("", sv, schema.ColAnalysis), s.col("", sv, schema.ColOwner), s.col("", sv, schema.ColFolder)}
	vals := []any{id, owner, nullInt(folder)}
	if sv.Has(schema.ColSavedAt) {
		cols = append(cols, s.col("", sv, schema.ColSavedAt))
		vals = append(vals, at)
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.table(sv), strings.Join(cols, ", "), placeholders(len(cols)))
	_, err = s.exec(ctx, tx, insert, vals...)
	return err
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func ptrInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func ptrFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func ptrString(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func ptrTime(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	v := n.Time.UTC()
	return &v
}
