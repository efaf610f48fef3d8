package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bryanwahyu/leafcheck/internal/domain/analysis"
	"github.com/bryanwahyu/leafcheck/internal/domain/apperrors"
	"github.com/bryanwahyu/leafcheck/internal/domain/history"
	"github.com/bryanwahyu/leafcheck/internal/infra/db/schema"
)

// AnalysisRepository implements analysis.Repository.
type AnalysisRepository struct{ s *Store }

// Create inserts a new unverified, unfiled record and returns its id.
func (r *AnalysisRepository) Create(ctx context.Context, rec *analysis.Record) (int64, error) {
	s := r.s
	a := &s.schema.Analysis

	cols := []string{
		s.col("", a, schema.ColOwner),
		s.col("", a, schema.ColPredictedKey),
		s.col("", a, schema.ColConfidence),
		s.col("", a, schema.ColImage),
		s.col("", a, schema.ColCreatedAt),
		s.col("", a, schema.ColVerified),
	}
	args := []any{nullInt(rec.OwnerID), nullString(rec.PredictedKey), nullFloat(rec.Confidence), rec.ImageRef, rec.CreatedAt, false}
	if a.Has(schema.ColOutcomeReason) {
		cols = append(cols, s.col("", a, schema.ColOutcomeReason))
		args = append(args, nullString(rec.OutcomeReason))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.table(a), strings.Join(cols, ", "), placeholders(len(cols)))
	id, err := s.dialect.InsertID(ctx, s.db, query, a.Col(schema.ColID), args...)
	if err != nil {
		return 0, apperrors.Storage("create analysis", err)
	}
	rec.ID = id
	return id, nil
}

// Verify marks a confident record verified and files it, in one transaction.
func (r *AnalysisRepository) Verify(ctx context.Context, id, owner int64, folderID *int64, at time.Time) (*analysis.Record, error) {
	s := r.s
	a := &s.schema.Analysis
	var out *analysis.Record

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := r.checkFolder(ctx, tx, owner, folderID); err != nil {
			return err
		}

		set := []string{s.col("", a, schema.ColVerified) + " = ?"}
		args := []any{true}
		if a.Has(schema.ColVerifiedAt) {
			set = append(set, s.col("", a, schema.ColVerifiedAt)+" = ?")
			args = append(args, at)
		}
		query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ? AND %s = ? AND %s IS NOT NULL",
			s.table(a), strings.Join(set, ", "),
			s.col("", a, schema.ColID), s.col("", a, schema.ColOwner), s.col("", a, schema.ColPredictedKey))
		n, err := s.exec(ctx, tx, query, append(args, id, owner)...)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("analysis %d: %w", id, apperrors.ErrNotFound)
		}
		if err := s.assignFolder(ctx, tx, id, owner, folderID, at); err != nil {
			return err
		}
		out, err = r.get(ctx, tx, id, owner)
		return err
	})
	if err != nil {
		return nil, apperrors.Storage("verify analysis", err)
	}
	return out, nil
}

// Move files a verified record into another folder of the same owner.
func (r *AnalysisRepository) Move(ctx context.Context, id, owner int64, folderID *int64, at time.Time) (*analysis.Record, error) {
	s := r.s
	var out *analysis.Record

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := r.checkFolder(ctx, tx, owner, folderID); err != nil {
			return err
		}
		rec, err := r.get(ctx, tx, id, owner)
		if err != nil {
			return err
		}
		if !rec.Verified {
			return fmt.Errorf("analysis %d is not verified: %w", id, apperrors.ErrNotFound)
		}
		if err := s.assignFolder(ctx, tx, id, owner, folderID, at); err != nil {
			return err
		}
		out, err = r.get(ctx, tx, id, owner)
		return err
	})
	if err != nil {
		return nil, apperrors.Storage("move analysis", err)
	}
	return out, nil
}

// Get loads one record of owner.
func (r *AnalysisRepository) Get(ctx context.Context, id, owner int64) (*analysis.Record, error) {
	rec, err := r.get(ctx, r.s.db, id, owner)
	if err != nil {
		return nil, apperrors.Storage("get analysis", err)
	}
	return rec, nil
}

func (r *AnalysisRepository) get(ctx context.Context, q DBTX, id, owner int64) (*analysis.Record, error) {
	s := r.s
	query, args := s.selectItems(history.Query{OwnerID: owner, Limit: 1},
		filter{cond: s.col("a", &s.schema.Analysis, schema.ColID) + " = ?", arg: id})
	it, err := scanItem(q.QueryRowContext(ctx, s.dialect.Rebind(query), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analysis %d: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &analysis.Record{
		ID:            it.ID,
		OwnerID:       it.OwnerID,
		PredictedKey:  it.PredictedKey,
		Confidence:    it.Confidence,
		ImageRef:      it.ImageRef,
		CreatedAt:     it.CreatedAt,
		Verified:      it.Verified,
		VerifiedAt:    it.VerifiedAt,
		FolderID:      it.FolderID,
		OutcomeReason: it.OutcomeReason,
	}, nil
}

func (r *AnalysisRepository) checkFolder(ctx context.Context, tx DBTX, owner int64, folderID *int64) error {
	if folderID == nil {
		return nil
	}
	ok, err := r.s.folderOwned(ctx, tx, owner, *folderID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("folder %d: %w", *folderID, apperrors.ErrOwnership)
	}
	return nil
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
