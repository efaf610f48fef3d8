package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bryanwahyu/leafcheck/internal/domain/apperrors"
	"github.com/bryanwahyu/leafcheck/internal/domain/folders"
	"github.com/bryanwahyu/leafcheck/internal/infra/db/schema"
)

// FolderRepository implements folders.Repository.
type FolderRepository struct{ s *Store }

func (r *FolderRepository) selectFolders() string {
	s := r.s
	f := &s.schema.Folders
	return fmt.Sprintf("SELECT %s, %s, %s, %s FROM %s",
		s.col("", f, schema.ColID), s.col("", f, schema.ColOwner),
		s.col("", f, schema.ColName), s.col("", f, schema.ColCreatedAt), s.table(f))
}

func scanFolder(row rowScanner) (folders.Folder, error) {
	var f folders.Folder
	if err := row.Scan(&f.ID, &f.OwnerID, &f.Name, &f.CreatedAt); err != nil {
		return folders.Folder{}, err
	}
	f.CreatedAt = f.CreatedAt.UTC()
	return f, nil
}

func (r *FolderRepository) List(ctx context.Context, owner int64) ([]folders.Folder, error) {
	s := r.s
	f := &s.schema.Folders
	query := fmt.Sprintf("%s WHERE %s = ? ORDER BY %s DESC, %s DESC",
		r.selectFolders(), s.col("", f, schema.ColOwner), s.col("", f, schema.ColCreatedAt), s.col("", f, schema.ColID))
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), owner)
	if err != nil {
		return nil, apperrors.Storage("list folders", err)
	}
	defer rows.Close()

	out := make([]folders.Folder, 0)
	for rows.Next() {
		fo, err := scanFolder(rows)
		if err != nil {
			return nil, apperrors.Storage("list folders", err)
		}
		out = append(out, fo)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage("list folders", err)
	}
	return out, nil
}

func (r *FolderRepository) Get(ctx context.Context, owner, id int64) (*folders.Folder, error) {
	fo, err := r.get(ctx, r.s.db, owner, id)
	if err != nil {
		return nil, apperrors.Storage("get folder", err)
	}
	return fo, nil
}

func (r *FolderRepository) get(ctx context.Context, q DBTX, owner, id int64) (*folders.Folder, error) {
	s := r.s
	f := &s.schema.Folders
	query := fmt.Sprintf("%s WHERE %s = ? AND %s = ?",
		r.selectFolders(), s.col("", f, schema.ColID), s.col("", f, schema.ColOwner))
	fo, err := scanFolder(q.QueryRowContext(ctx, s.dialect.Rebind(query), id, owner))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("folder %d: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &fo, nil
}

func (r *FolderRepository) Create(ctx context.Context, owner int64, name string, at time.Time) (*folders.Folder, error) {
	s := r.s
	f := &s.schema.Folders
	query := fmt.Sprintf("INSERT INTO %s (%s, %s, %s) VALUES (?, ?, ?)", s.table(f),
		s.col("", f, schema.ColOwner), s.col("", f, schema.ColName), s.col("", f, schema.ColCreatedAt))
	id, err := s.dialect.InsertID(ctx, s.db, query, f.Col(schema.ColID), owner, name, at)
	if err != nil {
		return nil, apperrors.Storage("create folder", err)
	}
	return &folders.Folder{ID: id, OwnerID: owner, Name: name, CreatedAt: at}, nil
}

func (r *FolderRepository) Rename(ctx context.Context, owner, id int64, name string) (*folders.Folder, error) {
	s := r.s
	f := &s.schema.Folders
	var out *folders.Folder
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ? AND %s = ?", s.table(f),
			s.col("", f, schema.ColName), s.col("", f, schema.ColID), s.col("", f, schema.ColOwner))
		n, err := s.exec(ctx, tx, query, name, id, owner)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("folder %d: %w", id, apperrors.ErrNotFound)
		}
		out, err = r.get(ctx, tx, owner, id)
		return err
	})
	if err != nil {
		return nil, apperrors.Storage("rename folder", err)
	}
	return out, nil
}

// Delete clears every reference to the folder, then removes it, in one
// transaction. Analyses are never deleted.
func (r *FolderRepository) Delete(ctx context.Context, owner, id int64) (int64, error) {
	s := r.s
	f := &s.schema.Folders
	a := &s.schema.Analysis
	var unassigned int64

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := s.folderOwned(ctx, tx, owner, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("folder %d: %w", id, apperrors.ErrNotFound)
		}

		if a.Has(schema.ColFolder) {
			query := fmt.Sprintf("UPDATE %s SET %s = NULL WHERE %s = ?",
				s.table(a), s.col("", a, schema.ColFolder), s.col("", a, schema.ColFolder))
			n, err := s.exec(ctx, tx, query, id)
			if err != nil {
				return err
			}
			unassigned = n
		}
		if sv := s.schema.Saved; s.schema.FolderMode == schema.FolderAssociation {
			query := fmt.Sprintf("UPDATE %s SET %s = NULL WHERE %s = ?",
				s.table(sv), s.col("", sv, schema.ColFolder), s.col("", sv, schema.ColFolder))
			n, err := s.exec(ctx, tx, query, id)
			if err != nil {
				return err
			}
			unassigned = n
		}

		query := fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND %s = ?",
			s.table(f), s.col("", f, schema.ColID), s.col("", f, schema.ColOwner))
		_, err = s.exec(ctx, tx, query, id, owner)
		return err
	})
	if err != nil {
		return 0, apperrors.Storage("delete folder", err)
	}
	s.logger.Debug("folder deleted")
	return unassigned, nil
}
