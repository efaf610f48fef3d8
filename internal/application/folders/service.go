package folders

import (
	"context"

	"go.uber.org/zap"

	"github.com/bryanwahyu/leafcheck/internal/application"
	"github.com/bryanwahyu/leafcheck/internal/domain/apperrors"
	domain "github.com/bryanwahyu/leafcheck/internal/domain/folders"
)

// Service implements owner scoped folder use-cases.
type Service struct {
	Repo   domain.Repository
	Clock  application.Clock
	Logger *zap.Logger
}

func (s *Service) List(ctx context.Context, owner *int64) ([]domain.Folder, error) {
	if owner == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	return s.Repo.List(ctx, *owner)
}

func (s *Service) Create(ctx context.Context, owner *int64, name string) (*domain.Folder, error) {
	if owner == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	name, err := domain.NormalizeName(name)
	if err != nil {
		return nil, err
	}
	now := application.SystemClock{}.Now()
	if s.Clock != nil {
		now = s.Clock.Now()
	}
	return s.Repo.Create(ctx, *owner, name, now)
}

func (s *Service) Rename(ctx context.Context, owner *int64, id int64, name string) (*domain.Folder, error) {
	if owner == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	name, err := domain.NormalizeName(name)
	if err != nil {
		return nil, err
	}
	return s.Repo.Rename(ctx, *owner, id, name)
}

// Delete removes the folder and returns how many analyses became unassigned.
// Analyses themselves are kept.
func (s *Service) Delete(ctx context.Context, owner *int64, id int64) (int64, error) {
	if owner == nil {
		return 0, apperrors.ErrUnauthenticated
	}
	n, err := s.Repo.Delete(ctx, *owner, id)
	if err != nil {
		return 0, err
	}
	if s.Logger != nil {
		s.Logger.Info("folder deleted", zap.Int64("folder", id), zap.Int64("unassigned", n))
	}
	return n, nil
}
