package history

import (
	"context"
	"strings"

	"github.com/bryanwahyu/leafcheck/internal/domain/analysis"
	"github.com/bryanwahyu/leafcheck/internal/domain/apperrors"
	"github.com/bryanwahyu/leafcheck/internal/domain/folders"
	domain "github.com/bryanwahyu/leafcheck/internal/domain/history"
)

const (
	DefaultLimit = 200
	MaxLimit     = 500
)

// Service answers the owner scoped history views.
type Service struct {
	Repo    domain.Repository
	Folders folders.Repository
	// PublicPrefix is prepended to image refs to build imageUrl.
	PublicPrefix string
}

// Filter holds the optional query parameters shared by every listing.
type Filter struct {
	Verified *bool
	Limit    int
}

func (s *Service) ListAll(ctx context.Context, owner *int64, f Filter) ([]domain.Item, error) {
	return s.list(ctx, owner, domain.ScopeAll, 0, f)
}

func (s *Service) ListUnassigned(ctx context.Context, owner *int64, f Filter) ([]domain.Item, error) {
	return s.list(ctx, owner, domain.ScopeUnassigned, 0, f)
}

// ListByFolder returns ErrNotFound when folder does not belong to owner.
func (s *Service) ListByFolder(ctx context.Context, owner *int64, folder int64, f Filter) ([]domain.Item, error) {
	if owner == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	if _, err := s.Folders.Get(ctx, *owner, folder); err != nil {
		return nil, err
	}
	return s.list(ctx, owner, domain.ScopeFolder, folder, f)
}

func (s *Service) list(ctx context.Context, owner *int64, scope domain.Scope, folder int64, f Filter) ([]domain.Item, error) {
	if owner == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	limit, err := clampLimit(f.Limit)
	if err != nil {
		return nil, err
	}
	items, err := s.Repo.List(ctx, domain.Query{
		OwnerID:  *owner,
		Scope:    scope,
		FolderID: folder,
		Verified: f.Verified,
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}
	for i := range items {
		s.decorate(&items[i])
	}
	return items, nil
}

func (s *Service) decorate(it *domain.Item) {
	if it.ImageRef != "" {
		it.ImageURL = strings.TrimSuffix(s.PublicPrefix, "/") + "/" + strings.TrimPrefix(it.ImageRef, "/")
	}
	if it.PredictedKey == nil {
		return
	}
	if plant, disease, healthy, ok := analysis.SplitPredictedKey(*it.PredictedKey); ok {
		it.PlantName, it.DiseaseName, it.IsHealthy = plant, disease, healthy
	}
}

func clampLimit(n int) (int, error) {
	switch {
	case n < 0:
		return 0, apperrors.Input(apperrors.CodeInvalidArgument, "limit must not be negative")
	case n == 0:
		return DefaultLimit, nil
	case n > MaxLimit:
		return MaxLimit, nil
	}
	return n, nil
}
