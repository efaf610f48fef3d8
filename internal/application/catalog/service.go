package catalog

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	domain "github.com/bryanwahyu/leafcheck/internal/domain/catalog"
)

// miss is cached for labels without an entry so unseen labels do not hit
// the database on every request.
type miss struct{}

// Service is a read-through cache over the disease catalog.
type Service struct {
	repo   domain.Repository
	cache  *gocache.Cache
	logger *zap.Logger
}

func NewService(repo domain.Repository, ttl time.Duration, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		cache:  gocache.New(ttl, 2*ttl),
		logger: logger.Named("catalog"),
	}
}

// Lookup returns the entry for key, or nil when the catalog has none.
func (s *Service) Lookup(ctx context.Context, key string) (*domain.Entry, error) {
	if key == "" {
		return nil, nil
	}
	if v, found := s.cache.Get(key); found {
		if e, ok := v.(*domain.Entry); ok {
			return e, nil
		}
		return nil, nil
	}

	e, err := s.repo.Find(ctx, key)
	if err != nil {
		return nil, err
	}
	if e == nil {
		s.cache.SetDefault(key, miss{})
		s.logger.Debug("no catalog entry", zap.String("key", key))
		return nil, nil
	}
	s.cache.SetDefault(key, e)
	return e, nil
}

// Flush drops every cached entry.
func (s *Service) Flush() { s.cache.Flush() }
