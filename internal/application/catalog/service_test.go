package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/leafcheck/internal/domain/catalog"
)

type countingRepo struct {
	entries map[string]*domain.Entry
	calls   map[string]int
	err     error
}

func (r *countingRepo) Find(_ context.Context, key string) (*domain.Entry, error) {
	r.calls[key]++
	if r.err != nil {
		return nil, r.err
	}
	return r.entries[key], nil
}

func TestLookupCachesHitsAndMisses(t *testing.T) {
	title := "Tomato leaf mold"
	repo := &countingRepo{
		entries: map[string]*domain.Entry{"Tomato___Leaf_Mold": {Key: "Tomato___Leaf_Mold", Title: &title}},
		calls:   map[string]int{},
	}
	svc := NewService(repo, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		e, err := svc.Lookup(ctx, "Tomato___Leaf_Mold")
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, title, *e.Title)

		e, err = svc.Lookup(ctx, "Unseen___Label")
		require.NoError(t, err)
		assert.Nil(t, e)
	}
	assert.Equal(t, 1, repo.calls["Tomato___Leaf_Mold"])
	assert.Equal(t, 1, repo.calls["Unseen___Label"])

	svc.Flush()
	_, err := svc.Lookup(ctx, "Tomato___Leaf_Mold")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls["Tomato___Leaf_Mold"])
}

func TestLookupDoesNotCacheErrors(t *testing.T) {
	repo := &countingRepo{calls: map[string]int{}, err: errors.New("db down")}
	svc := NewService(repo, time.Minute, nil)

	_, err := svc.Lookup(context.Background(), "Apple___healthy")
	assert.Error(t, err)

	repo.err = nil
	e, err := svc.Lookup(context.Background(), "Apple___healthy")
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.Equal(t, 2, repo.calls["Apple___healthy"])
}

func TestLookupEmptyKey(t *testing.T) {
	repo := &countingRepo{calls: map[string]int{}}
	e, err := NewService(repo, 0, nil).Lookup(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.Empty(t, repo.calls)
}
