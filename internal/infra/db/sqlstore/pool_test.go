package sqlstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/bryanwahyu/leafcheck/internal/infra/db/sqlite"
	"github.com/bryanwahyu/leafcheck/internal/infra/db/sqlstore"
)

func TestOpenPool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.db")
	db, err := sqlstore.OpenPool(context.Background(), "sqlite3", "file:"+path, sqlstore.PoolConfig{MaxOpen: 3})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	assert.Equal(t, 3, db.Stats().MaxOpenConnections)
}

func TestOpenPoolUnknownDriver(t *testing.T) {
	_, err := sqlstore.OpenPool(context.Background(), "nope", "", sqlstore.PoolConfig{})
	assert.Error(t, err)
}

func TestOpenPoolGivesUpOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sqlstore.OpenPool(ctx, "sqlite3", "file:"+filepath.Join(t.TempDir(), "c.db"), sqlstore.PoolConfig{PingAttempts: 3})
	assert.ErrorIs(t, err, context.Canceled)
}
