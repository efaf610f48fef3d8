package sqlstore_test

import (
	"context"
	"database/sql"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bryanwahyu/leafcheck/internal/domain/apperrors"
	"github.com/bryanwahyu/leafcheck/internal/domain/history"
	"github.com/bryanwahyu/leafcheck/internal/infra/db/postgres"
	"github.com/bryanwahyu/leafcheck/internal/infra/db/schema"
	"github.com/bryanwahyu/leafcheck/internal/infra/db/sqlstore"
)

var (
	pgOnce sync.Once
	pgDSN  string
	pgErr  error
)

// postgresDSN starts one PostgreSQL container per test run with the
// migrations applied.
func postgresDSN(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}
	pgOnce.Do(func() {
		ctx := context.Background()
		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "postgres:16-alpine",
				ExposedPorts: []string{"5432/tcp"},
				Env: map[string]string{
					"POSTGRES_DB":       "leafcheck",
					"POSTGRES_USER":     "leafcheck",
					"POSTGRES_PASSWORD": "test_password",
				},
				WaitingFor: wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60 * time.Second),
			},
			Started: true,
		})
		if err != nil {
			pgErr = err
			return
		}
		host, err := container.Host(ctx)
		if err != nil {
			pgErr = err
			return
		}
		port, err := container.MappedPort(ctx, "5432")
		if err != nil {
			pgErr = err
			return
		}
		pgDSN = postgres.DSN(host, port.Int(), "leafcheck", "test_password", "leafcheck", "disable")
		pgErr = postgres.Migrate(pgDSN, nil)
	})
	if pgErr != nil {
		t.Fatalf("Failed to setup test database: %v", pgErr)
	}
	return pgDSN
}

func TestPostgresStoreIntegration(t *testing.T) {
	dsn := postgresDSN(t)
	ctx := context.Background()

	db, err := postgres.Connect(ctx, dsn, 5)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sch, err := schema.NewResolver(postgres.NewCatalog(db), nil).Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.FolderDirect, sch.FolderMode)
	require.NotNil(t, sch.Catalog)

	s := sqlstore.New(db, postgres.Dialect{}, sch, nil)

	// unique owners keep reruns against the shared container independent
	owner := time.Now().UnixNano()
	other := owner + 1

	f, err := s.Folders().Create(ctx, owner, "PG folder", t0)
	require.NoError(t, err)

	var ids []int64
	for i := 0; i < 2; i++ {
		ids = append(ids, create(t, s, confident(ptr(owner), "Tomato___Leaf_Mold", t0.Add(time.Duration(i)*time.Second))))
	}
	unsureID := create(t, s, unsure(ptr(owner), t0))

	_, err = s.Analyses().Verify(ctx, unsureID, owner, nil, t0)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = s.Analyses().Verify(ctx, ids[0], other, nil, t0)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	for _, id := range ids {
		rec, err := s.Analyses().Verify(ctx, id, owner, &f.ID, t0.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, rec.Verified)
	}

	items, err := s.History().List(ctx, history.Query{OwnerID: owner, Scope: history.ScopeFolder, FolderID: f.ID})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, ids[1], items[0].ID)
	require.NotNil(t, items[0].Title)
	assert.Equal(t, "Tomato leaf mold", *items[0].Title)

	n, err := s.Folders().Delete(ctx, owner, f.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	loose, err := s.History().List(ctx, history.Query{OwnerID: owner, Scope: history.ScopeUnassigned})
	require.NoError(t, err)
	assert.Len(t, loose, 3)
}

func TestPostgresResolverDetectsDrift(t *testing.T) {
	dsn := postgresDSN(t)
	ctx := context.Background()

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	schemaName := "drift_" + strconv.FormatInt(time.Now().UnixNano(), 10)
	_, err = db.ExecContext(ctx, `CREATE SCHEMA `+schemaName)
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = db.ExecContext(context.Background(), `DROP SCHEMA `+schemaName+` CASCADE`) })

	// a single connection so search_path sticks
	conn, err := db.Conn(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_, err = conn.ExecContext(ctx, `SET search_path TO `+schemaName)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `CREATE TABLE analysis_results (id BIGSERIAL PRIMARY KEY, user_id BIGINT, image TEXT, createdat TIMESTAMPTZ, verified BOOLEAN)`)
	require.NoError(t, err)

	cols := make(map[string][]string)
	for _, table := range []string{"analysis_results", "folders"} {
		rows, err := conn.QueryContext(ctx, `SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1`, table)
		require.NoError(t, err)
		for rows.Next() {
			var c string
			require.NoError(t, rows.Scan(&c))
			cols[table] = append(cols[table], c)
		}
		require.NoError(t, rows.Close())
	}

	_, err = schema.NewResolver(staticCatalog(cols), nil).Resolve(ctx)
	var mismatch *apperrors.SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Contains(t, mismatch.Missing, "analysis.predicted_key")
	assert.Contains(t, mismatch.Missing, "analysis.confidence")
}

type staticCatalog map[string][]string

func (c staticCatalog) Columns(_ context.Context, table string) ([]string, error) {
	return c[table], nil
}
