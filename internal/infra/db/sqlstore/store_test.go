package sqlstore_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/leafcheck/internal/domain/analysis"
	"github.com/bryanwahyu/leafcheck/internal/domain/apperrors"
	"github.com/bryanwahyu/leafcheck/internal/domain/history"
	"github.com/bryanwahyu/leafcheck/internal/infra/db/schema"
	"github.com/bryanwahyu/leafcheck/internal/infra/db/sqlite"
	"github.com/bryanwahyu/leafcheck/internal/infra/db/sqlstore"
)

const (
	alice int64 = 1
	bob   int64 = 2
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

// newMigratedStore opens a fresh SQLite file with the embedded migrations.
func newMigratedStore(t *testing.T) (*sqlstore.Store, *sql.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leafcheck.db")
	require.NoError(t, sqlite.Migrate(path, nil))
	return openStore(t, path)
}

func openStore(t *testing.T, path string) (*sqlstore.Store, *sql.DB) {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Connect(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := schema.NewResolver(sqlite.NewCatalog(db), nil).Resolve(ctx)
	require.NoError(t, err)
	return sqlstore.New(db, sqlite.Dialect{}, s, nil), db
}

func confident(owner *int64, key string, at time.Time) *analysis.Record {
	return analysis.NewRecord(owner, analysis.Outcome{
		Kind: analysis.OutcomeConfident, PredictedKey: key, Confidence: 0.9,
	}, "2025/03/01/"+key+".jpg", at)
}

func unsure(owner *int64, at time.Time) *analysis.Record {
	return analysis.NewRecord(owner, analysis.Outcome{
		Kind: analysis.OutcomeUnsure, Reason: analysis.ReasonMissingPrediction,
	}, "2025/03/01/unsure.jpg", at)
}

func create(t *testing.T, s *sqlstore.Store, rec *analysis.Record) int64 {
	t.Helper()
	id, err := s.Analyses().Create(context.Background(), rec)
	require.NoError(t, err)
	require.NotZero(t, id)
	return id
}

func TestCreateAndVerify(t *testing.T) {
	s, _ := newMigratedStore(t)
	ctx := context.Background()

	folder, err := s.Folders().Create(ctx, alice, "Tomatoes", t0)
	require.NoError(t, err)

	id := create(t, s, confident(ptr(alice), "Tomato___Leaf_Mold", t0))
	rec, err := s.Analyses().Get(ctx, id, alice)
	require.NoError(t, err)
	assert.False(t, rec.Verified)
	assert.Nil(t, rec.FolderID)
	assert.Nil(t, rec.OutcomeReason)
	assert.Equal(t, t0, rec.CreatedAt)
	require.NotNil(t, rec.Confidence)
	assert.InDelta(t, 0.9, *rec.Confidence, 1e-9)

	at := t0.Add(time.Hour)
	rec, err = s.Analyses().Verify(ctx, id, alice, &folder.ID, at)
	require.NoError(t, err)
	assert.True(t, rec.Verified)
	require.NotNil(t, rec.FolderID)
	assert.Equal(t, folder.ID, *rec.FolderID)
	require.NotNil(t, rec.VerifiedAt)
	assert.Equal(t, at, *rec.VerifiedAt)
	assert.Equal(t, "Tomato___Leaf_Mold", *rec.PredictedKey, "write-once fields are untouched")
}

func TestVerifyRejectsNonConfidentAndForeign(t *testing.T) {
	s, _ := newMigratedStore(t)
	ctx := context.Background()

	unsureID := create(t, s, unsure(ptr(alice), t0))
	bobsID := create(t, s, confident(ptr(bob), "Apple___healthy", t0))
	anonID := create(t, s, confident(nil, "Apple___healthy", t0))

	rec, err := s.Analyses().Get(ctx, unsureID, alice)
	require.NoError(t, err)
	assert.Nil(t, rec.PredictedKey)
	assert.Nil(t, rec.Confidence)
	require.NotNil(t, rec.OutcomeReason)

	for name, id := range map[string]int64{"unsure": unsureID, "foreign": bobsID, "anonymous": anonID, "missing": 9999} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Analyses().Verify(ctx, id, alice, nil, t0)
			assert.ErrorIs(t, err, apperrors.ErrNotFound)
		})
	}
}

func TestVerifyIntoForeignFolderRollsBack(t *testing.T) {
	s, _ := newMigratedStore(t)
	ctx := context.Background()

	bobsFolder, err := s.Folders().Create(ctx, bob, "Bob's", t0)
	require.NoError(t, err)
	id := create(t, s, confident(ptr(alice), "Tomato___Leaf_Mold", t0))

	_, err = s.Analyses().Verify(ctx, id, alice, &bobsFolder.ID, t0)
	assert.ErrorIs(t, err, apperrors.ErrOwnership)

	rec, err := s.Analyses().Get(ctx, id, alice)
	require.NoError(t, err)
	assert.False(t, rec.Verified)
	assert.Nil(t, rec.FolderID)
}

func TestMoveRequiresVerified(t *testing.T) {
	s, _ := newMigratedStore(t)
	ctx := context.Background()

	f1, err := s.Folders().Create(ctx, alice, "One", t0)
	require.NoError(t, err)
	f2, err := s.Folders().Create(ctx, alice, "Two", t0)
	require.NoError(t, err)
	id := create(t, s, confident(ptr(alice), "Tomato___Leaf_Mold", t0))

	_, err = s.Analyses().Move(ctx, id, alice, &f1.ID, t0)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = s.Analyses().Verify(ctx, id, alice, &f1.ID, t0)
	require.NoError(t, err)

	rec, err := s.Analyses().Move(ctx, id, alice, &f2.ID, t0)
	require.NoError(t, err)
	assert.Equal(t, f2.ID, *rec.FolderID)

	rec, err = s.Analyses().Move(ctx, id, alice, nil, t0)
	require.NoError(t, err)
	assert.Nil(t, rec.FolderID)

	_, err = s.Analyses().Move(ctx, id, bob, nil, t0)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeleteFolderUnassignsRecords(t *testing.T) {
	s, _ := newMigratedStore(t)
	ctx := context.Background()

	doomed, err := s.Folders().Create(ctx, alice, "Doomed", t0)
	require.NoError(t, err)
	kept, err := s.Folders().Create(ctx, alice, "Kept", t0)
	require.NoError(t, err)

	const n = 3
	for i := 0; i < n; i++ {
		id := create(t, s, confident(ptr(alice), "Tomato___Leaf_Mold", t0.Add(time.Duration(i)*time.Minute)))
		_, err := s.Analyses().Verify(ctx, id, alice, &doomed.ID, t0)
		require.NoError(t, err)
	}
	keptID := create(t, s, confident(ptr(alice), "Apple___healthy", t0))
	_, err = s.Analyses().Verify(ctx, keptID, alice, &kept.ID, t0)
	require.NoError(t, err)

	before, err := s.History().List(ctx, history.Query{OwnerID: alice})
	require.NoError(t, err)

	_, err = s.Folders().Delete(ctx, bob, doomed.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "only the owner can delete")

	unassigned, err := s.Folders().Delete(ctx, alice, doomed.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), unassigned)

	after, err := s.History().List(ctx, history.Query{OwnerID: alice})
	require.NoError(t, err)
	assert.Len(t, after, len(before), "no record is deleted")

	loose, err := s.History().List(ctx, history.Query{OwnerID: alice, Scope: history.ScopeUnassigned})
	require.NoError(t, err)
	assert.Len(t, loose, n)
	for _, it := range loose {
		assert.Nil(t, it.FolderID)
		assert.True(t, it.Verified)
	}

	list, err := s.Folders().List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, kept.ID, list[0].ID)

	_, err = s.Folders().Get(ctx, alice, doomed.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListByFolderIsOwnerScoped(t *testing.T) {
	s, db := newMigratedStore(t)
	ctx := context.Background()

	f, err := s.Folders().Create(ctx, alice, "Shared id", t0)
	require.NoError(t, err)
	id := create(t, s, confident(ptr(alice), "Tomato___Leaf_Mold", t0))
	_, err = s.Analyses().Verify(ctx, id, alice, &f.ID, t0)
	require.NoError(t, err)

	// a corrupt fixture: bob's record points at alice's folder
	_, err = db.ExecContext(ctx, `INSERT INTO analysis_results
		(user_id, predicted_key, confidence, image_path, created_at, verified, folder_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, bob, "Apple___healthy", 0.8, "b.jpg", t0.Add(time.Hour), true, f.ID)
	require.NoError(t, err)

	items, err := s.History().List(ctx, history.Query{OwnerID: alice, Scope: history.ScopeFolder, FolderID: f.ID})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].ID)
	for _, it := range items {
		assert.Equal(t, alice, *it.OwnerID)
	}

	items, err = s.History().List(ctx, history.Query{OwnerID: bob})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, bob, *items[0].OwnerID)
}

func TestHistoryOrderingJoinAndFilters(t *testing.T) {
	s, _ := newMigratedStore(t)
	ctx := context.Background()

	older := create(t, s, confident(ptr(alice), "Tomato___Leaf_Mold", t0))
	sameA := create(t, s, confident(ptr(alice), "Unseen___Rare_Spot", t0.Add(time.Minute)))
	sameB := create(t, s, unsure(ptr(alice), t0.Add(time.Minute)))
	create(t, s, confident(nil, "Apple___healthy", t0.Add(time.Hour)))

	items, err := s.History().List(ctx, history.Query{OwnerID: alice})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []int64{sameB, sameA, older}, []int64{items[0].ID, items[1].ID, items[2].ID},
		"created_at DESC then id DESC")

	byID := map[int64]history.Item{}
	for _, it := range items {
		byID[it.ID] = it
	}
	require.NotNil(t, byID[older].Title, "seeded catalog entry joins")
	assert.Equal(t, "Tomato leaf mold", *byID[older].Title)
	assert.NotNil(t, byID[older].Tips)
	assert.Nil(t, byID[sameA].Title, "missing catalog row is not an error")
	assert.Nil(t, byID[sameA].Description)

	_, err = s.Analyses().Verify(ctx, older, alice, nil, t0)
	require.NoError(t, err)

	verified, err := s.History().List(ctx, history.Query{OwnerID: alice, Verified: ptr(true)})
	require.NoError(t, err)
	require.Len(t, verified, 1)
	assert.Equal(t, older, verified[0].ID)

	limited, err := s.History().List(ctx, history.Query{OwnerID: alice, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestFolderRenameAndOwnership(t *testing.T) {
	s, _ := newMigratedStore(t)
	ctx := context.Background()

	f, err := s.Folders().Create(ctx, alice, "Old", t0)
	require.NoError(t, err)

	renamed, err := s.Folders().Rename(ctx, alice, f.ID, "New")
	require.NoError(t, err)
	assert.Equal(t, "New", renamed.Name)
	assert.Equal(t, t0, renamed.CreatedAt)

	_, err = s.Folders().Rename(ctx, bob, f.ID, "Hijacked")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	list, err := s.Folders().List(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCatalogFind(t *testing.T) {
	s, _ := newMigratedStore(t)
	ctx := context.Background()

	e, err := s.Diseases().Find(ctx, "Apple___Apple_scab")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "Apple scab", *e.Title)

	e, err = s.Diseases().Find(ctx, "Nope___nothing")
	require.NoError(t, err)
	assert.Nil(t, e)
}

// legacySchema mirrors an older revision: drifted column names and folder
// assignment through a saved_results association table.
const legacySchema = `
CREATE TABLE folder (folder_id INTEGER PRIMARY KEY AUTOINCREMENT, userId INTEGER NOT NULL, title TEXT NOT NULL, createdAt DATETIME NOT NULL);
CREATE TABLE analyses (
	analysisId INTEGER PRIMARY KEY AUTOINCREMENT,
	userId INTEGER,
	predictedKey TEXT,
	score REAL,
	file_path TEXT NOT NULL,
	createdAt DATETIME NOT NULL,
	is_verified BOOLEAN NOT NULL DEFAULT 0
);
CREATE TABLE saved_results (
	saved_id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	folder_id INTEGER,
	analysis_result_id INTEGER NOT NULL,
	saved_at DATETIME
);
CREATE TABLE disease_catalog (disease_key TEXT PRIMARY KEY, name TEXT, recs TEXT);
INSERT INTO disease_catalog VALUES ('Tomato___Leaf_Mold', 'Leaf mold', 'Ventilate');
`

func TestLegacyAssociationSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	raw, err := sqlite.Connect(context.Background(), path)
	require.NoError(t, err)
	_, err = raw.Exec(legacySchema)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	s, db := openStore(t, path)
	ctx := context.Background()

	f, err := s.Folders().Create(ctx, alice, "Legacy", t0)
	require.NoError(t, err)
	id := create(t, s, confident(ptr(alice), "Tomato___Leaf_Mold", t0))
	other := create(t, s, confident(ptr(alice), "Apple___healthy", t0.Add(time.Second)))

	rec, err := s.Analyses().Verify(ctx, id, alice, &f.ID, t0)
	require.NoError(t, err)
	assert.True(t, rec.Verified)
	require.NotNil(t, rec.FolderID)
	assert.Equal(t, f.ID, *rec.FolderID)
	assert.Nil(t, rec.VerifiedAt, "legacy table has no verified_at column")

	// verifying again updates the association instead of adding a row
	_, err = s.Analyses().Verify(ctx, id, alice, &f.ID, t0)
	require.NoError(t, err)
	var rows int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM saved_results WHERE analysis_result_id = ?`, id).Scan(&rows))
	assert.Equal(t, 1, rows)

	inFolder, err := s.History().List(ctx, history.Query{OwnerID: alice, Scope: history.ScopeFolder, FolderID: f.ID})
	require.NoError(t, err)
	require.Len(t, inFolder, 1)
	assert.Equal(t, id, inFolder[0].ID)
	require.NotNil(t, inFolder[0].Title)
	assert.Equal(t, "Leaf mold", *inFolder[0].Title)
	assert.Nil(t, inFolder[0].Description, "catalog has no description column")
	assert.Equal(t, "Ventilate", *inFolder[0].Tips)

	loose, err := s.History().List(ctx, history.Query{OwnerID: alice, Scope: history.ScopeUnassigned})
	require.NoError(t, err)
	require.Len(t, loose, 1)
	assert.Equal(t, other, loose[0].ID)

	n, err := s.Folders().Delete(ctx, alice, f.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	loose, err = s.History().List(ctx, history.Query{OwnerID: alice, Scope: history.ScopeUnassigned})
	require.NoError(t, err)
	assert.Len(t, loose, 2)
}
