package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/leafcheck/internal/domain/apperrors"
)

func TestLocalStoreSaveServeDelete(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStore(root, nil)
	require.NoError(t, err)
	ctx := context.Background()

	img, err := s.Save(ctx, "2025/03/01/abc.png", "image/png", strings.NewReader("pngdata"), 7)
	require.NoError(t, err)
	assert.Equal(t, "2025/03/01/abc.png", img.Ref)
	assert.Equal(t, filepath.Join(root, "2025", "03", "01", "abc.png"), img.Path)
	assert.Equal(t, int64(7), img.Size)

	b, err := os.ReadFile(img.Path)
	require.NoError(t, err)
	assert.Equal(t, "pngdata", string(b))

	entries, err := os.ReadDir(filepath.Dir(img.Path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be renamed away")

	rec := httptest.NewRecorder()
	s.ServeImage(rec, httptest.NewRequest(http.MethodGet, "/uploads/"+img.Ref, nil), img.Ref)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pngdata", rec.Body.String())

	require.NoError(t, s.Release(ctx, img))
	_, err = os.Stat(img.Path)
	assert.NoError(t, err, "release keeps the durable copy")

	require.NoError(t, s.Delete(ctx, img.Ref))
	_, err = os.Stat(img.Path)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, s.Delete(ctx, img.Ref), "deleting twice is fine")
}

func TestLocalStoreStaysInsideRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "uploads")
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.txt"), []byte("s"), 0o600))
	s, err := NewLocalStore(root, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.ServeImage(rec, httptest.NewRequest(http.MethodGet, "/uploads/x", nil), "../secret.txt")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, err = s.Save(context.Background(), "", "image/png", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, apperrors.ErrStorage)

	p, err := s.resolve("../../etc/passwd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, s.root))
}

func TestLocalStoreServeMissing(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.ServeImage(rec, httptest.NewRequest(http.MethodGet, "/uploads/nope.jpg", nil), "nope.jpg")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
