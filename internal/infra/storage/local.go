package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/bryanwahyu/leafcheck/internal/domain/analysis"
	"github.com/bryanwahyu/leafcheck/internal/domain/apperrors"
)

// LocalStore keeps uploads on the local filesystem under root. The stored
// file is also the file handed to the predictor.
type LocalStore struct {
	root   string
	logger *zap.Logger
}

func NewLocalStore(root string, logger *zap.Logger) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalStore{root: abs, logger: logger.Named("storage.local")}, nil
}

// Save writes r to a temp file next to the target and renames it, so a
// reader never sees a partial image.
func (s *LocalStore) Save(ctx context.Context, name, contentType string, r io.Reader, size int64) (analysis.Image, error) {
	dst, err := s.resolve(name)
	if err != nil {
		return analysis.Image{}, apperrors.Storage("save", err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return analysis.Image{}, apperrors.Storage("save", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return analysis.Image{}, apperrors.Storage("save", err)
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), dst)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return analysis.Image{}, apperrors.Storage("save", err)
	}
	s.logger.Debug("image stored", zap.String("ref", name), zap.Int64("bytes", n))
	return analysis.Image{Ref: name, Path: dst, ContentType: contentType, Size: n}, nil
}

func (s *LocalStore) Release(context.Context, analysis.Image) error { return nil }

func (s *LocalStore) Delete(_ context.Context, ref string) error {
	p, err := s.resolve(ref)
	if err != nil {
		return apperrors.Storage("delete", err)
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.Storage("delete", err)
	}
	return nil
}

// ServeImage writes the stored file for ref.
func (s *LocalStore) ServeImage(w http.ResponseWriter, r *http.Request, ref string) {
	p, err := s.resolve(ref)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if fi, err := os.Stat(p); err != nil || fi.IsDir() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=86400")
	http.ServeFile(w, r, p)
}

// resolve maps a slash separated ref to a path that stays inside root.
func (s *LocalStore) resolve(ref string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(ref))
	if clean == string(filepath.Separator) {
		return "", errors.New("empty image reference")
	}
	p := filepath.Join(s.root, clean)
	if !strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("image reference %q escapes storage root", ref)
	}
	return p, nil
}
