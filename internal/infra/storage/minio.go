package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/bryanwahyu/leafcheck/internal/domain/analysis"
	"github.com/bryanwahyu/leafcheck/internal/domain/apperrors"
)

// MinioConfig holds the object store connection settings.
type MinioConfig struct {
	Endpoint   string
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	UseSSL     bool
	PresignTTL time.Duration
}

// MinioStore keeps uploads in a bucket. The predictor reads a staged local
// copy that Release removes.
type MinioStore struct {
	client     *minio.Client
	bucketName string
	region     string
	stageDir   string
	presignTTL time.Duration
	logger     *zap.Logger
}

// NewMinioStore buat koneksi MinIO dan pastikan bucket ada
func NewMinioStore(ctx context.Context, cfg MinioConfig, stageDir string, logger *zap.Logger) (*MinioStore, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, err
		}
	}
	if stageDir == "" {
		stageDir = os.TempDir()
	}
	if err := os.MkdirAll(stageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MinioStore{
		client:     cli,
		bucketName: cfg.Bucket,
		region:     cfg.Region,
		stageDir:   stageDir,
		presignTTL: cfg.PresignTTL,
		logger:     logger.Named("storage.minio"),
	}, nil
}

// Save stages r to a local file and uploads it under name.
func (s *MinioStore) Save(ctx context.Context, name, contentType string, r io.Reader, size int64) (analysis.Image, error) {
	tmp, err := os.CreateTemp(s.stageDir, "leaf-*"+path.Ext(name))
	if err != nil {
		return analysis.Image{}, apperrors.Storage("stage", err)
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return analysis.Image{}, apperrors.Storage("stage", err)
	}

	if _, err := s.client.FPutObject(ctx, s.bucketName, name, tmp.Name(), minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		_ = os.Remove(tmp.Name())
		return analysis.Image{}, apperrors.Storage("upload", err)
	}
	s.logger.Debug("image uploaded", zap.String("ref", name), zap.Int64("bytes", n))
	return analysis.Image{Ref: name, Path: tmp.Name(), ContentType: contentType, Size: n}, nil
}

// Release hapus staging file lokal setelah inference selesai
func (s *MinioStore) Release(_ context.Context, img analysis.Image) error {
	if img.Path == "" {
		return nil
	}
	if err := os.Remove(img.Path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove staged image", zap.String("path", img.Path), zap.Error(err))
		return err
	}
	return nil
}

func (s *MinioStore) Delete(ctx context.Context, ref string) error {
	if err := s.client.RemoveObject(ctx, s.bucketName, ref, minio.RemoveObjectOptions{}); err != nil {
		return apperrors.Storage("delete", err)
	}
	return nil
}

// ServeImage redirects to a presigned URL since the bucket is private.
func (s *MinioStore) ServeImage(w http.ResponseWriter, r *http.Request, ref string) {
	if _, err := s.client.StatObject(r.Context(), s.bucketName, ref, minio.StatObjectOptions{}); err != nil {
		http.NotFound(w, r)
		return
	}
	u, err := s.client.PresignedGetObject(r.Context(), s.bucketName, ref, s.presignTTL, nil)
	if err != nil {
		s.logger.Error("presign failed", zap.String("ref", ref), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, u.String(), http.StatusFound)
}

// Ping checks the bucket is reachable.
func (s *MinioStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucketName)
	return err
}
