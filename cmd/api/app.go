package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bryanwahyu/leafcheck/internal/config"
	"github.com/bryanwahyu/leafcheck/internal/domain/analysis"
	"github.com/bryanwahyu/leafcheck/internal/domain/apperrors"
	"github.com/bryanwahyu/leafcheck/internal/infra/ai/openai"
	"github.com/bryanwahyu/leafcheck/internal/infra/db"
	"github.com/bryanwahyu/leafcheck/internal/infra/db/schema"
	"github.com/bryanwahyu/leafcheck/internal/infra/executor/process"
	"github.com/bryanwahyu/leafcheck/internal/infra/httpserver"
	"github.com/bryanwahyu/leafcheck/internal/infra/storage"
)

// images is the configured storage backend seen through its two roles.
type images struct {
	analysis.ImageStore
	httpserver.ImageServer
	// ping is nil for backends without a remote dependency
	ping func(context.Context) error
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config load: %w", err)
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("effective config", zap.String("path", cfgPath), zap.String("config", cfg.Redacted()))
	return cfg, logger, nil
}

func newLogger(c config.LoggingConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func openDB(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*db.Conn, error) {
	return db.Open(ctx, db.Config{
		Driver:       cfg.Database.Driver,
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Name:         cfg.Database.Name,
		Path:         cfg.Database.Path,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	}, logger)
}

// resolveSchema is the single point where the process learns the physical
// column names. A mismatch is logged field by field before it is returned.
func resolveSchema(ctx context.Context, conn *db.Conn, logger *zap.Logger) (*schema.Schema, error) {
	sch, err := schema.NewResolver(conn.Catalog, logger).Resolve(ctx)
	if err != nil {
		var mismatch *apperrors.SchemaMismatchError
		if errors.As(err, &mismatch) {
			for _, f := range mismatch.Missing {
				logger.Error("unmapped schema field", zap.String("field", f))
			}
		}
		return nil, err
	}
	logger.Info("schema resolved", zap.Stringer("folder_mode", sch.FolderMode))
	return sch, nil
}

func newPredictor(cfg *config.Config, labels []string, logger *zap.Logger) analysis.Predictor {
	ic := cfg.Inference
	if ic.Backend == "openai" {
		return openai.NewClient(openai.Config{
			APIKey:  ic.OpenAI.APIKey,
			Model:   ic.OpenAI.Model,
			BaseURL: ic.OpenAI.BaseURL,
			Timeout: ic.Timeout,
			Labels:  labels,
		}, nil, logger)
	}
	return process.NewRunner(process.Config{
		Command:        ic.Command,
		Args:           ic.Args,
		WorkDir:        ic.WorkDir,
		Timeout:        ic.Timeout,
		MaxOutputBytes: ic.MaxOutputBytes,
	}, logger)
}

func newImageStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*images, error) {
	sc := cfg.Storage
	if sc.Backend == "minio" {
		m, err := storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:   sc.Minio.Endpoint,
			Region:     sc.Minio.Region,
			Bucket:     sc.Minio.Bucket,
			AccessKey:  sc.Minio.AccessKey,
			SecretKey:  sc.Minio.SecretKey,
			UseSSL:     sc.Minio.UseSSL,
			PresignTTL: sc.Minio.PresignTTL,
		}, filepath.Join(sc.LocalDir, ".stage"), logger)
		if err != nil {
			return nil, fmt.Errorf("minio init: %w", err)
		}
		return &images{ImageStore: m, ImageServer: m, ping: m.Ping}, nil
	}
	l, err := storage.NewLocalStore(sc.LocalDir, logger)
	if err != nil {
		return nil, fmt.Errorf("local storage init: %w", err)
	}
	return &images{ImageStore: l, ImageServer: l}, nil
}
