package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/leafcheck/internal/application"
	appanalyze "github.com/bryanwahyu/leafcheck/internal/application/analyze"
	appcatalog "github.com/bryanwahyu/leafcheck/internal/application/catalog"
	appfolders "github.com/bryanwahyu/leafcheck/internal/application/folders"
	apphistory "github.com/bryanwahyu/leafcheck/internal/application/history"
	"github.com/bryanwahyu/leafcheck/internal/domain/analysis"
	"github.com/bryanwahyu/leafcheck/internal/infra/db/sqlstore"
	"github.com/bryanwahyu/leafcheck/internal/infra/executor"
	"github.com/bryanwahyu/leafcheck/internal/infra/httpserver"
	"github.com/bryanwahyu/leafcheck/internal/metrics"
	"github.com/bryanwahyu/leafcheck/internal/middleware"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := openDB(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	if cfg.Database.MigrateOnStart {
		if err := conn.Migrate(logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// refuse to serve against a schema that cannot be mapped
	sch, err := resolveSchema(ctx, conn, logger)
	if err != nil {
		return err
	}
	store := sqlstore.New(conn.DB, conn.Dialect, sch, logger)

	imgs, err := newImageStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics, err := metrics.NewHTTPMetrics(reg)
	if err != nil {
		return err
	}
	inferenceMetrics, err := metrics.NewInferenceMetrics(reg)
	if err != nil {
		return err
	}

	catalog := appcatalog.NewService(store.Diseases(), cfg.Catalog.CacheTTL, logger)
	var predictor analysis.Predictor = executor.NewPool(
		newPredictor(cfg, nil, logger),
		executor.PoolConfig{
			MaxConcurrent: cfg.Inference.MaxConcurrent,
			MaxQueue:      cfg.Inference.MaxQueue,
			QueueTimeout:  cfg.Inference.QueueTimeout,
		},
		inferenceMetrics, logger,
	)
	clock := application.SystemClock{}

	ready := map[string]middleware.HealthChecker{
		"database": middleware.CheckFunc(conn.Ping),
	}
	if imgs.ping != nil {
		ready["storage"] = middleware.CheckFunc(imgs.ping)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	go limiter.Run(ctx)

	handler := httpserver.NewRouter(httpserver.Deps{
		Analyze: &appanalyze.Service{
			Images:              imgs,
			Predictor:           predictor,
			Repo:                store.Analyses(),
			Classifier:          analysis.Classifier{MinConfidence: cfg.Inference.MinConfidence},
			Catalog:             catalog,
			Clock:               clock,
			Metrics:             inferenceMetrics,
			Logger:              logger.Named("analyze"),
			MaxUploadBytes:      cfg.Storage.MaxUploadBytes,
			PersistNonConfident: cfg.Analysis.Persist(),
		},
		History:      &apphistory.Service{Repo: store.History(), Folders: store.Folders(), PublicPrefix: cfg.Storage.PublicPrefix},
		Folders:      &appfolders.Service{Repo: store.Folders(), Clock: clock, Logger: logger.Named("folders")},
		Catalog:      catalog,
		Images:       imgs,
		Auth:         middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.APIKeys),
		Limiter:      limiter,
		Ready:        ready,
		HTTPMetrics:  httpMetrics,
		Gatherer:     reg,
		CORSOrigins:  cfg.Server.CORSOrigins,
		UploadPrefix: cfg.Storage.PublicPrefix,
		MaxBodyBytes: cfg.Storage.MaxUploadBytes + 1<<20,
		Logger:       logger,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	// graceful shutdown, in-flight analyses may take up to the inference timeout
	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Inference.Timeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	return nil
}
