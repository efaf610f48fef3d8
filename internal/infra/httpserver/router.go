package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	appanalyze "github.com/bryanwahyu/leafcheck/internal/application/analyze"
	appcatalog "github.com/bryanwahyu/leafcheck/internal/application/catalog"
	appfolders "github.com/bryanwahyu/leafcheck/internal/application/folders"
	apphistory "github.com/bryanwahyu/leafcheck/internal/application/history"
	"github.com/bryanwahyu/leafcheck/internal/metrics"
	"github.com/bryanwahyu/leafcheck/internal/middleware"
)

// ImageServer exposes stored images by reference.
type ImageServer interface {
	ServeImage(w http.ResponseWriter, r *http.Request, ref string)
}

type Deps struct {
	Analyze *appanalyze.Service
	History *apphistory.Service
	Folders *appfolders.Service
	Catalog *appcatalog.Service
	Images  ImageServer

	Auth    *middleware.Authenticator
	Limiter *middleware.RateLimiter
	Ready   map[string]middleware.HealthChecker

	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer

	CORSOrigins []string
	// UploadPrefix is where images are exposed, "/uploads" by default.
	UploadPrefix string
	// MaxBodyBytes bounds the multipart body of an analyze request.
	MaxBodyBytes int64
	Logger       *zap.Logger
}

type Router struct {
	d      Deps
	logger *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Auth == nil {
		d.Auth = middleware.NewAuthenticator("", nil)
	}
	if d.UploadPrefix == "" {
		d.UploadPrefix = "/uploads"
	}
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = appanalyze.DefaultMaxUploadBytes + 1<<20
	}
	r := &Router{d: d, logger: d.Logger.Named("http")}

	mux := chi.NewRouter()
	mux.Use(chimw.RealIP)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.Metrics(d.HTTPMetrics))
	mux.Use(middleware.RequestLogger(r.logger))
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))

	mux.Get("/health", middleware.LivenessHandler)
	mux.Get("/ready", middleware.ReadinessHandler(d.Ready))
	if d.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	if d.Images != nil {
		mux.Get(d.UploadPrefix+"/*", r.handleImage)
	}

	mux.Route("/api", func(rt chi.Router) {
		rt.Use(middleware.Authenticate(d.Auth))

		rt.Group(func(an chi.Router) {
			if d.Limiter != nil {
				an.Use(middleware.RateLimit(d.Limiter))
			}
			an.Post("/analyze", r.wrap(r.handleAnalyze))
		})
		rt.Post("/analyze/{id}/verify", r.wrap(r.handleVerify))

		rt.Get("/diseases/{key}", r.wrap(r.handleDisease))

		rt.Group(func(own chi.Router) {
			own.Use(middleware.RequireOwner)

			own.Get("/history", r.wrap(r.handleHistory))
			own.Get("/history/unassigned", r.wrap(r.handleHistoryUnassigned))
			own.Get("/history/folder/{id}", r.wrap(r.handleHistoryFolder))
			own.Put("/history/{id}/folder", r.wrap(r.handleMove))

			own.Get("/folders", r.wrap(r.handleListFolders))
			own.Post("/folders", r.wrap(r.handleCreateFolder))
			own.Put("/folders/{id}", r.wrap(r.handleRenameFolder))
			own.Delete("/folders/{id}", r.wrap(r.handleDeleteFolder))
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		if err := h(w, req); err != nil {
			writeErr(w, req, r.logger, err)
			r.logger.Debug("handler error", zap.String("path", req.URL.Path), zap.Duration("duration", time.Since(start)), zap.Error(err))
		}
	}
}
