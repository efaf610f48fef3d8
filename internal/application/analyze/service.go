package analyze

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/leafcheck/internal/application"
	"github.com/bryanwahyu/leafcheck/internal/domain/analysis"
	"github.com/bryanwahyu/leafcheck/internal/domain/apperrors"
	"github.com/bryanwahyu/leafcheck/internal/domain/catalog"
	"github.com/bryanwahyu/leafcheck/internal/metrics"
)

// CatalogLookup resolves a predicted label to its catalog entry.
type CatalogLookup interface {
	Lookup(ctx context.Context, key string) (*catalog.Entry, error)
}

// Service implements the analysis pipeline: ingest, predict, classify, persist.
// It is safe for concurrent use.
type Service struct {
	Images     analysis.ImageStore
	Predictor  analysis.Predictor
	Repo       analysis.Repository
	Classifier analysis.Classifier
	Catalog    CatalogLookup
	Clock      application.Clock
	Metrics    *metrics.InferenceMetrics
	Logger     *zap.Logger

	MaxUploadBytes int64
	// PersistNonConfident stores Rejected and Unsure outcomes with their reason.
	PersistNonConfident bool
}

// Result is the response of one analyze call.
type Result struct {
	Outcome      analysis.OutcomeKind `json:"outcome"`
	PredictedKey *string              `json:"predictedKey,omitempty"`
	Confidence   *float64             `json:"confidence,omitempty"`
	PlantName    *string              `json:"plantName,omitempty"`
	DiseaseName  *string              `json:"diseaseName,omitempty"`
	IsHealthy    *bool                `json:"isHealthy,omitempty"`
	AnalysisID   *int64               `json:"analysisId,omitempty"`
	Reason       *string              `json:"reason,omitempty"`
	Candidates   []any                `json:"candidates,omitempty"`
	Disease      *catalog.Entry       `json:"disease,omitempty"`
}

// Analyze runs the whole pipeline for one upload. owner may be nil.
func (s *Service) Analyze(ctx context.Context, owner *int64, up Upload) (Result, error) {
	log := s.logger()

	img, err := s.Ingest(ctx, up)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := s.Images.Release(context.WithoutCancel(ctx), img); err != nil {
			log.Warn("release staged image", zap.String("ref", img.Ref), zap.Error(err))
		}
	}()

	raw, err := s.Predictor.Predict(ctx, img)
	if err != nil {
		s.discard(ctx, img.Ref)
		return Result{}, err
	}

	if msg, failed := raw.Failure(); failed {
		log.Error("predictor reported a failure", zap.String("error", msg), zap.String("ref", img.Ref))
		s.discard(ctx, img.Ref)
		return Result{}, &apperrors.ProcessError{Cause: errors.New("predictor reported an error")}
	}

	outcome := s.Classifier.Classify(raw)
	s.Metrics.RecordOutcome(string(outcome.Kind))
	log.Info("analysis classified",
		zap.String("outcome", string(outcome.Kind)),
		zap.String("reason", outcome.Reason),
		zap.String("key", outcome.PredictedKey),
		zap.String("ref", img.Ref),
	)

	res := newResult(outcome)
	if outcome.Confident() || s.PersistNonConfident {
		rec := analysis.NewRecord(owner, outcome, img.Ref, s.now())
		id, err := s.Repo.Create(ctx, rec)
		if err != nil {
			s.discard(ctx, img.Ref)
			return Result{}, apperrors.Storage("create analysis", err)
		}
		res.AnalysisID = &id
	} else {
		s.discard(ctx, img.Ref)
	}

	if outcome.Confident() && s.Catalog != nil {
		entry, err := s.Catalog.Lookup(ctx, outcome.PredictedKey)
		if err != nil {
			log.Warn("catalog lookup failed", zap.String("key", outcome.PredictedKey), zap.Error(err))
		}
		res.Disease = entry
	}
	return res, nil
}

// VerifyCommand is the body of a verify call.
type VerifyCommand struct {
	ID       int64
	Owner    *int64
	Verified bool
	FolderID *int64
}

// Verify marks a confident record as reviewed and files it into a folder.
func (s *Service) Verify(ctx context.Context, cmd VerifyCommand) (*analysis.Record, error) {
	if cmd.Owner == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	if !cmd.Verified {
		return nil, apperrors.Input(apperrors.CodeInvalidArgument, "verified must be true")
	}
	rec, err := s.Repo.Verify(ctx, cmd.ID, *cmd.Owner, cmd.FolderID, s.now())
	if err != nil {
		return nil, err
	}
	s.logger().Info("analysis verified", zap.Int64("id", rec.ID), zap.Int64p("folder", rec.FolderID))
	return rec, nil
}

// Move reassigns a verified record to another folder, or to none.
func (s *Service) Move(ctx context.Context, id int64, owner *int64, folderID *int64) (*analysis.Record, error) {
	if owner == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	return s.Repo.Move(ctx, id, *owner, folderID, s.now())
}

func newResult(o analysis.Outcome) Result {
	res := Result{Outcome: o.Kind, Candidates: o.Candidates}
	if !o.Confident() {
		reason := o.Reason
		res.Reason = &reason
		return res
	}
	key, conf := o.PredictedKey, o.Confidence
	plant, disease, healthy := o.PlantName, o.DiseaseName, o.IsHealthy
	res.PredictedKey = &key
	res.Confidence = &conf
	res.PlantName = &plant
	res.DiseaseName = &disease
	res.IsHealthy = &healthy
	return res
}

// discard deletes an image that will not be referenced by any record.
func (s *Service) discard(ctx context.Context, ref string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.Images.Delete(ctx, ref); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		s.logger().Warn("delete unreferenced image", zap.String("ref", ref), zap.Error(err))
	}
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return application.SystemClock{}.Now()
	}
	return s.Clock.Now()
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
