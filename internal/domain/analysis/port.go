package analysis

import (
	"context"
	"io"
	"time"
)

// Predictor runs a model against one stored image and returns its raw JSON object.
type Predictor interface {
	Predict(ctx context.Context, img Image) (RawResult, error)
}

// ImageStore port (durable upload storage)
type ImageStore interface {
	Save(ctx context.Context, name, contentType string, r io.Reader, size int64) (Image, error)
	// Release drops any local staging copy made for the predictor.
	Release(ctx context.Context, img Image) error
	Delete(ctx context.Context, ref string) error
}

// Repository port (AnalysisStore)
type Repository interface {
	Create(ctx context.Context, rec *Record) (int64, error)
	// Verify marks a confident record owned by owner as verified and files it
	// into folderID. Missing, foreign and non-confident records are ErrNotFound.
	Verify(ctx context.Context, id, owner int64, folderID *int64, at time.Time) (*Record, error)
	// Move reassigns a verified record to another folder (or none).
	Move(ctx context.Context, id, owner int64, folderID *int64, at time.Time) (*Record, error)
}
