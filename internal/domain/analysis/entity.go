package analysis

import (
	"time"
)

// OutcomeKind enum
type OutcomeKind string

const (
	OutcomeRejected  OutcomeKind = "Rejected"
	OutcomeUnsure    OutcomeKind = "Unsure"
	OutcomeConfident OutcomeKind = "Confident"
)

// RawResult is the decoded JSON object written by a predictor.
// Values keep their JSON types, numbers arrive as json.Number.
type RawResult map[string]any

// Failure reports an "error" message that comes without an explicit
// rejection flag. Predictors write that shape when they could not run at
// all (missing model, unreadable weights), so it is not a verdict.
func (r RawResult) Failure() (string, bool) {
	msg, ok := lookupString(r, []string{"error"})
	if !ok || msg == "" {
		return "", false
	}
	if v, found := lookupBool(r, keyOK); found && !v {
		return "", false
	}
	if v, found := lookupBool(r, keyDetected); found && !v {
		return "", false
	}
	return msg, true
}

// Outcome is the canonical classification of a RawResult.
type Outcome struct {
	Kind   OutcomeKind
	Reason string

	// Confident only
	PredictedKey string
	Confidence   float64
	PlantName    string
	DiseaseName  string
	IsHealthy    bool

	// ranked alternatives as emitted by the model, untouched
	Candidates []any
	PlantRatio *float64
}

func (o Outcome) Confident() bool { return o.Kind == OutcomeConfident }

// Image is an accepted upload in durable storage.
type Image struct {
	// Ref is the stable reference persisted on the record and exposed under /uploads.
	Ref string
	// Path is a local file the predictor can read. It may be a staged copy.
	Path        string
	ContentType string
	Size        int64
}

// Aggregate Root: Record
type Record struct {
	ID            int64      `json:"id"`
	OwnerID       *int64     `json:"ownerId"`
	PredictedKey  *string    `json:"predictedKey"`
	Confidence    *float64   `json:"confidence"`
	ImageRef      string     `json:"imageRef"`
	CreatedAt     time.Time  `json:"createdAt"`
	Verified      bool       `json:"verified"`
	VerifiedAt    *time.Time `json:"verifiedAt,omitempty"`
	FolderID      *int64     `json:"folderId"`
	OutcomeReason *string    `json:"outcomeReason,omitempty"`
}

// NewRecord builds the write-once part of a record from an outcome.
// Non-confident outcomes keep predictedKey and confidence null.
func NewRecord(owner *int64, o Outcome, imageRef string, now time.Time) *Record {
	r := &Record{
		OwnerID:   owner,
		ImageRef:  imageRef,
		CreatedAt: now,
	}
	if o.Confident() {
		key, conf := o.PredictedKey, o.Confidence
		r.PredictedKey = &key
		r.Confidence = &conf
		return r
	}
	reason := o.Reason
	r.OutcomeReason = &reason
	return r
}
