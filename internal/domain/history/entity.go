package history

import (
	"context"
	"time"
)

// Item is an analysis record joined with its disease catalog entry and
// current folder.
type Item struct {
	ID            int64      `json:"id"`
	OwnerID       *int64     `json:"ownerId"`
	PredictedKey  *string    `json:"predictedKey"`
	Confidence    *float64   `json:"confidence"`
	ImageRef      string     `json:"imageRef"`
	ImageURL      string     `json:"imageUrl"`
	CreatedAt     time.Time  `json:"createdAt"`
	Verified      bool       `json:"verified"`
	VerifiedAt    *time.Time `json:"verifiedAt,omitempty"`
	FolderID      *int64     `json:"folderId"`
	OutcomeReason *string    `json:"outcomeReason,omitempty"`

	// derived from PredictedKey
	PlantName   string `json:"plantName,omitempty"`
	DiseaseName string `json:"diseaseName,omitempty"`
	IsHealthy   bool   `json:"isHealthy"`

	// catalog join, null when the label has no entry
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Tips        *string `json:"tips"`
}

// Scope selects which folder assignment a listing returns.
type Scope int

const (
	ScopeAll Scope = iota
	ScopeUnassigned
	ScopeFolder
)

// Query is always bound to an owner.
type Query struct {
	OwnerID  int64
	Scope    Scope
	FolderID int64
	// Verified filters on the verified flag when set.
	Verified *bool
	Limit    int
}

// Repository port. Results are ordered by created_at DESC, id DESC.
type Repository interface {
	List(ctx context.Context, q Query) ([]Item, error)
}
