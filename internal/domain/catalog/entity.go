package catalog

import "context"

// Entry is read-only reference data about one predicted label.
type Entry struct {
	Key         string  `json:"key"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Tips        *string `json:"tips"`
}

// Repository port. A missing key returns (nil, nil).
type Repository interface {
	Find(ctx context.Context, key string) (*Entry, error)
}
