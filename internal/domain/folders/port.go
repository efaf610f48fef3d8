package folders

import (
	"context"
	"time"
)

// Repository port. Every call is scoped to owner; a folder of another owner
// behaves exactly like a missing one (ErrNotFound).
type Repository interface {
	List(ctx context.Context, owner int64) ([]Folder, error)
	Get(ctx context.Context, owner, id int64) (*Folder, error)
	Create(ctx context.Context, owner int64, name string, at time.Time) (*Folder, error)
	Rename(ctx context.Context, owner, id int64, name string) (*Folder, error)
	// Delete removes the folder and clears every reference to it in the same
	// transaction. It returns how many analyses were unassigned.
	Delete(ctx context.Context, owner, id int64) (int64, error)
}
