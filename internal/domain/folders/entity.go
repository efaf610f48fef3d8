package folders

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bryanwahyu/leafcheck/internal/domain/apperrors"
)

// MaxNameLength is counted in runes.
const MaxNameLength = 80

// Folder groups verified analyses of one owner.
type Folder struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"ownerId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// NormalizeName trims name and enforces the length bounds.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperrors.Input(apperrors.CodeInvalidArgument, "folder name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", apperrors.Input(apperrors.CodeInvalidArgument, "folder name must be at most %d characters", MaxNameLength)
	}
	return name, nil
}
