package middleware

import (
	"strconv"
	"strings"

	"github.com/bryanwahyu/leafcheck/internal/domain/apperrors"
)

// Input validation for path and query parameters

// ParseID validates a positive numeric id.
func ParseID(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.Input(apperrors.CodeInvalidArgument, "%s must be a positive integer", name)
	}
	return id, nil
}

// ParseOptionalBool returns nil for an empty value.
func ParseOptionalBool(name, raw string) (*bool, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperrors.Input(apperrors.CodeInvalidArgument, "%s must be true or false", name)
	}
	return &v, nil
}

// ParseLimit returns 0 (the service default) for an empty value.
func ParseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.Input(apperrors.CodeInvalidArgument, "limit must be a non-negative integer")
	}
	return n, nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}
