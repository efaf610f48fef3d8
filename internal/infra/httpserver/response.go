package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/bryanwahyu/leafcheck/internal/domain/apperrors"
)

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// writeErr maps an application error to its status. Details of server side
// failures only go to the log.
func writeErr(w http.ResponseWriter, req *http.Request, logger *zap.Logger, err error) {
	var in *apperrors.InputError
	switch {
	case errors.As(err, &in):
		_ = WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "invalid_input",
			"code":    in.Code,
			"message": in.Message,
		})
	case errors.Is(err, apperrors.ErrUnauthenticated):
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "authentication required")
	case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrOwnership):
		// identical for both so foreign records cannot be probed
		_ = WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
	case errors.Is(err, apperrors.ErrBusy):
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		_ = ErrorResponse(w, http.StatusServiceUnavailable, "busy", "analysis capacity exhausted, retry later")
	case errors.Is(err, apperrors.ErrTimeout):
		logger.Error("request failed", zap.String("path", req.URL.Path), zap.Error(err))
		_ = ErrorResponse(w, http.StatusGatewayTimeout, "timeout", "analysis timed out")
	default:
		fields := []zap.Field{zap.String("path", req.URL.Path), zap.Error(err)}
		var pe *apperrors.ProcessError
		if errors.As(err, &pe) && pe.Stderr != "" {
			fields = append(fields, zap.Int("exit_code", pe.ExitCode), zap.String("stderr", pe.Stderr))
		}
		logger.Error("request failed", fields...)
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

const retryAfterSeconds = 5
