package analyze

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/leafcheck/internal/domain/analysis"
	"github.com/bryanwahyu/leafcheck/internal/domain/apperrors"
)

// DefaultMaxUploadBytes is used when the service has no explicit ceiling.
const DefaultMaxUploadBytes int64 = 10 << 20

// Upload is one image payload as received from the transport.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
	"image/tiff": ".tiff",
	"image/heic": ".heic",
}

// Ingest validates the upload and writes it to durable storage. Rejected
// uploads never reach the store.
func (s *Service) Ingest(ctx context.Context, up Upload) (analysis.Image, error) {
	if up.Body == nil {
		return analysis.Image{}, apperrors.Input(apperrors.CodeMissingFile, "image file is required")
	}
	declared, err := imageType(up.ContentType)
	if err != nil {
		return analysis.Image{}, err
	}

	limit := s.MaxUploadBytes
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	data, err := io.ReadAll(io.LimitReader(up.Body, limit+1))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return analysis.Image{}, apperrors.Input(apperrors.CodeSizeExceeded, "request body exceeds %d bytes", mbe.Limit)
		}
		return analysis.Image{}, apperrors.Input(apperrors.CodeMissingFile, "read upload: %v", err)
	}
	if int64(len(data)) > limit {
		return analysis.Image{}, apperrors.Input(apperrors.CodeSizeExceeded, "image exceeds %d bytes", limit)
	}
	if len(data) == 0 {
		return analysis.Image{}, apperrors.Input(apperrors.CodeMissingFile, "image file is empty")
	}

	// the declared type is trusted unless the bytes say otherwise
	sniffed, _, _ := strings.Cut(http.DetectContentType(data), ";")
	if sniffed != "application/octet-stream" && !strings.HasPrefix(sniffed, "image/") {
		return analysis.Image{}, apperrors.Input(apperrors.CodeInvalidContentType, "content is %s, not an image", sniffed)
	}
	contentType := declared
	if strings.HasPrefix(sniffed, "image/") {
		contentType = sniffed
	}

	img, err := s.Images.Save(ctx, objectName(s.now(), contentType), contentType, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return analysis.Image{}, apperrors.Storage("save image", err)
	}
	return img, nil
}

func imageType(declared string) (string, error) {
	if declared == "" {
		return "", apperrors.Input(apperrors.CodeInvalidContentType, "content type is required")
	}
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return "", apperrors.Input(apperrors.CodeInvalidContentType, "%q is not an image type", declared)
	}
	return mediaType, nil
}

// objectName is yyyy/mm/dd/<uuid><ext>.
func objectName(now time.Time, contentType string) string {
	ext, ok := extensions[contentType]
	if !ok {
		ext = ".img"
	}
	return now.Format("2006/01/02") + "/" + uuid.NewString() + ext
}
