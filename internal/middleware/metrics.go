package middleware

import (
	"net/http"
	"time"

	"github.com/bryanwahyu/leafcheck/internal/metrics"
)

// Metrics tracks request counts and latency by route pattern.
func Metrics(m *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.Start()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			m.Finish(r.Method, routePattern(r), wrapped.statusCode, time.Since(start))
		})
	}
}
