package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthChecker is one readiness dependency.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to HealthChecker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

type readiness struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]checkResult `json:"checks"`
}

type checkResult struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Message   string `json:"message,omitempty"`
}

const readinessTimeout = 5 * time.Second

// ReadinessHandler runs the checkers concurrently and answers 503 when any
// of them fails or exceeds the deadline.
func ReadinessHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		var (
			mu  sync.Mutex
			wg  sync.WaitGroup
			out = readiness{Status: "ready", Timestamp: time.Now().UTC(), Checks: make(map[string]checkResult, len(checkers))}
		)
		for name, c := range checkers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				start := time.Now()
				err := c.Check(ctx)
				res := checkResult{Status: "up", LatencyMS: time.Since(start).Milliseconds()}
				if err != nil {
					res.Status = "down"
					res.Message = err.Error()
				}
				mu.Lock()
				defer mu.Unlock()
				out.Checks[name] = res
				if err != nil {
					out.Status = "unavailable"
				}
			}()
		}
		wg.Wait()

		code := http.StatusOK
		if out.Status != "ready" {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(out)
	}
}

// LivenessHandler only says the process is serving.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
