// Package executor bounds how many predictor calls run at once.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/bryanwahyu/leafcheck/internal/domain/analysis"
	"github.com/bryanwahyu/leafcheck/internal/domain/apperrors"
	"github.com/bryanwahyu/leafcheck/internal/metrics"
)

// PoolConfig configures the predictor pool.
type PoolConfig struct {
	MaxConcurrent int           // running predictor calls (default: 2)
	MaxQueue      int           // callers allowed to wait for a slot
	QueueTimeout  time.Duration // longest wait for a slot (default: 30s)
}

// Pool is a Predictor decorator with a fixed number of slots. Callers past
// MaxQueue, or waiting longer than QueueTimeout, fail with ErrBusy.
type Pool struct {
	next    analysis.Predictor
	cfg     PoolConfig
	sem     *semaphore.Weighted
	waiting atomic.Int64
	metrics *metrics.InferenceMetrics
	logger  *zap.Logger
}

func NewPool(next analysis.Predictor, cfg PoolConfig, m *metrics.InferenceMetrics, logger *zap.Logger) *Pool {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 2
	}
	if cfg.MaxQueue < 0 {
		cfg.MaxQueue = 0
	}
	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		next:    next,
		cfg:     cfg,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		metrics: m,
		logger:  logger.Named("predictor-pool"),
	}
}

func (p *Pool) Predict(ctx context.Context, img analysis.Image) (analysis.RawResult, error) {
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)

	p.metrics.InFlight(1)
	defer p.metrics.InFlight(-1)

	start := time.Now()
	raw, err := p.next.Predict(ctx, img)
	p.metrics.ObserveInference(resultLabel(err), time.Since(start))
	return raw, err
}

// Waiting reports callers currently queued for a slot.
func (p *Pool) Waiting() int64 { return p.waiting.Load() }

func (p *Pool) acquire(ctx context.Context) error {
	if p.sem.TryAcquire(1) {
		return nil
	}
	if n := p.waiting.Add(1); n > int64(p.cfg.MaxQueue) {
		p.waiting.Add(-1)
		p.metrics.Rejected()
		p.logger.Warn("predictor queue full", zap.Int("max_queue", p.cfg.MaxQueue))
		return fmt.Errorf("%w: queue full", apperrors.ErrBusy)
	}
	p.metrics.Queued(1)
	defer func() {
		p.waiting.Add(-1)
		p.metrics.Queued(-1)
	}()

	waitCtx, cancel := context.WithTimeout(ctx, p.cfg.QueueTimeout)
	defer cancel()
	if err := p.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.metrics.Rejected()
		p.logger.Warn("predictor slot wait timed out", zap.Duration("queue_timeout", p.cfg.QueueTimeout))
		return fmt.Errorf("%w: waited %s for a predictor slot", apperrors.ErrBusy, p.cfg.QueueTimeout)
	}
	return nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperrors.ErrTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "process_error"
	}
}
