package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/leafcheck/internal/domain/analysis"
	"github.com/bryanwahyu/leafcheck/internal/domain/apperrors"
)

const (
	defaultTimeout   = 4 * time.Minute
	defaultMaxOutput = 1 << 20
	maxStderrBytes   = 4 << 10
	waitDelay        = 2 * time.Second
)

// Config describes how to start the external predictor. The image path is
// appended as the last argument.
type Config struct {
	Command        string
	Args           []string
	WorkDir        string
	Env            []string
	Timeout        time.Duration
	MaxOutputBytes int64
}

// Runner is a Predictor backed by one child process per call.
type Runner struct {
	cfg    Config
	logger *zap.Logger
}

func NewRunner(cfg Config, logger *zap.Logger) *Runner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = defaultMaxOutput
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, logger: logger.Named("predictor")}
}

// Predict runs the command against img.Path and decodes its stdout, which
// must be exactly one JSON object. On timeout the whole process group is
// killed and any output is discarded.
func (r *Runner) Predict(ctx context.Context, img analysis.Image) (analysis.RawResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	args := make([]string, 0, len(r.cfg.Args)+1)
	args = append(args, r.cfg.Args...)
	args = append(args, img.Path)

	cmd := exec.CommandContext(runCtx, r.cfg.Command, args...)
	cmd.Dir = r.cfg.WorkDir
	if len(r.cfg.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.cfg.Env...)
	}
	killProcessTree(cmd)
	cmd.WaitDelay = waitDelay

	stdout := &cappedBuffer{max: r.cfg.MaxOutputBytes}
	stderr := &cappedBuffer{max: maxStderrBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	log := r.logger.With(
		zap.String("image", img.Ref),
		zap.Duration("elapsed", elapsed),
	)

	if ctxErr := runCtx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			log.Warn("predictor timed out, process tree killed",
				zap.Duration("timeout", r.cfg.Timeout),
				zap.String("stderr", stderr.String()))
			return nil, &apperrors.TimeoutError{After: r.cfg.Timeout}
		}
		log.Info("predictor canceled by caller")
		return nil, ctx.Err()
	}

	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		log.Error("predictor failed",
			zap.Int("exit_code", exitCode),
			zap.String("stderr", stderr.String()),
			zap.Error(err))
		return nil, &apperrors.ProcessError{ExitCode: exitCode, Stderr: stderr.String(), Cause: err}
	}

	if stdout.truncated {
		log.Error("predictor output too large", zap.Int64("limit", r.cfg.MaxOutputBytes))
		return nil, &apperrors.ProcessError{
			Stderr: stderr.String(),
			Cause:  fmt.Errorf("stdout exceeded %d bytes", r.cfg.MaxOutputBytes),
		}
	}

	raw, err := decodeSingleObject(stdout.Bytes())
	if err != nil {
		log.Error("predictor output is not a single JSON object",
			zap.ByteString("stdout", truncate(stdout.Bytes(), maxStderrBytes)),
			zap.String("stderr", stderr.String()),
			zap.Error(err))
		return nil, &apperrors.ProcessError{Stderr: stderr.String(), Cause: err}
	}

	if stderr.Len() > 0 {
		log.Debug("predictor stderr", zap.String("stderr", stderr.String()))
	}
	log.Info("predictor finished")
	return raw, nil
}

// decodeSingleObject accepts surrounding whitespace only.
func decodeSingleObject(b []byte) (analysis.RawResult, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var raw analysis.RawResult
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty output")
		}
		return nil, fmt.Errorf("decode output: %w", err)
	}
	if raw == nil {
		return nil, errors.New("output is null")
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, errors.New("output holds more than one JSON value")
	}
	return raw, nil
}

// cappedBuffer keeps at most max bytes and silently drops the rest, so a
// chatty child never blocks on a full pipe. The buffer is a named field:
// an embedded bytes.Buffer would hand io.Copy its ReadFrom and skip the cap.
type cappedBuffer struct {
	buf       bytes.Buffer
	max       int64
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.max - int64(b.buf.Len())
	if room <= 0 {
		if len(p) > 0 {
			b.truncated = true
		}
		return len(p), nil
	}
	if int64(len(p)) > room {
		b.truncated = true
		b.buf.Write(p[:room])
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) Len() int       { return b.buf.Len() }
func (b *cappedBuffer) Bytes() []byte  { return b.buf.Bytes() }
func (b *cappedBuffer) String() string { return b.buf.String() }

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
