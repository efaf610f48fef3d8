package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/bryanwahyu/leafcheck/internal/domain/analysis"
	"github.com/bryanwahyu/leafcheck/internal/domain/apperrors"
	"github.com/bryanwahyu/leafcheck/internal/infra/ai/prompt"
)

const (
	maxTokens    = 1024
	defaultModel = "gpt-4o-mini"
)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	// Labels narrows the answer to known catalog keys.
	Labels []string
}

// Client is a Predictor backed by an OpenAI vision model.
type Client struct {
	*openai.Client
	cfg    Config
	logger *zap.Logger
}

func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		oc.HTTPClient = httpClient
	}
	return &Client{Client: openai.NewClientWithConfig(oc), cfg: cfg, logger: logger.Named("predictor.openai")}
}

// Predict sends the image as a data URL and decodes the reply as a RawResult.
func (c *Client) Predict(ctx context.Context, img analysis.Image) (analysis.RawResult, error) {
	data, err := os.ReadFile(img.Path)
	if err != nil {
		return nil, &apperrors.ProcessError{ExitCode: -1, Cause: fmt.Errorf("read image: %w", err)}
	}
	contentType := img.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)

	req := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt.GetUserPrompt(c.cfg.Labels)},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailLow}},
			}},
		},
	}
	// reasoning models (o1/o3/o4/gpt-5*) take MaxCompletionTokens instead of MaxTokens
	if m := c.cfg.Model; strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "o4") || strings.HasPrefix(m, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	callCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.CreateChatCompletion(callCtx, req)
	if err != nil {
		return nil, c.classify(ctx, callCtx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, &apperrors.ProcessError{ExitCode: -1, Cause: errors.New("empty completion")}
	}
	c.logger.Debug("completion done",
		zap.String("model", resp.Model),
		zap.Int("tokens", resp.Usage.TotalTokens),
		zap.Duration("duration", time.Since(start)),
	)

	raw, err := decodeObject(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, &apperrors.ProcessError{ExitCode: -1, Cause: err}
	}
	return raw, nil
}

func (c *Client) classify(ctx, callCtx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return &apperrors.TimeoutError{After: c.cfg.Timeout}
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		c.logger.Warn("openai quota exceeded", zap.Error(err))
		return fmt.Errorf("%w: %v", apperrors.ErrBusy, err)
	}
	c.logger.Warn("openai completion failed", zap.Error(err))
	return &apperrors.ProcessError{ExitCode: -1, Cause: fmt.Errorf("failed to create chat completion: %w", err)}
}

// decodeObject accepts exactly one JSON object, numbers kept as json.Number.
func decodeObject(content string) (analysis.RawResult, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(strings.TrimSpace(content))))
	dec.UseNumber()
	var raw analysis.RawResult
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}
	if raw == nil {
		return nil, errors.New("completion is not a JSON object")
	}
	if err := dec.Decode(new(json.RawMessage)); err != io.EOF {
		return nil, errors.New("completion has trailing data")
	}
	return raw, nil
}
