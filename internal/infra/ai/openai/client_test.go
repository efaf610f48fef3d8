package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/leafcheck/internal/domain/analysis"
	"github.com/bryanwahyu/leafcheck/internal/domain/apperrors"
)

const completionsURL = "https://api.openai.com/v1/chat/completions"

func completion(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"model":   "gpt-4o-mini",
		"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": content}}},
		"usage":   map[string]any{"total_tokens": 42},
	}
}

func setup(t *testing.T, cfg Config) (*Client, *httpmock.MockTransport, analysis.Image) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	path := filepath.Join(t.TempDir(), "leaf.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\nfake"), 0o600))
	c := NewClient(cfg, &http.Client{Transport: mt}, nil)
	return c, mt, analysis.Image{Ref: "a/leaf.png", Path: path, ContentType: "image/png"}
}

func TestPredictSendsImageAndDecodes(t *testing.T) {
	c, mt, img := setup(t, Config{APIKey: "sk-test", Labels: []string{"Tomato___Leaf_Mold"}})

	var sent struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
		ResponseFormat struct {
			Type string `json:"type"`
		} `json:"response_format"`
	}
	mt.RegisterResponder(http.MethodPost, completionsURL, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(req.Body).Decode(&sent))
		return httpmock.NewJsonResponse(http.StatusOK, completion(`{"ok":true,"predicted_key":"Tomato___Leaf_Mold","confidence":0.91}`))
	})

	raw, err := c.Predict(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, "Tomato___Leaf_Mold", raw["predicted_key"])
	assert.Equal(t, json.Number("0.91"), raw["confidence"])

	assert.Equal(t, "gpt-4o-mini", sent.Model)
	assert.Equal(t, "json_object", sent.ResponseFormat.Type)
	require.Len(t, sent.Messages, 2)
	user := string(sent.Messages[1].Content)
	assert.Contains(t, user, "data:image/png;base64,")
	assert.Contains(t, user, "Tomato___Leaf_Mold")
	assert.Equal(t, 1, mt.GetTotalCallCount())

	out := analysis.Classifier{MinConfidence: 0.5}.Classify(raw)
	assert.Equal(t, analysis.OutcomeConfident, out.Kind)
}

func TestPredictRejectsNonObjectReplies(t *testing.T) {
	for _, content := range []string{`not json`, `[1,2]`, `null`, `{"a":1} {"b":2}`} {
		c, mt, img := setup(t, Config{APIKey: "k"})
		mt.RegisterResponder(http.MethodPost, completionsURL, httpmock.NewJsonResponderOrPanic(http.StatusOK, completion(content)))

		_, err := c.Predict(context.Background(), img)
		assert.ErrorIs(t, err, apperrors.ErrProcess, content)
	}
}

func TestPredictQuotaIsBusy(t *testing.T) {
	c, mt, img := setup(t, Config{APIKey: "k"})
	mt.RegisterResponder(http.MethodPost, completionsURL, httpmock.NewJsonResponderOrPanic(http.StatusTooManyRequests, map[string]any{
		"error": map[string]any{"message": "quota", "type": "insufficient_quota"},
	}))

	_, err := c.Predict(context.Background(), img)
	assert.ErrorIs(t, err, apperrors.ErrBusy)
}

func TestPredictServerErrorIsProcessError(t *testing.T) {
	c, mt, img := setup(t, Config{APIKey: "k"})
	mt.RegisterResponder(http.MethodPost, completionsURL, httpmock.NewJsonResponderOrPanic(http.StatusInternalServerError, map[string]any{
		"error": map[string]any{"message": "boom", "type": "server_error"},
	}))

	_, err := c.Predict(context.Background(), img)
	assert.ErrorIs(t, err, apperrors.ErrProcess)
}

func TestPredictTimeout(t *testing.T) {
	c, mt, img := setup(t, Config{APIKey: "k", Timeout: 50 * time.Millisecond})
	mt.RegisterResponder(http.MethodPost, completionsURL, func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	_, err := c.Predict(context.Background(), img)
	var te *apperrors.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 50*time.Millisecond, te.After)
}

func TestPredictMissingImage(t *testing.T) {
	c, mt, _ := setup(t, Config{APIKey: "k"})
	_, err := c.Predict(context.Background(), analysis.Image{Path: filepath.Join(t.TempDir(), "gone.png")})
	assert.ErrorIs(t, err, apperrors.ErrProcess)
	assert.Zero(t, mt.GetTotalCallCount())
}

func TestReasoningModelUsesCompletionTokens(t *testing.T) {
	c, mt, img := setup(t, Config{APIKey: "k", Model: "o4-mini"})
	var body string
	mt.RegisterResponder(http.MethodPost, completionsURL, func(req *http.Request) (*http.Response, error) {
		b, _ := io.ReadAll(req.Body)
		body = string(b)
		return httpmock.NewJsonResponse(http.StatusOK, completion(`{"ok":false}`))
	})

	_, err := c.Predict(context.Background(), img)
	require.NoError(t, err)
	assert.Contains(t, body, `"max_completion_tokens":1024`)
	assert.NotContains(t, body, `"max_tokens"`)
}
