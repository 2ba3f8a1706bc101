package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// deepModeDirective is prepended as a system message in deep mode so that
// OpenAI-compatible backends produce a reasoned answer.
const deepModeDirective = "Think through the problem step by step before giving your final answer."

// HTTPConfig configures an OpenAI-compatible chat adapter. Every remote
// provider that speaks the chat-completions dialect (OpenAI, Groq, Ollama,
// vLLM, ...) is served by this one adapter with a different config.
type HTTPConfig struct {
	// Name is the provider name the adapter serves
	Name string

	// BaseURL is the API root, e.g. "https://api.openai.com/v1"
	BaseURL string

	// APIKey for bearer authentication; empty for unauthenticated local backends
	APIKey string

	// Model used for fast mode
	Model string

	// DeepModel used for deep mode; falls back to Model when empty
	DeepModel string

	// Timeout is the transport-level backstop for a single call
	Timeout time.Duration

	// Headers are added to every request
	Headers map[string]string
}

// HTTPAdapter implements Adapter over an OpenAI-compatible chat completions API
type HTTPAdapter struct {
	cfg    HTTPConfig
	client *http.Client
	logger *zap.Logger
}

// NewHTTPAdapter creates an adapter for one configured provider
func NewHTTPAdapter(cfg HTTPConfig, logger *zap.Logger) *HTTPAdapter {
	if cfg.DeepModel == "" {
		cfg.DeepModel = cfg.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &HTTPAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Name returns the provider name
func (a *HTTPAdapter) Name() string {
	return a.cfg.Name
}

// Healthy probes the provider's model listing endpoint, the cheapest call an
// OpenAI-compatible backend answers. Used as the recovery health check.
func (a *HTTPAdapter) Healthy(ctx context.Context) bool {
	url := strings.TrimSuffix(a.cfg.BaseURL, "/") + "/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	if a.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}
	for k, v := range a.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	return resp.StatusCode == http.StatusOK
}

// chatCompletionRequest is the OpenAI-compatible wire request
type chatCompletionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// chatCompletionResponse is the subset of the wire response we consume
type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"message"`
	} `json:"choices"`
}

// Execute performs the chat completion call and normalizes the result
func (a *HTTPAdapter) Execute(ctx context.Context, req *Request) (*NormalizedResponse, error) {
	model := a.cfg.Model
	if req.Mode == ModeDeep {
		model = a.cfg.DeepModel
	}

	messages := make([]Message, 0, len(req.History)+2)
	if req.Mode == ModeDeep {
		messages = append(messages, Message{Role: "system", Content: deepModeDirective})
	}
	messages = append(messages, req.History...)
	messages = append(messages, Message{Role: "user", Content: req.Message})

	body, err := json.Marshal(chatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return nil, NewMalformedResponseError(a.cfg.Name, "failed to encode request", err)
	}

	url := strings.TrimSuffix(a.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewNetworkError(a.cfg.Name, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if a.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}
	for k, v := range a.cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	a.logger.Debug("dispatching chat completion",
		zap.String("provider", a.cfg.Name),
		zap.String("model", model),
		zap.String("mode", string(req.Mode)))

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, NewNetworkError(a.cfg.Name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, NewAuthError(a.cfg.Name, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, NewRateLimitError(a.cfg.Name, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, NewServerError(a.cfg.Name, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, NewMalformedResponseError(a.cfg.Name,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var decoded chatCompletionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&decoded); err != nil {
		return nil, NewMalformedResponseError(a.cfg.Name, "failed to decode response", err)
	}

	if len(decoded.Choices) == 0 {
		return nil, NewMalformedResponseError(a.cfg.Name, "response contained no choices", nil)
	}

	content := decoded.Choices[0].Message.Content
	reasoning := decoded.Choices[0].Message.ReasoningContent
	if reasoning == "" {
		content, reasoning = splitThinkBlock(content)
	}
	if strings.TrimSpace(content) == "" {
		return nil, NewMalformedResponseError(a.cfg.Name, "response contained no content", nil)
	}

	respModel := decoded.Model
	if respModel == "" {
		respModel = model
	}

	return &NormalizedResponse{
		Content:        strings.TrimSpace(content),
		ReasoningTrace: strings.TrimSpace(reasoning),
		Mode:           req.Mode,
		Model:          respModel,
	}, nil
}

// splitThinkBlock separates a leading <think>...</think> block, emitted by
// some reasoning models, from the answer text.
func splitThinkBlock(content string) (answer, reasoning string) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "<think>") {
		return content, ""
	}
	end := strings.Index(trimmed, "</think>")
	if end < 0 {
		return content, ""
	}
	reasoning = strings.TrimSpace(trimmed[len("<think>"):end])
	answer = strings.TrimSpace(trimmed[end+len("</think>"):])
	return answer, reasoning
}
