// internal/common/llm/gateway.go
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"insight-agents/internal/common/config"
	apperrors "insight-agents/internal/common/errors"
	commonhttp "insight-agents/internal/common/http"
	"insight-agents/internal/common/logger"
	"insight-agents/internal/common/metrics"
)

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Options struct {
	Temperature float64
	MaxTokens   int
}

// Gateway sends a chat prompt to a language model and returns the generated text.
type Gateway interface {
	Chat(ctx context.Context, messages []Message, model string, opts Options) (string, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxTokens      int
}

// ConfigFrom maps the llm config section.
func ConfigFrom(c config.LLMConfig) Config {
	return Config{
		BaseURL:        strings.TrimRight(c.BaseURL, "/"),
		APIKey:         c.APIKey,
		Model:          c.Model,
		Timeout:        config.GetDuration(c.Timeout),
		MaxAttempts:    c.MaxAttempts,
		InitialBackoff: config.GetDuration(c.InitialBackoff),
		MaxTokens:      c.MaxTokens,
	}
}

// Client is an OpenAI-compatible chat-completions gateway with retry and
// exponential backoff.
type Client struct {
	config Config
	http   *commonhttp.Client
	logger logger.Logger
	sleep  SleepFunc
}

type ClientOption func(*Client)

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(fn SleepFunc) ClientOption {
	return func(c *Client) { c.sleep = fn }
}

func WithHTTPClient(hc *commonhttp.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

func NewClient(cfg Config, log logger.Logger, opts ...ClientOption) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	c := &Client{
		config: cfg,
		http:   commonhttp.NewClient(cfg.Timeout),
		logger: log.With(map[string]interface{}{"component": "llm-gateway"}),
		sleep:  contextSleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultModel is the model used when Chat is called with an empty model name.
func (c *Client) DefaultModel() string {
	return c.config.Model
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Chat makes up to MaxAttempts requests. After every failed retryable attempt it
// waits InitialBackoff doubled per attempt (1s, 2s, 4s by default).
func (c *Client) Chat(ctx context.Context, messages []Message, model string, opts Options) (string, error) {
	if model == "" {
		model = c.config.Model
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = c.config.MaxTokens
	}
	req := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		text, retryable, err := c.send(ctx, req)
		if err == nil {
			metrics.LLMAttempts.WithLabelValues("success").Inc()
			return text, nil
		}
		if !retryable {
			metrics.LLMAttempts.WithLabelValues("rejected").Inc()
			return "", err
		}

		metrics.LLMAttempts.WithLabelValues("retryable_error").Inc()
		lastErr = err
		delay := c.config.InitialBackoff * time.Duration(1<<(attempt-1))
		c.logger.Warn("llm request failed, backing off", map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": c.config.MaxAttempts,
			"delayMs":     delay.Milliseconds(),
			"error":       err.Error(),
		})

		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return "", apperrors.NewGatewayExhaustedError(attempt, fmt.Errorf("%v (backoff interrupted: %w)", lastErr, sleepErr))
		}
	}

	return "", apperrors.NewGatewayExhaustedError(c.config.MaxAttempts, lastErr)
}

func (c *Client) send(ctx context.Context, req chatRequest) (string, bool, error) {
	headers := map[string]string{}
	if c.config.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.config.APIKey
	}

	resp, err := c.http.PostJSON(ctx, c.config.BaseURL+"/chat/completions", headers, req)
	if err != nil {
		return "", true, fmt.Errorf("request failed: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", true, fmt.Errorf("rate limited (status 429): %s", truncate(resp.Body))
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode >= 500:
		return "", true, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(resp.Body))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", false, apperrors.NewGatewayRejectedError(resp.StatusCode, truncate(resp.Body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return "", true, fmt.Errorf("decode completion: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", true, fmt.Errorf("completion has no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), false, nil
}

func truncate(body []byte) string {
	const max = 300
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
