// Package deepseek calls an OpenAI-compatible chat completions endpoint.
package deepseek

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.deepseek.com"
	defaultModel   = "deepseek-chat"
	temperature    = 0.3
)

// Config holds the chat completions endpoint settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Client is a resty-backed chat completions client.
type Client struct {
	httpClient *resty.Client
	model      string
	logger     *zap.Logger
}

// NewClient builds a client for the configured endpoint.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	restyClient := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(60 * time.Second)

	return &Client{httpClient: restyClient, model: cfg.Model, logger: logger}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Extract sends instructions as the system message and text as the user message.
func (c *Client) Extract(ctx context.Context, instructions, text string) (string, error) {
	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: instructions},
			{Role: "user", Content: text},
		},
		Temperature: temperature,
	}

	result := new(chatResponse)
	apiErr := new(apiError)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(result).
		SetError(apiErr).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("chat completion error: status=%d, message=%s", resp.StatusCode(), apiErr.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	content := result.Choices[0].Message.Content
	c.logger.Debug("extraction completed", zap.String("provider", "deepseek"), zap.Int("chars", len(content)))
	return content, nil
}
