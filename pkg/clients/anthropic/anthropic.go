package anthropic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
	defaultModel   = "claude-3-haiku-20240307"
	maxTokens      = 2048
)

// Config holds the Anthropic Messages API settings.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Client turns free text into the JSON the extraction instructions ask for.
type Client struct {
	httpClient *resty.Client
	model      string
	logger     *zap.Logger
}

// NewClient creates a configured Anthropic client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("x-api-key", cfg.APIKey).
		SetHeader("anthropic-version", apiVersion).
		SetHeader("content-type", "application/json").
		SetTimeout(30 * time.Second)

	return &Client{httpClient: client, model: cfg.Model, logger: logger}
}

type messageRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system"`
	Temperature float64   `json:"temperature"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Extract sends text under the given system instructions and returns the raw reply.
func (c *Client) Extract(ctx context.Context, instructions, text string) (string, error) {
	reqBody := messageRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		System:      instructions,
		Temperature: 0.3,
		Messages:    []message{{Role: "user", Content: text}},
	}

	var respBody messageResponse
	apiErr := new(errorResponse)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(reqBody).
		SetResult(&respBody).
		SetError(apiErr).
		Post("/v1/messages")
	if err != nil {
		return "", fmt.Errorf("anthropic api call: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("anthropic api error: status=%d, message=%s", resp.StatusCode(), apiErr.Error.Message)
	}

	var sb strings.Builder
	for _, block := range respBody.Content {
		if block.Type == "" || block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("empty response from anthropic")
	}

	c.logger.Debug("extraction completed", zap.String("provider", "anthropic"), zap.Int("chars", sb.Len()))
	return sb.String(), nil
}
