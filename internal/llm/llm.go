// Package llm is a small client for OpenAI-compatible chat completion
// endpoints, shared by the plugins that generate text.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/functionx37/yiyin-bot/internal/config"
	"github.com/functionx37/yiyin-bot/internal/web"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("llm: api key not configured")

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tune a single completion request. Zero values fall back to the
// endpoint defaults used across the bot.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// Client talks to one OpenAI-compatible endpoint.
type Client struct {
	cfg  config.LLMConfig
	http *web.Client
}

func NewClient(cfg config.LLMConfig, http *web.Client) *Client {
	return &Client{cfg: cfg, http: http}
}

// Configured reports whether the client has credentials to work with.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatCompletion runs one chat completion and returns the assistant text.
func (c *Client) ChatCompletion(ctx context.Context, messages []Message, opts Options) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if opts.Model == "" {
		opts.Model = "claude-haiku-4-5-20251001"
	}
	if opts.Temperature <= 0 {
		opts.Temperature = 0.8
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 256
	}
	if opts.TopP <= 0 {
		opts.TopP = 0.9
	}

	payload := map[string]any{
		"model":       opts.Model,
		"messages":    messages,
		"temperature": opts.Temperature,
		"max_tokens":  opts.MaxTokens,
		"top_p":       opts.TopP,
		"stream":      false,
	}
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	var resp completionResponse
	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/chat/completions"
	if err := c.http.PostJSON(ctx, url, headers, payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm: empty choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
