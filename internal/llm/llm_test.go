package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/functionx37/yiyin-bot/internal/config"
	"github.com/functionx37/yiyin-bot/internal/web"
)

func TestNotConfigured(t *testing.T) {
	c := NewClient(config.LLMConfig{}, web.NewClient())
	assert.False(t, c.Configured())

	_, err := c.ChatCompletion(context.Background(), []Message{{Role: "user", Content: "hi"}}, Options{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestConfigured(t *testing.T) {
	c := NewClient(config.LLMConfig{APIKey: "k", BaseURL: "https://example.com/v1"}, web.NewClient())
	assert.True(t, c.Configured())
}
