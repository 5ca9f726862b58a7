package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/ollama/ollama/api"

	"broadwaybot/internal/config"
	"broadwaybot/internal/logger"
)

// Generator is the narrow model surface the assistant components use.
// Keeping it one method makes per-test fakes trivial.
type Generator interface {
	Generate(ctx context.Context, messages []*schema.Message) (*schema.Message, error)
}

// NewChatModel builds the provider selected by MODEL_PROVIDER. All four
// providers normalize to eino's BaseChatModel, so callers never branch
// on provider again.
func NewChatModel(ctx context.Context, cfg config.LLMConfig) (model.BaseChatModel, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	logger.Info().
		Str("provider", provider).
		Str("model", cfg.Model).
		Msg("Initializing chat model")

	switch provider {
	case "openai", "openrouter", "":
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			MaxTokens:   &cfg.MaxTokens,
			Temperature: &cfg.Temperature,
		})
	case "ark":
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			MaxTokens:   &cfg.MaxTokens,
			Temperature: &cfg.Temperature,
		})
	case "deepseek":
		return deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		})
	case "ollama":
		return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Options: &api.Options{
				NumPredict:  cfg.MaxTokens,
				Temperature: cfg.Temperature,
			},
		})
	}
	return nil, fmt.Errorf("unknown model provider '%s'", cfg.Provider)
}

// Client wraps a chat model with the configured call timeout. Every
// LLM call in the assistant goes through here so a slow provider can
// only ever delay a turn, never wedge it.
type Client struct {
	model   model.BaseChatModel
	timeout time.Duration
}

// NewClient builds the configured provider and wraps it.
func NewClient(ctx context.Context, cfg config.LLMConfig) (*Client, error) {
	m, err := NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return &Client{model: m, timeout: cfg.Timeout}, nil
}

// WrapModel wraps an already-built model, mainly for tests.
func WrapModel(m model.BaseChatModel, timeout time.Duration) *Client {
	return &Client{model: m, timeout: timeout}
}

// Generate runs one chat completion under the call timeout.
func (c *Client) Generate(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := c.model.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("model generation failed: %w", err)
	}
	return resp, nil
}
