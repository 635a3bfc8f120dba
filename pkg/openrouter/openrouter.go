// Package openrouter builds clients for an OpenAI-compatible endpoint (OpenRouter by default).
// Both builders share one Config so the eino chat model and the raw SDK client agree on
// endpoint and credentials.
package openrouter

import (
	"context"
	"fmt"
	"strings"
	"time"

	openaimodel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const DefaultBaseURL = "https://openrouter.ai/api/v1"

// ChatModelBuilder is satisfied by Config.
type ChatModelBuilder interface {
	New(ctx context.Context) (model.ToolCallingChatModel, error)
}

var _ ChatModelBuilder = (*Config)(nil)

// Config is resolved by the llm package from LLM_* settings.
type Config struct {
	BaseURL            string
	APIKey             string
	Model              string
	MaxCompletionToken *int
	Temperature        float32
	Timeout            time.Duration
	MaxRetries         int
	SiteURL            string
	SiteName           string
}

// thinkingModels answer single labels wrapped in reasoning text unless told not to.
var thinkingModels = map[string]bool{
	"x-ai/grok-4.1-fast": true,
}

// ExcludesReasoning reports whether requests for modelName ask the provider to drop reasoning tokens.
func ExcludesReasoning(modelName string) bool {
	return thinkingModels[strings.TrimSpace(modelName)]
}

func (c Config) endpoint() string {
	if base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/"); base != "" {
		return base
	}
	return DefaultBaseURL
}

func (c Config) key() string {
	return strings.TrimSpace(c.APIKey)
}

// New builds the eino chat model used by the graph-backed classifier.
func (c *Config) New(ctx context.Context) (model.ToolCallingChatModel, error) {
	modelName := strings.TrimSpace(c.Model)
	if modelName == "" {
		return nil, fmt.Errorf("openrouter: model is required")
	}

	temperature := c.Temperature
	conf := &openaimodel.ChatModelConfig{
		BaseURL:     c.endpoint(),
		APIKey:      c.key(),
		Model:       modelName,
		MaxTokens:   c.MaxCompletionToken,
		Temperature: &temperature,
		Timeout:     c.Timeout,
	}
	if ExcludesReasoning(modelName) {
		conf.ExtraFields = map[string]any{
			"reasoning": map[string]any{"exclude": true, "effort": "none"},
		}
	}

	m, err := openaimodel.NewChatModel(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("openrouter: create chat model: %w", err)
	}
	return m, nil
}

// NewClient returns an openai-go client for the configured endpoint, or nil without an API key.
func NewClient(cfg Config) *openaisdk.Client {
	apiKey := cfg.key()
	if apiKey == "" {
		return nil
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.endpoint()),
		option.WithMaxRetries(max(cfg.MaxRetries, 0)),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	// attribution headers shown on the OpenRouter dashboard
	if v := strings.TrimSpace(cfg.SiteURL); v != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", v))
	}
	if v := strings.TrimSpace(cfg.SiteName); v != "" {
		opts = append(opts, option.WithHeader("X-Title", v))
	}

	client := openaisdk.NewClient(opts...)
	return &client
}
