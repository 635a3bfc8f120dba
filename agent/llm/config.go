package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/ops-desk/agent/contract"
	openrouterx "github.com/tanpawarit/ops-desk/pkg/openrouter"
)

type Backend string

const (
	// BackendEino drives the model through an eino compose graph.
	BackendEino Backend = "eino"
	// BackendOpenAI calls chat completions directly with the openai-go SDK.
	BackendOpenAI Backend = "openai"
	// BackendKeyword classifies offline with keyword rules.
	BackendKeyword Backend = "keyword"
)

type Config struct {
	Backend            Backend       `envconfig:"BACKEND" split_words:"true" default:"eino"`
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" default:"openai/gpt-4o-mini"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"16"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true" default:"ops-desk"`

	ClassifierModel       string  `envconfig:"CLASSIFIER_MODEL" split_words:"true"`
	ClassifierTemperature float32 `envconfig:"CLASSIFIER_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendKeyword:
		return nil
	case BackendEino, BackendOpenAI:
	default:
		return fmt.Errorf("%w: unknown llm backend=%q", contractx.ErrValidation, c.Backend)
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: llm api key is required for backend=%s", contractx.ErrValidation, c.Backend)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// OpenRouter resolves the provider config used for classification calls.
func (c Config) OpenRouter() openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	if v := strings.TrimSpace(c.ClassifierModel); v != "" {
		modelName = v
	}
	temp := c.Temperature
	if c.ClassifierTemperature >= 0 {
		temp = c.ClassifierTemperature
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
