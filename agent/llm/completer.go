package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go"
	contractx "github.com/tanpawarit/ops-desk/agent/contract"
	promptx "github.com/tanpawarit/ops-desk/agent/prompt"
	openrouterx "github.com/tanpawarit/ops-desk/pkg/openrouter"
)

// EinoCompleter runs prompt -> chat model through a compiled eino graph.
type EinoCompleter struct {
	runner compose.Runnable[map[string]any, *schema.Message]
}

var _ contractx.Completer = (*EinoCompleter)(nil)

func NewEinoCompleter(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*EinoCompleter, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}

	runner, err := compileCompletionGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: compile completion graph: %v", contractx.ErrModelInvoke, err)
	}
	return &EinoCompleter{runner: runner}, nil
}

func (c *EinoCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := c.runner.Invoke(ctx, map[string]any{"input": prompt})
	if err != nil {
		return "", fmt.Errorf("%w: completion invoke: %v", contractx.ErrModelInvoke, err)
	}
	if msg == nil {
		return "", fmt.Errorf("%w: empty completion response", contractx.ErrSchemaViolation)
	}
	return strings.TrimSpace(msg.Content), nil
}

func compileCompletionGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	messages := []schema.MessagesTemplate{}
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, schema.SystemMessage(systemPrompt))
	}
	messages = append(messages, schema.UserMessage("{input}"))
	template := einoprompt.FromMessages(schema.FString, messages...)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add completion prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add completion model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add completion edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add completion edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add completion edge model->end: %w", err)
	}

	return graph.Compile(ctx, compose.WithGraphName("llm.completion_graph"))
}

// OpenAICompleter calls chat completions directly through the openai-go SDK.
type OpenAICompleter struct {
	client       *openai.Client
	model        string
	systemPrompt string
	temperature  float64
	maxTokens    int64
}

var _ contractx.Completer = (*OpenAICompleter)(nil)

func NewOpenAICompleter(client *openai.Client, cfg openrouterx.Config, systemPrompt string) (*OpenAICompleter, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("%w: model is required", contractx.ErrValidation)
	}

	c := &OpenAICompleter{
		client:       client,
		model:        strings.TrimSpace(cfg.Model),
		systemPrompt: strings.TrimSpace(systemPrompt),
		temperature:  float64(cfg.Temperature),
	}
	if cfg.MaxCompletionToken != nil {
		c.maxTokens = int64(*cfg.MaxCompletionToken)
	}
	return c, nil
}

func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if c.systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(c.systemPrompt))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(c.temperature),
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(c.maxTokens)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: chat completion: %v", contractx.ErrModelInvoke, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: chat completion returned no choices", contractx.ErrSchemaViolation)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// NewClassifier builds the classifier for the configured backend.
func NewClassifier(ctx context.Context, cfg Config) (contractx.Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Backend == BackendKeyword {
		return KeywordClassifier{}, nil
	}

	prompts := promptx.LoadPromptSet()
	orCfg := cfg.OpenRouter()

	var completer contractx.Completer
	switch cfg.Backend {
	case BackendOpenAI:
		client := openrouterx.NewClient(orCfg)
		c, err := NewOpenAICompleter(client, orCfg, prompts.System)
		if err != nil {
			return nil, err
		}
		completer = c
	default:
		chatModel, err := orCfg.New(ctx)
		if err != nil {
			return nil, err
		}
		c, err := NewEinoCompleter(ctx, chatModel, prompts.System)
		if err != nil {
			return nil, err
		}
		completer = c
	}

	return NewLabelClassifier(completer, prompts)
}
