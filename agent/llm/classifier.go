package llm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/ops-desk/agent/contract"
	promptx "github.com/tanpawarit/ops-desk/agent/prompt"
)

// LabelClassifier renders a task prompt, asks the completer, and validates the label.
type LabelClassifier struct {
	completer contractx.Completer
	templates map[contractx.ClassifyTask]*einoprompt.DefaultChatTemplate
}

var _ contractx.Classifier = (*LabelClassifier)(nil)

func NewLabelClassifier(completer contractx.Completer, prompts promptx.PromptSet) (*LabelClassifier, error) {
	if completer == nil {
		return nil, errors.New("completer is required")
	}

	templates := map[contractx.ClassifyTask]*einoprompt.DefaultChatTemplate{}
	for _, task := range []contractx.ClassifyTask{contractx.ClassifyIntent, contractx.ClassifySentiment} {
		raw, err := prompts.ForTask(task)
		if err != nil {
			return nil, err
		}
		templates[task] = einoprompt.FromMessages(schema.FString, schema.UserMessage(raw))
	}

	return &LabelClassifier{completer: completer, templates: templates}, nil
}

func (c *LabelClassifier) Classify(ctx context.Context, req contractx.ClassifyRequest) (string, error) {
	tmpl, ok := c.templates[req.Task]
	if !ok {
		return "", fmt.Errorf("%w: task=%s", contractx.ErrPromptMissing, req.Task)
	}
	if len(req.Labels) == 0 {
		return "", fmt.Errorf("%w: labels are required", contractx.ErrValidation)
	}

	msgs, err := tmpl.Format(ctx, map[string]any{
		"text":    req.Text,
		"context": req.Context,
	})
	if err != nil {
		return "", fmt.Errorf("%w: render %s prompt: %v", contractx.ErrValidation, req.Task, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%w: empty %s prompt", contractx.ErrPromptMissing, req.Task)
	}

	raw, err := c.completer.Complete(ctx, msgs[0].Content)
	if err != nil {
		return "", err
	}

	label := NormalizeLabel(raw)
	if !slices.Contains(req.Labels, label) {
		return "", fmt.Errorf("%w: %s label %q not in %v", contractx.ErrSchemaViolation, req.Task, label, req.Labels)
	}
	return label, nil
}

// NormalizeLabel lower-cases a model answer and strips quotes and trailing punctuation.
func NormalizeLabel(raw string) string {
	return strings.Trim(strings.ToLower(raw), " \t\r\n\"'`*.!")
}
