package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/ops-desk/agent/contract"
)

var (
	//go:embed template/system.txt
	systemRaw string

	//go:embed template/intent.txt
	intentRaw string

	//go:embed template/sentiment.txt
	sentimentRaw string
)

// PromptSet holds loaded prompt content. Templates use {text} and {context} placeholders.
type PromptSet struct {
	System    string
	Intent    string
	Sentiment string
}

func LoadPromptSet() PromptSet {
	return PromptSet{
		System:    strings.TrimSpace(systemRaw),
		Intent:    strings.TrimSpace(intentRaw),
		Sentiment: strings.TrimSpace(sentimentRaw),
	}
}

// ForTask returns the classification template for task.
func (p PromptSet) ForTask(task contractx.ClassifyTask) (string, error) {
	var tmpl string
	switch task {
	case contractx.ClassifyIntent:
		tmpl = p.Intent
	case contractx.ClassifySentiment:
		tmpl = p.Sentiment
	}
	if strings.TrimSpace(tmpl) == "" {
		return "", fmt.Errorf("%w: task=%s", contractx.ErrPromptMissing, task)
	}
	return tmpl, nil
}
