package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode"

	contractx "github.com/tanpawarit/ops-desk/agent/contract"
)

// KeywordClassifier is the offline backend used for demos and tests without a provider key.
type KeywordClassifier struct{}

var _ contractx.Classifier = KeywordClassifier{}

var (
	negativeCues = []string{
		"sick of", "angry", "furious", "terrible", "worst", "hate", "ridiculous",
		"unacceptable", "not a good", "aren't a good", "disappointed", "fed up", "not happy",
	}
	positiveCues = []string{"thank", "great", "love", "awesome", "appreciate", "perfect"}
	refundCues   = []string{"refund", "money back", "return", "broken", "stopped working", "defective", "reimburse"}
	orderCues    = []string{"deliver", "where is", "status", "shipping", "shipped", "track", "arrive", "order"}
)

func (KeywordClassifier) Classify(_ context.Context, req contractx.ClassifyRequest) (string, error) {
	if len(req.Labels) == 0 {
		return "", fmt.Errorf("%w: labels are required", contractx.ErrValidation)
	}

	var label string
	switch req.Task {
	case contractx.ClassifySentiment:
		label = string(keywordSentiment(req.Text))
	case contractx.ClassifyIntent:
		label = string(keywordIntent(req.Text, filedProducts(req.Context)))
	default:
		return "", fmt.Errorf("%w: task=%s", contractx.ErrPromptMissing, req.Task)
	}

	if !slices.Contains(req.Labels, label) {
		return "", fmt.Errorf("%w: %s label %q not in %v", contractx.ErrSchemaViolation, req.Task, label, req.Labels)
	}
	return label, nil
}

func keywordSentiment(text string) contractx.Sentiment {
	lower := strings.ToLower(text)
	if containsAny(lower, negativeCues) || shouting(text) {
		return contractx.SentimentNegative
	}
	if containsAny(lower, positiveCues) {
		return contractx.SentimentPositive
	}
	return contractx.SentimentNeutral
}

// keywordIntent treats a refund for a product that already has a filed request as an order inquiry.
func keywordIntent(text string, filed []string) contractx.Intent {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, refundCues):
		if mentionsAny(lower, filed) {
			return contractx.IntentOrderInquiry
		}
		return contractx.IntentRefundRequest
	case containsAny(lower, orderCues):
		return contractx.IntentOrderInquiry
	default:
		return contractx.IntentGeneral
	}
}

// genericProductWords are too common across the catalog to identify a product.
var genericProductWords = map[string]bool{
	"smart": true, "wireless": true, "with": true, "inch": true, "system": true, "speed": true,
}

// filedProducts pulls the product names of refund requests out of the intent context bundle.
func filedProducts(bundle string) []string {
	if strings.TrimSpace(bundle) == "" {
		return nil
	}
	var parsed struct {
		Records contractx.RecordsOutput `json:"records"`
	}
	if err := json.Unmarshal([]byte(bundle), &parsed); err != nil {
		return nil
	}
	names := make([]string, 0, len(parsed.Records.Requests))
	for _, r := range parsed.Records.Requests {
		if r.ProductName != "" {
			names = append(names, r.ProductName)
		}
	}
	return names
}

// mentionsAny reports whether a distinctive word of any product name appears in the text.
func mentionsAny(lower string, products []string) bool {
	if len(products) == 0 {
		return false
	}
	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(lower, notWordRune) {
		words[w] = true
	}
	for _, product := range products {
		for _, w := range strings.FieldsFunc(strings.ToLower(product), notWordRune) {
			if len(w) >= 4 && !genericProductWords[w] && words[w] {
				return true
			}
		}
	}
	return false
}

func notWordRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func containsAny(s string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(s, cue) {
			return true
		}
	}
	return false
}

// shouting reports two or more all-caps words of at least three letters.
func shouting(text string) bool {
	count := 0
	for _, word := range strings.Fields(text) {
		letters, upper := 0, 0
		for _, r := range word {
			if unicode.IsLetter(r) {
				letters++
				if unicode.IsUpper(r) {
					upper++
				}
			}
		}
		if letters >= 3 && letters == upper {
			count++
		}
	}
	return count >= 2
}
