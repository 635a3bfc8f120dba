package cmd

import (
	"fmt"
	"io"
	"strings"

	contractx "github.com/tanpawarit/ops-desk/agent/contract"
	statex "github.com/tanpawarit/ops-desk/agent/state"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	rule              = "============================================================"
	explanationLimit  = 150
	markSucceeded     = "✓"
	markFailed        = "✗"
	detailIndentation = "    → "
)

// humanize turns snake_case identifiers into Title Case words.
// A Caser keeps state, so each call builds its own.
func humanize(s string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(s, "_", " "))
}

// writeReport prints the customer-facing summary of a finished run.
func writeReport(w io.Writer, st *statex.PipelineState) {
	fmt.Fprintf(w, "\n%s\nAGENT RESPONSE TO USER\n%s\n", rule, rule)

	if st.Completed() {
		if audit := st.AuditOutput(); audit != nil && audit.Rationale != "" {
			fmt.Fprintf(w, "\n%s\n\n", audit.Rationale)
		} else {
			fmt.Fprint(w, "\nNo audit rationale available\n\n")
		}

		if action := st.ActionOutput(); action != nil {
			writeActions(w, action)
		}
	}

	fmt.Fprintf(w, "\n%s\nSYSTEM STATUS: %s\n%s\n", rule, strings.ToUpper(string(st.Status)), rule)
	if st.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", st.Error)
	}
	if st.Completed() {
		fmt.Fprintf(w, "%s Scenario completed successfully\n", markSucceeded)
	} else {
		fmt.Fprintf(w, "%s Scenario failed\n", markFailed)
	}
	fmt.Fprintf(w, "%s\n\n", rule)
}

func writeActions(w io.Writer, action *contractx.ActionOutput) {
	fmt.Fprintln(w, "Actions Taken:")
	for _, receipt := range action.ToolReceipts {
		mark := markFailed
		if receipt.Succeeded() {
			mark = markSucceeded
		}
		fmt.Fprintf(w, "  %s %s\n", mark, humanize(receipt.Tool))
		for _, line := range receiptDetails(receipt) {
			fmt.Fprintf(w, "%s%s\n", detailIndentation, line)
		}
	}
	fmt.Fprintf(w, "\nFinal Status: %s\n", humanize(string(action.Resolution)))
}

func receiptDetails(r contractx.ToolReceipt) []string {
	get := func(key string, fallback any) any {
		if v, ok := r.Response[key]; ok && v != nil {
			return v
		}
		return fallback
	}

	if !r.Succeeded() {
		if msg, ok := r.Response["error"].(string); ok && msg != "" {
			return []string{"Failed: " + msg}
		}
		return []string{fmt.Sprintf("Failed with status %d", r.Status)}
	}

	switch r.Tool {
	case "create_refund_request":
		return []string{
			fmt.Sprintf("Refund Request ID: %v", get("refund_request_id", "unknown")),
			fmt.Sprintf("Amount: %v %v", get("currency", "USD"), get("amount", 0)),
		}
	case "escalate_ticket":
		return []string{
			fmt.Sprintf("Ticket ID: %v", get("ticket_id", "unknown")),
			fmt.Sprintf("Escalation Level: %v", get("escalation_level", "unknown")),
		}
	case "create_ticket", "update_ticket":
		return []string{
			fmt.Sprintf("Ticket ID: %v", get("ticket_id", "unknown")),
			fmt.Sprintf("Sentiment: %v", get("customer_sentiment", "unknown")),
		}
	case "explain_refund_state", "explain_order_state":
		explanation, _ := r.Response["explanation"].(string)
		if explanation == "" {
			return nil
		}
		if runes := []rune(explanation); len(runes) > explanationLimit {
			explanation = string(runes[:explanationLimit]) + "..."
		}
		return []string{explanation}
	default:
		return nil
	}
}
