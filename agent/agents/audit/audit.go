package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/ops-desk/agent/contract"
	toolx "github.com/tanpawarit/ops-desk/agent/tool"
)

const (
	CitationSource    = "policy_database"
	CitationRelevance = 0.95
	VerdictError      = "error"

	queryEchoLimit   = 100
	explanationLimit = 100
	separator        = " | "
)

var stageNames = []string{"records", "policy", "action", "audit"}

// Request carries every upstream output. Nil outputs mean the stage failed.
type Request struct {
	UserID  string
	Query   string
	Policy  *contractx.PolicyOutput
	Records *contractx.RecordsOutput
	Action  *contractx.ActionOutput
	SpanIDs []string
}

// Agent builds the audit trail for one run and optionally persists it.
type Agent struct {
	recorder contractx.AuditRecorder
	newID    func() string
	now      func() time.Time
	timeout  time.Duration
}

type Option func(*Agent)

// WithRecorder persists each audit record. Recorder failures are logged only.
func WithRecorder(recorder contractx.AuditRecorder) Option {
	return func(a *Agent) {
		a.recorder = recorder
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(a *Agent) {
		if newID != nil {
			a.newID = newID
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		if now != nil {
			a.now = now
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(a *Agent) {
		a.timeout = d
	}
}

func New(opts ...Option) *Agent {
	a := &Agent{
		newID: func() string { return "int_" + uuid.NewString() },
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

func (a *Agent) Process(ctx context.Context, req Request) (contractx.AuditOutput, error) {
	out := contractx.AuditOutput{
		InteractionID: a.newID(),
		SpanIDs:       spanIDs(req.SpanIDs),
		Citations:     Citations(req.Policy),
		ToolReceipts:  []contractx.ToolReceipt{},
		FinalVerdict:  VerdictError,
		Rationale:     Rationale(req),
		CreatedAt:     a.now().UTC(),
	}
	if req.Action != nil {
		out.ToolReceipts = append(out.ToolReceipts, req.Action.ToolReceipts...)
		out.FinalVerdict = string(req.Action.Resolution)
	}

	log.Info().
		Str("user_id", req.UserID).
		Str("interaction_id", out.InteractionID).
		Int("citations", len(out.Citations)).
		Int("receipts", len(out.ToolReceipts)).
		Str("verdict", out.FinalVerdict).
		Msg("audit trail generated")

	a.record(ctx, req.UserID, out)
	return out, nil
}

func (a *Agent) record(ctx context.Context, userID string, out contractx.AuditOutput) {
	if a.recorder == nil {
		return
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	if err := a.recorder.RecordAudit(ctx, userID, out); err != nil {
		log.Error().Err(err).Str("interaction_id", out.InteractionID).Msg("persist audit record failed")
	}
}

// spanIDs keeps the supplied ids and fills one per stage when none were recorded.
func spanIDs(recorded []string) []string {
	if len(recorded) > 0 {
		return append([]string{}, recorded...)
	}
	out := make([]string, 0, len(stageNames))
	for _, stage := range stageNames {
		out = append(out, stage+"_"+uuid.NewString())
	}
	return out
}

// Citations emits one citation per policy in policy order.
func Citations(policy *contractx.PolicyOutput) []contractx.Citation {
	out := []contractx.Citation{}
	if policy == nil {
		return out
	}
	for _, p := range policy.Policies {
		out = append(out, contractx.Citation{
			Source:         CitationSource,
			DocID:          p.ID,
			Version:        p.Version,
			RelevanceScore: CitationRelevance,
		})
	}
	return out
}

// Rationale renders the human-readable decision summary. It never fails.
func Rationale(req Request) string {
	parts := []string{
		fmt.Sprintf("Customer %s submitted request: '%s'", req.UserID, ellipsis(req.Query, queryEchoLimit)),
	}
	parts = append(parts, policyParts(req.Policy)...)
	parts = append(parts, recordParts(req.Records)...)
	parts = append(parts, actionParts(req.Action)...)
	return strings.Join(parts, separator)
}

func policyParts(policy *contractx.PolicyOutput) []string {
	if policy == nil || len(policy.Policies) == 0 {
		return []string{"No relevant policies found for this request"}
	}

	var regions, versions []string
	for _, p := range policy.Policies {
		regions = append(regions, string(p.Region))
		versions = append(versions, p.Version)
	}
	parts := []string{fmt.Sprintf(
		"Retrieved %d relevant policy documents from regions: %s (versions: %s)",
		len(policy.Policies), joinUnique(regions), joinUnique(versions),
	)}

	for _, p := range policy.Policies {
		if p.Expired() {
			parts = append(parts, fmt.Sprintf(
				"Policy drift detected: Using expired policy %s (effective until %s)",
				p.Version, p.EffectiveUntil.Format(time.DateOnly),
			))
			break
		}
	}
	return parts
}

func recordParts(records *contractx.RecordsOutput) []string {
	var requests []contractx.RefundRequest
	var tickets []contractx.Ticket
	if records != nil {
		requests, tickets = records.Requests, records.Tickets
	}

	parts := make([]string, 0, 2)
	if len(requests) > 0 {
		statuses := make([]string, 0, len(requests))
		total := 0.0
		for _, r := range requests {
			statuses = append(statuses, r.Status)
			total += r.Amount
		}
		currency := requests[0].Currency
		if currency == "" {
			currency = "USD"
		}
		parts = append(parts, fmt.Sprintf(
			"Found %d existing refund requests (statuses: %s, total value: %s %.2f)",
			len(requests), joinUnique(statuses), currency, total,
		))
	} else {
		parts = append(parts, "No existing refund requests found for this customer")
	}

	if len(tickets) > 0 {
		statuses := make([]string, 0, len(tickets))
		sentiments := make([]string, 0, len(tickets))
		for _, t := range tickets {
			statuses = append(statuses, t.Status)
			sentiments = append(sentiments, string(t.CustomerSentiment))
		}
		parts = append(parts, fmt.Sprintf(
			"Found %d support tickets (statuses: %s, sentiments: %s)",
			len(tickets), joinUnique(statuses), joinUnique(sentiments),
		))
	} else {
		parts = append(parts, "No existing support tickets found for this customer")
	}
	return parts
}

func actionParts(action *contractx.ActionOutput) []string {
	if action == nil {
		return []string{
			"No tools were executed for this request",
			"Action agent failed - no resolution available",
		}
	}

	var parts []string
	if len(action.ToolReceipts) == 0 {
		parts = append(parts, "No tools were executed for this request")
	} else {
		var succeeded, failed []string
		for _, r := range action.ToolReceipts {
			if r.Succeeded() {
				succeeded = append(succeeded, r.Tool)
			} else {
				failed = append(failed, fmt.Sprintf("%s (status: %d)", r.Tool, r.Status))
			}
		}
		if len(succeeded) > 0 {
			parts = append(parts, "Successfully executed tools: "+strings.Join(succeeded, ", "))
		}
		if len(failed) > 0 {
			parts = append(parts, "Failed tools: "+strings.Join(failed, ", "))
		}
		for _, r := range action.ToolReceipts {
			if line, ok := detailLine(r); ok {
				parts = append(parts, line)
			}
		}
	}

	parts = append(parts, fmt.Sprintf("Final resolution: %s", action.Resolution))
	if action.CostUSD > 0 {
		parts = append(parts, fmt.Sprintf("Total processing cost: $%.4f", action.CostUSD))
	}
	return parts
}

// detailLine describes what a successful tool call produced. Failed calls are already listed by status.
func detailLine(r contractx.ToolReceipt) (string, bool) {
	if !r.Succeeded() {
		return "", false
	}
	resp := r.Response
	switch r.Tool {
	case toolx.CreateRefundRequest:
		return fmt.Sprintf("  - Created refund request %v for %v %v",
			field(resp, "refund_request_id", "unknown"), field(resp, "currency", "USD"), field(resp, "amount", 0)), true
	case toolx.CreateTicket:
		return fmt.Sprintf("  - Created support ticket %v (sentiment: %v)",
			field(resp, "ticket_id", "unknown"), field(resp, "customer_sentiment", "unknown")), true
	case toolx.UpdateTicket:
		return fmt.Sprintf("  - Updated support ticket %v (new sentiment: %v)",
			field(resp, "ticket_id", "unknown"), field(resp, "customer_sentiment", "unknown")), true
	case toolx.EscalateTicket:
		return fmt.Sprintf("  - Escalated ticket %v to %v (assigned to %v)",
			field(resp, "ticket_id", "unknown"), field(resp, "escalation_level", "unknown"), field(resp, "assigned_agent", "unknown")), true
	case toolx.ExplainRefundState:
		explanation := fmt.Sprint(field(resp, "explanation", "No explanation provided"))
		return "  - Provided refund explanation: " + ellipsis(explanation, explanationLimit), true
	default:
		return "", false
	}
}

func field(resp map[string]any, key string, fallback any) any {
	if v, ok := resp[key]; ok && v != nil {
		return v
	}
	return fallback
}

func ellipsis(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// joinUnique de-duplicates in first-seen order.
func joinUnique(values []string) string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return strings.Join(out, ", ")
}
