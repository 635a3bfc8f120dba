package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/ops-desk/agent/contract"
	togglex "github.com/tanpawarit/ops-desk/agent/toggle"
	toolx "github.com/tanpawarit/ops-desk/agent/tool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/tanpawarit/ops-desk/agent/agents/action"

var (
	sentimentLabels = []string{
		string(contractx.SentimentNegative),
		string(contractx.SentimentPositive),
		string(contractx.SentimentNeutral),
	}
	intentLabels = []string{
		string(contractx.IntentRefundRequest),
		string(contractx.IntentOrderInquiry),
		string(contractx.IntentGeneral),
	}
)

// Request carries the upstream stage outputs. Nil outputs mean the stage failed.
type Request struct {
	UserID  string
	Query   string
	Policy  *contractx.PolicyOutput
	Records *contractx.RecordsOutput
}

// Engine classifies a request, plans tools, runs them and resolves the outcome.
type Engine struct {
	classifier      contractx.Classifier
	exec            toolx.Executor
	toggles         togglex.Reader
	tracer          trace.Tracer
	now             func() time.Time
	classifyTimeout time.Duration
}

type Option func(*Engine)

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithClassifyTimeout bounds each classifier call.
func WithClassifyTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.classifyTimeout = d
	}
}

func New(classifier contractx.Classifier, exec toolx.Executor, toggles togglex.Reader, opts ...Option) (*Engine, error) {
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if exec == nil {
		return nil, errors.New("tool executor is required")
	}
	if toggles == nil {
		return nil, errors.New("toggle reader is required")
	}

	e := &Engine{
		classifier: classifier,
		exec:       exec,
		toggles:    toggles,
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

func (e *Engine) Process(ctx context.Context, req Request) (contractx.ActionOutput, error) {
	records := contractx.RecordsOutput{}
	if req.Records != nil {
		records = *req.Records
	} else {
		log.Warn().Str("user_id", req.UserID).Msg("records output missing, planning with empty records")
	}
	policy := contractx.PolicyOutput{}
	if req.Policy != nil {
		policy = *req.Policy
	} else {
		log.Warn().Str("user_id", req.UserID).Msg("policy output missing, planning without policies")
	}

	sentiment := e.classifySentiment(ctx, req.Query, records.LatestTicket())
	intent := e.classifyIntent(ctx, req.Query, policy, records)
	hasTicket := toolx.FindExistingTicket(records.Tickets, req.UserID) != nil
	plan := PlanTools(sentiment, intent, hasTicket)

	log.Info().
		Str("user_id", req.UserID).
		Str("sentiment", string(sentiment)).
		Str("intent", string(intent)).
		Strs("plan", plan).
		Msg("action plan derived")

	in := toolx.Input{
		Query:     req.Query,
		UserID:    req.UserID,
		Policy:    policy,
		Records:   records,
		Sentiment: sentiment,
		Toggles:   e.toggles.Snapshot(ctx),
	}

	receipts := make([]contractx.ToolReceipt, 0, len(plan))
	for _, name := range plan {
		receipts = append(receipts, e.execute(ctx, name, in))
	}

	return contractx.ActionOutput{
		Resolution:   Resolve(receipts),
		ToolReceipts: receipts,
		CostUSD:      toolx.TotalCost(plan),
		Sentiment:    sentiment,
		Intent:       intent,
		Plan:         plan,
	}, nil
}

// PlanTools derives the ordered tool plan. The order decides receipt order and resolution precedence.
func PlanTools(sentiment contractx.Sentiment, intent contractx.Intent, hasTicket bool) []string {
	plan := []string{}
	if sentiment == contractx.SentimentNegative {
		plan = append(plan, toolx.EscalateTicket)
	}
	switch intent {
	case contractx.IntentRefundRequest:
		plan = append(plan, toolx.CreateRefundRequest, toolx.ExplainRefundState)
	case contractx.IntentOrderInquiry:
		plan = append(plan, toolx.ExplainOrderState)
	}
	if hasTicket {
		plan = append(plan, toolx.UpdateTicket)
	} else {
		plan = append(plan, toolx.CreateTicket)
	}
	return plan
}

var resolutionPriority = []struct {
	tool       string
	resolution contractx.Resolution
}{
	{toolx.CreateRefundRequest, contractx.ResolutionRefundRequestCreated},
	{toolx.EscalateTicket, contractx.ResolutionTicketEscalated},
	{toolx.UpdateTicket, contractx.ResolutionTicketUpdated},
	{toolx.CreateTicket, contractx.ResolutionTicketCreated},
	{toolx.ExplainRefundState, contractx.ResolutionRefundStateExplained},
}

// Resolve picks the resolution of the highest-priority successful tool.
func Resolve(receipts []contractx.ToolReceipt) contractx.Resolution {
	if len(receipts) == 0 {
		return contractx.ResolutionNoActionRequired
	}

	succeeded := map[string]bool{}
	for _, r := range receipts {
		if r.Succeeded() {
			succeeded[r.Tool] = true
		}
	}
	for _, p := range resolutionPriority {
		if succeeded[p.tool] {
			return p.resolution
		}
	}
	return contractx.ResolutionActionFailed
}

func (e *Engine) classifySentiment(ctx context.Context, query string, latest *contractx.Ticket) contractx.Sentiment {
	history := "No previous sentiment data"
	if latest != nil && latest.CustomerSentiment != "" {
		history = fmt.Sprintf("Previous sentiment: %s", latest.CustomerSentiment)
	}

	label, ok := e.classify(ctx, contractx.ClassifyRequest{
		Task:    contractx.ClassifySentiment,
		Text:    query,
		Context: history,
		Labels:  sentimentLabels,
	})
	if !ok {
		return contractx.SentimentNeutral
	}
	return contractx.Sentiment(label)
}

func (e *Engine) classifyIntent(ctx context.Context, query string, policy contractx.PolicyOutput, records contractx.RecordsOutput) contractx.Intent {
	bundle, err := json.Marshal(map[string]any{"policy": policy, "records": records})
	if err != nil {
		log.Warn().Err(err).Msg("marshal intent context failed")
		bundle = []byte("{}")
	}

	label, ok := e.classify(ctx, contractx.ClassifyRequest{
		Task:    contractx.ClassifyIntent,
		Text:    query,
		Context: string(bundle),
		Labels:  intentLabels,
	})
	if !ok {
		return contractx.IntentGeneral
	}
	return contractx.Intent(label)
}

// classify reports false on classifier error or an out-of-set label so the caller falls back to its default.
func (e *Engine) classify(ctx context.Context, req contractx.ClassifyRequest) (string, bool) {
	ctx, span := e.tracer.Start(ctx, "classify."+string(req.Task))
	defer span.End()

	if e.classifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.classifyTimeout)
		defer cancel()
	}

	label, err := e.classifier.Classify(ctx, req)
	if err != nil {
		span.RecordError(err)
		log.Warn().Err(err).Str("task", string(req.Task)).Msg("classification failed, using default label")
		return "", false
	}
	if !slices.Contains(req.Labels, label) {
		log.Warn().Str("task", string(req.Task)).Str("label", label).Msg("classifier returned unknown label, using default")
		return "", false
	}
	span.SetAttributes(attribute.String("label", label))
	return label, true
}

func (e *Engine) execute(ctx context.Context, name string, in toolx.Input) (receipt contractx.ToolReceipt) {
	ctx, span := e.tracer.Start(ctx, "tool."+name, trace.WithAttributes(attribute.String("tool", name)))
	started := e.now()

	defer func() {
		if r := recover(); r != nil {
			receipt = failedReceipt(name, fmt.Errorf("%w: tool %s panicked: %v", contractx.ErrToolFailed, name, r), e.since(started))
		}
		span.SetAttributes(attribute.Int("status", receipt.Status))
		if !receipt.Succeeded() {
			span.SetStatus(codes.Error, fmt.Sprint(receipt.Response["error"]))
			log.Warn().Str("tool", name).Int("status", receipt.Status).Interface("error", receipt.Response["error"]).Msg("tool failed")
		}
		span.End()
	}()

	resp, err := e.exec(ctx, name, in)
	if err != nil {
		return failedReceipt(name, err, e.since(started))
	}

	status := 200
	if v, ok := resp["status"].(int); ok {
		status = v
	}
	return contractx.ToolReceipt{
		Tool:      name,
		Status:    status,
		LatencyMS: e.since(started),
		Response:  resp,
	}
}

func (e *Engine) since(started time.Time) float64 {
	return float64(e.now().Sub(started).Microseconds()) / 1000
}

func failedReceipt(name string, err error, latencyMS float64) contractx.ToolReceipt {
	return contractx.ToolReceipt{
		Tool:      name,
		Status:    500,
		LatencyMS: latencyMS,
		Response:  map[string]any{"error": err.Error()},
	}
}
