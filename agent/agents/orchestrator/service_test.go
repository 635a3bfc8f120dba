package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand/v2"
	"reflect"
	"strings"
	"testing"
	"time"

	actionx "github.com/tanpawarit/ops-desk/agent/agents/action"
	auditx "github.com/tanpawarit/ops-desk/agent/agents/audit"
	policyx "github.com/tanpawarit/ops-desk/agent/agents/policy"
	recordsx "github.com/tanpawarit/ops-desk/agent/agents/records"
	contractx "github.com/tanpawarit/ops-desk/agent/contract"
	llmx "github.com/tanpawarit/ops-desk/agent/llm"
	nodex "github.com/tanpawarit/ops-desk/agent/nodes/orchestrator"
	"github.com/tanpawarit/ops-desk/agent/scenario"
	statex "github.com/tanpawarit/ops-desk/agent/state"
	storex "github.com/tanpawarit/ops-desk/agent/store"
	togglex "github.com/tanpawarit/ops-desk/agent/toggle"
	toolx "github.com/tanpawarit/ops-desk/agent/tool"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type pipeline struct {
	orch  *Orchestrator
	store *storex.MemoryStore
}

func newStages(t *testing.T, store *storex.MemoryStore, toggles *togglex.Store) nodex.Stages {
	t.Helper()

	records, err := recordsx.New(store, time.Second)
	if err != nil {
		t.Fatalf("records.New() error = %v", err)
	}
	policy, err := policyx.New(store, toggles, time.Second)
	if err != nil {
		t.Fatalf("policy.New() error = %v", err)
	}
	catalog := toolx.NewCatalog(toolx.WithRand(rand.New(rand.NewPCG(1, 2))), toolx.WithoutLatency())
	action, err := actionx.New(llmx.KeywordClassifier{}, catalog.Executor(), toggles)
	if err != nil {
		t.Fatalf("action.New() error = %v", err)
	}
	return nodex.Stages{
		Records: records,
		Policy:  policy,
		Action:  action,
		Audit:   auditx.New(auditx.WithRecorder(store)),
	}
}

func newPipeline(t *testing.T, toggles togglex.Toggles, opts ...Option) pipeline {
	t.Helper()

	store := storex.NewMemoryStore(storex.DemoFixtures())
	clock := &stepClock{t: time.Date(2025, time.October, 1, 9, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)

	orch, err := New(newStages(t, store, togglex.NewStore(toggles)), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return pipeline{orch: orch, store: store}
}

func runScenario(t *testing.T, p pipeline, name string) *statex.PipelineState {
	t.Helper()

	sc, err := scenario.ByName(name)
	if err != nil {
		t.Fatalf("scenario.ByName() error = %v", err)
	}
	st, err := p.orch.Run(context.Background(), Request{UserID: sc.UserID, UserQuery: sc.UserQuery, Scenario: sc.Name})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return st
}

func TestRunBluetoothRefundScenario(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, togglex.Toggles{})
	st := runScenario(t, p, "refund_bluetooth_earbuds")

	if !st.Completed() || st.Error != "" {
		t.Fatalf("status = %s error = %q", st.Status, st.Error)
	}
	action := st.ActionOutput()
	if action == nil {
		t.Fatal("missing action output")
	}
	wantPlan := []string{toolx.CreateRefundRequest, toolx.ExplainRefundState, toolx.CreateTicket}
	if !reflect.DeepEqual(action.Plan, wantPlan) {
		t.Fatalf("plan = %v, want %v", action.Plan, wantPlan)
	}
	if action.Resolution != contractx.ResolutionRefundRequestCreated {
		t.Fatalf("resolution = %s", action.Resolution)
	}
	if action.Sentiment != contractx.SentimentNeutral || action.Intent != contractx.IntentRefundRequest {
		t.Fatalf("classification = %s / %s", action.Sentiment, action.Intent)
	}

	audit := st.AuditOutput()
	if audit == nil || audit.FinalVerdict != string(contractx.ResolutionRefundRequestCreated) {
		t.Fatalf("audit = %+v", audit)
	}
	if len(audit.SpanIDs) != 4 {
		t.Fatalf("span ids = %v", audit.SpanIDs)
	}
	if len(audit.Citations) != 1 || audit.Citations[0].Version != "v24.1" {
		t.Fatalf("citations = %+v", audit.Citations)
	}
	if !strings.Contains(audit.Rationale, "Total processing cost: $0.0055") {
		t.Fatalf("rationale = %s", audit.Rationale)
	}

	if got := st.HandoffLatencies(); len(got) != 3 {
		t.Fatalf("handoffs = %+v", got)
	}
	for _, stage := range statex.Stages() {
		if _, ok := st.StageDuration(stage); !ok {
			t.Fatalf("stage %s has no duration", stage)
		}
	}
	if audits := p.store.Audits(); len(audits) != 1 || audits[0].UserID != "user_001" {
		t.Fatalf("recorded audits = %+v", audits)
	}
}

func TestRunAngryCustomerScenario(t *testing.T) {
	t.Parallel()

	st := runScenario(t, newPipeline(t, togglex.Toggles{}), "refund_dryer")
	action := st.ActionOutput()
	if action == nil {
		t.Fatal("missing action output")
	}
	if action.Sentiment != contractx.SentimentNegative {
		t.Fatalf("sentiment = %s", action.Sentiment)
	}
	if action.Plan[0] != toolx.EscalateTicket || action.Plan[len(action.Plan)-1] != toolx.UpdateTicket {
		t.Fatalf("plan = %v", action.Plan)
	}
	if action.Resolution != contractx.ResolutionRefundRequestCreated {
		t.Fatalf("resolution = %s", action.Resolution)
	}
}

func TestRunAngryCustomerRefundFailureEscalates(t *testing.T) {
	t.Parallel()

	st := runScenario(t, newPipeline(t, togglex.Toggles{RefundAPIErrorRate: 1}), "refund_dryer")
	action := st.ActionOutput()
	if action.Resolution != contractx.ResolutionTicketEscalated {
		t.Fatalf("resolution = %s", action.Resolution)
	}
	if !strings.Contains(st.AuditOutput().Rationale, "Failed tools: create_refund_request (status: 500)") {
		t.Fatalf("rationale = %s", st.AuditOutput().Rationale)
	}
}

func TestRunDriftScenario(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, togglex.Toggles{PolicyForceOldVersion: true})
	st, err := p.orch.Run(context.Background(), Request{UserID: "user_002", UserQuery: "Please refund my smart dryer"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	policy := st.PolicyOutput()
	if policy == nil || policy.Region != contractx.RegionEU {
		t.Fatalf("policy = %+v", policy)
	}
	if len(policy.Policies) != 1 || policy.Policies[0].Version != "v23.2" {
		t.Fatalf("drift must select only the expired policy, got %+v", policy.Policies)
	}
	want := "Policy drift detected: Using expired policy v23.2 (effective until 2024-07-31)"
	if !strings.Contains(st.AuditOutput().Rationale, want) {
		t.Fatalf("rationale missing drift warning: %s", st.AuditOutput().Rationale)
	}
}

func TestRunSuppressesDuplicateRefund(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, togglex.Toggles{})
	st, err := p.orch.Run(context.Background(), Request{UserID: "user_002", UserQuery: "Please refund my smart dryer"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	action := st.ActionOutput()
	if action.Intent != contractx.IntentOrderInquiry {
		t.Fatalf("intent = %s, want order_inquiry for a product with a filed request", action.Intent)
	}
	for _, tool := range action.Plan {
		if tool == toolx.CreateRefundRequest {
			t.Fatalf("plan must not file a second refund: %v", action.Plan)
		}
	}
}

func TestRunOrderInquiryScenario(t *testing.T) {
	t.Parallel()

	st := runScenario(t, newPipeline(t, togglex.Toggles{}), "enquire_status_of_order")
	action := st.ActionOutput()
	want := []string{toolx.ExplainOrderState, toolx.CreateTicket}
	if !reflect.DeepEqual(action.Plan, want) || action.Resolution != contractx.ResolutionTicketCreated {
		t.Fatalf("plan = %v resolution = %s", action.Plan, action.Resolution)
	}
}

func TestRunRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, togglex.Toggles{})
	_, err := p.orch.Run(context.Background(), Request{UserID: " ", UserQuery: "hi"})
	if !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}
	_, err = p.orch.Run(context.Background(), Request{UserID: "user_001", UserQuery: ""})
	if !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

type failingRecords struct{}

func (failingRecords) Process(context.Context, string, string) (contractx.RecordsOutput, error) {
	return contractx.RecordsOutput{}, errors.New("records backend unavailable")
}

type panickingAudit struct{}

func (panickingAudit) Process(context.Context, auditx.Request) (contractx.AuditOutput, error) {
	panic("audit exploded")
}

func TestRunContinuesAfterRecordsFailure(t *testing.T) {
	t.Parallel()

	store := storex.NewMemoryStore(storex.DemoFixtures())
	stages := newStages(t, store, togglex.NewStore(togglex.Toggles{}))
	stages.Records = failingRecords{}

	orch, err := New(stages)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	st, err := orch.Run(context.Background(), Request{UserID: "user_001", UserQuery: "I need a refund"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if st.Records.Status != statex.ResultFailed {
		t.Fatalf("records status = %s", st.Records.Status)
	}
	if !st.Policy.OK() || !st.Action.OK() || !st.Audit.OK() {
		t.Fatal("downstream stages must still run")
	}
	if st.PolicyOutput().Region != contractx.RegionUS {
		t.Fatalf("region without records = %s", st.PolicyOutput().Region)
	}
	if !st.Completed() {
		t.Fatalf("run with a successful audit must complete, got %s", st.Status)
	}
	if st.Error != "Records agent failed: records backend unavailable" {
		t.Fatalf("error = %q", st.Error)
	}
}

func TestRunAuditFailureFailsRun(t *testing.T) {
	t.Parallel()

	store := storex.NewMemoryStore(storex.DemoFixtures())
	stages := newStages(t, store, togglex.NewStore(togglex.Toggles{}))
	stages.Audit = panickingAudit{}

	orch, _ := New(stages)
	st, err := orch.Run(context.Background(), Request{UserID: "user_001", UserQuery: "I need a refund"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if st.Status != statex.RunError {
		t.Fatalf("status = %s", st.Status)
	}
	if !strings.HasPrefix(st.Error, "Audit agent failed:") || !strings.Contains(st.Error, "audit exploded") {
		t.Fatalf("error = %q", st.Error)
	}
}

type fakeRunStore struct {
	saved map[string]*statex.PipelineState
}

func (f *fakeRunStore) Load(_ context.Context, runID string) (*statex.PipelineState, error) {
	st, ok := f.saved[runID]
	if !ok {
		return nil, statex.ErrStateNotFound
	}
	return st, nil
}

func (f *fakeRunStore) Save(_ context.Context, st *statex.PipelineState) error {
	f.saved[st.RunID] = st
	return nil
}

func (f *fakeRunStore) Delete(_ context.Context, runID string) error {
	delete(f.saved, runID)
	return nil
}

type fakePublisher struct {
	destination string
	bodies      [][]byte
	err         error
}

func (f *fakePublisher) Publish(_ context.Context, destination string, body []byte) (string, error) {
	f.destination = destination
	f.bodies = append(f.bodies, body)
	return "msg_1", f.err
}

func TestRunPersistsAndPublishes(t *testing.T) {
	t.Parallel()

	runs := &fakeRunStore{saved: map[string]*statex.PipelineState{}}
	pub := &fakePublisher{}
	p := newPipeline(t, togglex.Toggles{},
		WithRunStore(runs),
		WithObserver(NewAuditPublisher(pub, "https://hooks.example.com/audit", time.Second)),
		WithIDGenerator(func() string { return "run_fixed" }),
	)

	st := runScenario(t, p, "refund_bluetooth_earbuds")
	if st.RunID != "run_fixed" || st.Scenario != "refund_bluetooth_earbuds" {
		t.Fatalf("run = %s / %s", st.RunID, st.Scenario)
	}
	if _, err := runs.Load(context.Background(), "run_fixed"); err != nil {
		t.Fatalf("run state not persisted: %v", err)
	}

	if len(pub.bodies) != 1 || pub.destination != "https://hooks.example.com/audit" {
		t.Fatalf("published %d events to %q", len(pub.bodies), pub.destination)
	}
	var evt RunEvent
	if err := json.Unmarshal(pub.bodies[0], &evt); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if evt.RunID != "run_fixed" || evt.Status != string(statex.RunCompleted) || evt.Verdict != "refund_request_created" {
		t.Fatalf("event = %+v", evt)
	}
	if math.Abs(evt.CostUSD-0.0055) > 1e-9 {
		t.Fatalf("event cost = %v", evt.CostUSD)
	}
}

func TestPublishFailureDoesNotAffectRun(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{err: errors.New("qstash down")}
	p := newPipeline(t, togglex.Toggles{}, WithObserver(NewAuditPublisher(pub, "dest", 0)))
	st := runScenario(t, p, "refund_bluetooth_earbuds")
	if !st.Completed() {
		t.Fatalf("status = %s", st.Status)
	}
}

func TestNewRequiresStages(t *testing.T) {
	t.Parallel()

	if _, err := New(nodex.Stages{}); err == nil {
		t.Fatal("expected error for missing stages")
	}
}
