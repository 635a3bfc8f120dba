package orchestratornode

import (
	"context"
	"errors"

	actionx "github.com/tanpawarit/ops-desk/agent/agents/action"
	auditx "github.com/tanpawarit/ops-desk/agent/agents/audit"
	contractx "github.com/tanpawarit/ops-desk/agent/contract"
	statex "github.com/tanpawarit/ops-desk/agent/state"
)

type RecordsStage interface {
	Process(ctx context.Context, userQuery, userID string) (contractx.RecordsOutput, error)
}

type PolicyStage interface {
	Process(ctx context.Context, userQuery, userID string, order *contractx.Order) (contractx.PolicyOutput, error)
}

type ActionStage interface {
	Process(ctx context.Context, req actionx.Request) (contractx.ActionOutput, error)
}

type AuditStage interface {
	Process(ctx context.Context, req auditx.Request) (contractx.AuditOutput, error)
}

// Stages bundles the four pipeline agents in execution order.
type Stages struct {
	Records RecordsStage
	Policy  PolicyStage
	Action  ActionStage
	Audit   AuditStage
}

func (s Stages) Validate() error {
	switch {
	case s.Records == nil:
		return errors.New("records stage is required")
	case s.Policy == nil:
		return errors.New("policy stage is required")
	case s.Action == nil:
		return errors.New("action stage is required")
	case s.Audit == nil:
		return errors.New("audit stage is required")
	}
	return nil
}

func RunRecords(ctx context.Context, in *GraphState, stage RecordsStage, rt Runtime) (*GraphState, error) {
	return runStage(ctx, in, rt, statex.StageRecords,
		func(st *statex.PipelineState) *statex.StageResult[contractx.RecordsOutput] { return &st.Records },
		func(ctx context.Context, st *statex.PipelineState) (contractx.RecordsOutput, error) {
			return stage.Process(ctx, st.UserQuery, st.UserID)
		},
	)
}

// RunPolicy derives the region from the latest order returned by the records stage.
func RunPolicy(ctx context.Context, in *GraphState, stage PolicyStage, rt Runtime) (*GraphState, error) {
	return runStage(ctx, in, rt, statex.StagePolicy,
		func(st *statex.PipelineState) *statex.StageResult[contractx.PolicyOutput] { return &st.Policy },
		func(ctx context.Context, st *statex.PipelineState) (contractx.PolicyOutput, error) {
			var order *contractx.Order
			if records := st.RecordsOutput(); records != nil {
				order = records.LatestOrder()
			}
			return stage.Process(ctx, st.UserQuery, st.UserID, order)
		},
	)
}

func RunAction(ctx context.Context, in *GraphState, stage ActionStage, rt Runtime) (*GraphState, error) {
	return runStage(ctx, in, rt, statex.StageAction,
		func(st *statex.PipelineState) *statex.StageResult[contractx.ActionOutput] { return &st.Action },
		func(ctx context.Context, st *statex.PipelineState) (contractx.ActionOutput, error) {
			return stage.Process(ctx, actionx.Request{
				UserID:  st.UserID,
				Query:   st.UserQuery,
				Policy:  st.PolicyOutput(),
				Records: st.RecordsOutput(),
			})
		},
	)
}

// RunAudit sees the span ids of every stage, its own included.
func RunAudit(ctx context.Context, in *GraphState, stage AuditStage, rt Runtime) (*GraphState, error) {
	return runStage(ctx, in, rt, statex.StageAudit,
		func(st *statex.PipelineState) *statex.StageResult[contractx.AuditOutput] { return &st.Audit },
		func(ctx context.Context, st *statex.PipelineState) (contractx.AuditOutput, error) {
			return stage.Process(ctx, auditx.Request{
				UserID:  st.UserID,
				Query:   st.UserQuery,
				Policy:  st.PolicyOutput(),
				Records: st.RecordsOutput(),
				Action:  st.ActionOutput(),
				SpanIDs: st.SpanIDList(),
			})
		},
	)
}
