package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	nodex "github.com/tanpawarit/ops-desk/agent/nodes/orchestrator"
	statex "github.com/tanpawarit/ops-desk/agent/state"
)

func (o *Orchestrator) compileRunGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, *statex.PipelineState], error) {
	graph := compose.NewGraph[nodex.GraphInput, *statex.PipelineState]()
	rt := nodex.Runtime{Tracer: o.tracer, Now: o.now}

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, o.now, o.newID)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("records",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RunRecords(ctx, in, o.stages.Records, rt)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node records: %w", err)
	}

	if err := graph.AddLambdaNode("policy",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RunPolicy(ctx, in, o.stages.Policy, rt)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node policy: %w", err)
	}

	if err := graph.AddLambdaNode("action",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RunAction(ctx, in, o.stages.Action, rt)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node action: %w", err)
	}

	if err := graph.AddLambdaNode("audit",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RunAudit(ctx, in, o.stages.Audit, rt)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node audit: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_run",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*statex.PipelineState, error) {
			return nodex.FinalizeRun(ctx, in, o.runStore, o.observers)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_run: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "records"},
		{"records", "policy"},
		{"policy", "action"},
		{"action", "audit"},
		{"audit", "finalize_run"},
		{"finalize_run", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.run_pipeline"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
