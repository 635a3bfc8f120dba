package orchestratornode

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/ops-desk/agent/contract"
	statex "github.com/tanpawarit/ops-desk/agent/state"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/tanpawarit/ops-desk/agent/nodes/orchestrator"

// Runtime carries the clock and tracer shared by every stage node.
type Runtime struct {
	Tracer trace.Tracer
	Now    func() time.Time
}

func (r Runtime) tracer() trace.Tracer {
	if r.Tracer == nil {
		return otel.Tracer(tracerName)
	}
	return r.Tracer
}

func (r Runtime) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// runStage times, traces and guards one stage. Stage errors and panics land in
// the stage slot and the run state; they never abort the graph.
func runStage[T any](
	ctx context.Context,
	in *GraphState,
	rt Runtime,
	stage statex.Stage,
	slot func(*statex.PipelineState) *statex.StageResult[T],
	fn func(context.Context, *statex.PipelineState) (T, error),
) (*GraphState, error) {
	if in == nil || in.State == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	st := in.State

	st.MarkStarted(stage, rt.now())
	ctx, span := rt.tracer().Start(ctx, "stage."+string(stage), trace.WithAttributes(
		attribute.String("run_id", st.RunID),
		attribute.String("stage", string(stage)),
	))
	st.SetSpanID(stage, spanID(span, stage))

	out, err := invoke(ctx, st, stage, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		st.FailStage(stage, err)
		log.Error().Err(err).Str("run_id", st.RunID).Str("stage", string(stage)).Msg("stage failed")
	} else {
		slot(st).Succeed(out)
		log.Info().Str("run_id", st.RunID).Str("stage", string(stage)).Msg("stage succeeded")
	}
	span.End()
	st.MarkEnded(stage, rt.now())

	return in, nil
}

func invoke[T any](
	ctx context.Context,
	st *statex.PipelineState,
	stage statex.Stage,
	fn func(context.Context, *statex.PipelineState) (T, error),
) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s panicked: %v", contractx.ErrStageFailed, stage, r)
		}
	}()
	return fn(ctx, st)
}

func spanID(span trace.Span, stage statex.Stage) string {
	if sc := span.SpanContext(); sc.HasSpanID() {
		return sc.SpanID().String()
	}
	return fmt.Sprintf("%s_%s", stage, uuid.NewString())
}
