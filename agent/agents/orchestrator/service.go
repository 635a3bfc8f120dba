package orchestrator

import (
	"context"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	nodex "github.com/tanpawarit/ops-desk/agent/nodes/orchestrator"
	statex "github.com/tanpawarit/ops-desk/agent/state"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrInvalidUser  = nodex.ErrInvalidUser
	ErrInvalidQuery = nodex.ErrInvalidQuery
)

const tracerName = "github.com/tanpawarit/ops-desk/agent/agents/orchestrator"

type Request struct {
	RunID     string
	UserID    string
	UserQuery string
	Scenario  string
}

// Orchestrator runs Records, Policy, Action and Audit in order over one shared state.
type Orchestrator struct {
	stages    nodex.Stages
	runStore  statex.Store
	observers []statex.Observer
	tracer    trace.Tracer

	graphRunner compose.Runnable[nodex.GraphInput, *statex.PipelineState]

	now   func() time.Time
	newID func() string
}

type Option func(*Orchestrator)

func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithRunStore persists every finished run.
func WithRunStore(store statex.Store) Option {
	return func(o *Orchestrator) {
		o.runStore = store
	}
}

func WithObserver(obs statex.Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(o *Orchestrator) {
		if newID != nil {
			o.newID = newID
		}
	}
}

func New(stages nodex.Stages, opts ...Option) (*Orchestrator, error) {
	if err := stages.Validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		stages: stages,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	graphRunner, err := o.compileRunGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// Run executes the pipeline. It returns an error only for invalid input or a
// graph failure; stage failures are reported through the returned state.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*statex.PipelineState, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.run")
	defer span.End()

	return o.graphRunner.Invoke(ctx, nodex.GraphInput{
		RunID:     req.RunID,
		UserID:    req.UserID,
		UserQuery: req.UserQuery,
		Scenario:  req.Scenario,
	})
}
