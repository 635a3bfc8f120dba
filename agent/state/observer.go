package state

import "context"

// Observer is notified once per finished run. Observers must not affect the run outcome.
type Observer interface {
	ObserveRun(ctx context.Context, st *PipelineState)
}

type ObserverFunc func(ctx context.Context, st *PipelineState)

func (f ObserverFunc) ObserveRun(ctx context.Context, st *PipelineState) {
	f(ctx, st)
}
