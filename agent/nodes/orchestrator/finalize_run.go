package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/ops-desk/agent/contract"
	statex "github.com/tanpawarit/ops-desk/agent/state"
)

// FinalizeRun settles the terminal status, persists the run and notifies observers.
// Store and observer failures are logged and never change the outcome.
func FinalizeRun(
	ctx context.Context,
	in *GraphState,
	store statex.Store,
	observers []statex.Observer,
) (*statex.PipelineState, error) {
	if in == nil || in.State == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	st := in.State

	if st.Audit.OK() {
		st.Complete()
	} else {
		st.Status = statex.RunError
		if st.Error == "" {
			st.Error = "Audit agent failed: no audit output"
		}
	}

	if store != nil {
		if err := store.Save(ctx, st); err != nil {
			log.Error().Err(err).Str("run_id", st.RunID).Msg("save run state failed")
		}
	}

	for _, obs := range observers {
		notify(ctx, obs, st)
	}

	evt := log.Info()
	if !st.Completed() {
		evt = log.Warn().Str("error", st.Error)
	}
	evt.Str("run_id", st.RunID).
		Str("user_id", st.UserID).
		Str("status", string(st.Status)).
		Msg("run finished")

	return st, nil
}

func notify(ctx context.Context, obs statex.Observer, st *statex.PipelineState) {
	if obs == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("run_id", st.RunID).Interface("panic", r).Msg("run observer panicked")
		}
	}()
	obs.ObserveRun(ctx, st)
}
