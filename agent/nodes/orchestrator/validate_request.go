package orchestratornode

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/ops-desk/agent/contract"
	statex "github.com/tanpawarit/ops-desk/agent/state"
)

var (
	ErrInvalidUser  = fmt.Errorf("%w: user id is empty", contractx.ErrValidation)
	ErrInvalidQuery = fmt.Errorf("%w: user query is empty", contractx.ErrValidation)
)

type GraphInput struct {
	RunID     string
	UserID    string
	UserQuery string
	Scenario  string
}

type GraphState struct {
	State *statex.PipelineState
}

func ValidateRequest(in GraphInput, nowFn func() time.Time, newID func() string) (*GraphState, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return nil, ErrInvalidUser
	}

	query := strings.TrimSpace(in.UserQuery)
	if query == "" {
		return nil, ErrInvalidQuery
	}

	runID := strings.TrimSpace(in.RunID)
	if runID == "" {
		runID = newID()
	}

	return &GraphState{
		State: statex.NewPipelineState(runID, query, userID, strings.TrimSpace(in.Scenario), nowFn()),
	}, nil
}
