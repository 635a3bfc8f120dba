package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/ops-desk/agent/contract"
)

type Stage string

const (
	StageRecords Stage = "records"
	StagePolicy  Stage = "policy"
	StageAction  Stage = "action"
	StageAudit   Stage = "audit"
)

// Stages lists the pipeline stages in execution order.
func Stages() []Stage {
	return []Stage{StageRecords, StagePolicy, StageAction, StageAudit}
}

func (s Stage) Title() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunError     RunStatus = "error"
)

type ResultStatus string

const (
	ResultPending   ResultStatus = "pending"
	ResultSucceeded ResultStatus = "succeeded"
	ResultFailed    ResultStatus = "failed"
)

// StageResult is the outcome slot of one stage. Output is nil unless Status is succeeded.
type StageResult[T any] struct {
	Status ResultStatus `json:"status"`
	Output *T           `json:"output,omitempty"`
	Error  string       `json:"error,omitempty"`
}

func (r *StageResult[T]) Succeed(out T) {
	r.Status = ResultSucceeded
	r.Output = &out
	r.Error = ""
}

func (r *StageResult[T]) Fail(err error) {
	r.Status = ResultFailed
	r.Output = nil
	if err != nil {
		r.Error = err.Error()
	}
}

func (r StageResult[T]) OK() bool {
	return r.Status == ResultSucceeded && r.Output != nil
}

// PipelineState is owned by exactly one in-flight run.
type PipelineState struct {
	RunID     string `json:"run_id"`
	UserQuery string `json:"user_query"`
	UserID    string `json:"user_id"`
	Scenario  string `json:"scenario,omitempty"`

	Records StageResult[contractx.RecordsOutput] `json:"records"`
	Policy  StageResult[contractx.PolicyOutput]  `json:"policy"`
	Action  StageResult[contractx.ActionOutput]  `json:"action"`
	Audit   StageResult[contractx.AuditOutput]   `json:"audit"`

	Status RunStatus `json:"status"`
	Error  string    `json:"error,omitempty"`

	StageStarted map[Stage]time.Time `json:"stage_started"`
	StageEnded   map[Stage]time.Time `json:"stage_ended"`
	SpanIDs      map[Stage]string    `json:"span_ids"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewPipelineState(runID, query, userID, scenario string, now time.Time) *PipelineState {
	now = now.UTC()
	return &PipelineState{
		RunID:        runID,
		UserQuery:    query,
		UserID:       userID,
		Scenario:     scenario,
		Records:      StageResult[contractx.RecordsOutput]{Status: ResultPending},
		Policy:       StageResult[contractx.PolicyOutput]{Status: ResultPending},
		Action:       StageResult[contractx.ActionOutput]{Status: ResultPending},
		Audit:        StageResult[contractx.AuditOutput]{Status: ResultPending},
		Status:       RunRunning,
		StageStarted: map[Stage]time.Time{},
		StageEnded:   map[Stage]time.Time{},
		SpanIDs:      map[Stage]string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *PipelineState) ensureMaps() {
	if s.StageStarted == nil {
		s.StageStarted = map[Stage]time.Time{}
	}
	if s.StageEnded == nil {
		s.StageEnded = map[Stage]time.Time{}
	}
	if s.SpanIDs == nil {
		s.SpanIDs = map[Stage]string{}
	}
}

func (s *PipelineState) MarkStarted(stage Stage, at time.Time) {
	s.ensureMaps()
	s.StageStarted[stage] = at.UTC()
	s.UpdatedAt = at.UTC()
}

func (s *PipelineState) MarkEnded(stage Stage, at time.Time) {
	s.ensureMaps()
	s.StageEnded[stage] = at.UTC()
	s.UpdatedAt = at.UTC()
}

func (s *PipelineState) SetSpanID(stage Stage, spanID string) {
	s.ensureMaps()
	if strings.TrimSpace(spanID) != "" {
		s.SpanIDs[stage] = spanID
	}
}

// SpanIDList returns recorded span ids in stage order.
func (s *PipelineState) SpanIDList() []string {
	out := make([]string, 0, len(s.SpanIDs))
	for _, stage := range Stages() {
		if id, ok := s.SpanIDs[stage]; ok {
			out = append(out, id)
		}
	}
	return out
}

// FailStage records err in the stage slot and flips the run into the error state.
func (s *PipelineState) FailStage(stage Stage, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	switch stage {
	case StageRecords:
		s.Records.Fail(err)
	case StagePolicy:
		s.Policy.Fail(err)
	case StageAction:
		s.Action.Fail(err)
	case StageAudit:
		s.Audit.Fail(err)
	}
	s.Status = RunError
	s.Error = fmt.Sprintf("%s agent failed: %v", stage.Title(), err)
}

// Complete marks the run completed. The last recorded stage error is kept.
func (s *PipelineState) Complete() {
	s.Status = RunCompleted
}

func (s *PipelineState) Completed() bool {
	return s.Status == RunCompleted
}

func (s *PipelineState) RecordsOutput() *contractx.RecordsOutput {
	if !s.Records.OK() {
		return nil
	}
	return s.Records.Output
}

func (s *PipelineState) PolicyOutput() *contractx.PolicyOutput {
	if !s.Policy.OK() {
		return nil
	}
	return s.Policy.Output
}

func (s *PipelineState) ActionOutput() *contractx.ActionOutput {
	if !s.Action.OK() {
		return nil
	}
	return s.Action.Output
}

func (s *PipelineState) AuditOutput() *contractx.AuditOutput {
	if !s.Audit.OK() {
		return nil
	}
	return s.Audit.Output
}

func (s *PipelineState) Validate() error {
	if strings.TrimSpace(s.RunID) == "" {
		return ErrInvalidRun
	}
	if strings.TrimSpace(s.UserID) == "" {
		return fmt.Errorf("%w: user id is empty", contractx.ErrValidation)
	}
	switch s.Status {
	case RunRunning, RunCompleted, RunError:
	default:
		return fmt.Errorf("%w: invalid run status=%q", contractx.ErrValidation, s.Status)
	}
	return nil
}

type Handoff struct {
	From    Stage         `json:"from"`
	To      Stage         `json:"to"`
	Latency time.Duration `json:"latency"`
}

// HandoffLatencies measures the gap between the end of each stage and the start of the next.
// Pairs with a missing timestamp are skipped.
func (s *PipelineState) HandoffLatencies() []Handoff {
	stages := Stages()
	out := make([]Handoff, 0, len(stages)-1)
	for i := 0; i+1 < len(stages); i++ {
		from, to := stages[i], stages[i+1]
		ended, okEnd := s.StageEnded[from]
		started, okStart := s.StageStarted[to]
		if !okEnd || !okStart {
			continue
		}
		out = append(out, Handoff{From: from, To: to, Latency: started.Sub(ended)})
	}
	return out
}

// StageDuration returns how long a stage ran, or false if it never finished.
func (s *PipelineState) StageDuration(stage Stage) (time.Duration, bool) {
	started, okStart := s.StageStarted[stage]
	ended, okEnd := s.StageEnded[stage]
	if !okStart || !okEnd {
		return 0, false
	}
	return ended.Sub(started), true
}
