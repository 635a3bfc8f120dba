package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	statex "github.com/tanpawarit/ops-desk/agent/state"
)

// Publisher delivers a message body to a destination.
type Publisher interface {
	Publish(ctx context.Context, destination string, body []byte) (string, error)
}

type RunEvent struct {
	RunID         string    `json:"run_id"`
	UserID        string    `json:"user_id"`
	Scenario      string    `json:"scenario,omitempty"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	InteractionID string    `json:"interaction_id,omitempty"`
	Verdict       string    `json:"final_verdict,omitempty"`
	Rationale     string    `json:"rationale,omitempty"`
	CostUSD       float64   `json:"cost_token_usd"`
	FinishedAt    time.Time `json:"finished_at"`
}

// AuditPublisher emits one RunEvent per finished run. Publish failures are logged only.
type AuditPublisher struct {
	publisher   Publisher
	destination string
	timeout     time.Duration
}

var _ statex.Observer = (*AuditPublisher)(nil)

func NewAuditPublisher(publisher Publisher, destination string, timeout time.Duration) *AuditPublisher {
	return &AuditPublisher{publisher: publisher, destination: destination, timeout: timeout}
}

func NewRunEvent(st *statex.PipelineState) RunEvent {
	evt := RunEvent{
		RunID:      st.RunID,
		UserID:     st.UserID,
		Scenario:   st.Scenario,
		Status:     string(st.Status),
		Error:      st.Error,
		FinishedAt: st.UpdatedAt,
	}
	if audit := st.AuditOutput(); audit != nil {
		evt.InteractionID = audit.InteractionID
		evt.Verdict = audit.FinalVerdict
		evt.Rationale = audit.Rationale
	}
	if action := st.ActionOutput(); action != nil {
		evt.CostUSD = action.CostUSD
	}
	return evt
}

func (p *AuditPublisher) ObserveRun(ctx context.Context, st *statex.PipelineState) {
	if p == nil || p.publisher == nil || st == nil {
		return
	}

	body, err := json.Marshal(NewRunEvent(st))
	if err != nil {
		log.Error().Err(err).Str("run_id", st.RunID).Msg("marshal run event failed")
		return
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	msgID, err := p.publisher.Publish(ctx, p.destination, body)
	if err != nil {
		log.Error().Err(err).Str("run_id", st.RunID).Msg("publish run event failed")
		return
	}
	log.Debug().Str("run_id", st.RunID).Str("message_id", msgID).Msg("run event published")
}
