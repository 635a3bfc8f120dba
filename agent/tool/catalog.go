package tool

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	contractx "github.com/tanpawarit/ops-desk/agent/contract"
	togglex "github.com/tanpawarit/ops-desk/agent/toggle"
)

const (
	CreateTicket        = "create_ticket"
	UpdateTicket        = "update_ticket"
	EscalateTicket      = "escalate_ticket"
	CreateRefundRequest = "create_refund_request"
	ExplainRefundState  = "explain_refund_state"
	ExplainOrderState   = "explain_order_state"
)

// Input is the full context every tool receives.
type Input struct {
	Query     string
	UserID    string
	Policy    contractx.PolicyOutput
	Records   contractx.RecordsOutput
	Sentiment contractx.Sentiment
	Toggles   togglex.Toggles
}

// Executor runs one named tool and returns its response payload.
// The payload's "status" key carries the HTTP-style status code.
type Executor func(ctx context.Context, tool string, in Input) (map[string]any, error)

type latencyRange struct {
	min time.Duration
	max time.Duration
}

var simulatedLatency = map[string]latencyRange{
	CreateRefundRequest: {50 * time.Millisecond, 150 * time.Millisecond},
	CreateTicket:        {50 * time.Millisecond, 200 * time.Millisecond},
	UpdateTicket:        {50 * time.Millisecond, 150 * time.Millisecond},
	EscalateTicket:      {100 * time.Millisecond, 300 * time.Millisecond},
	ExplainRefundState:  {50 * time.Millisecond, 100 * time.Millisecond},
	ExplainOrderState:   {50 * time.Millisecond, 100 * time.Millisecond},
}

// Catalog holds the simulated downstream tools.
type Catalog struct {
	mu    sync.Mutex
	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

type Option func(*Catalog)

func WithRand(r *rand.Rand) Option {
	return func(c *Catalog) {
		if r != nil {
			c.rng = r
		}
	}
}

func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Catalog) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// WithoutLatency disables the simulated downstream latency.
func WithoutLatency() Option {
	return WithSleeper(func(context.Context, time.Duration) error { return nil })
}

func WithClock(now func() time.Time) Option {
	return func(c *Catalog) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCatalog(opts ...Option) *Catalog {
	c := &Catalog{
		rng:   rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
		sleep: sleepContext,
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Names lists every tool the catalog can execute.
func Names() []string {
	return []string{CreateRefundRequest, CreateTicket, UpdateTicket, EscalateTicket, ExplainRefundState, ExplainOrderState}
}

func (c *Catalog) Executor() Executor {
	fallback := DefaultExecutor()
	return func(ctx context.Context, tool string, in Input) (map[string]any, error) {
		switch tool {
		case CreateRefundRequest:
			return c.createRefundRequest(ctx, in)
		case CreateTicket:
			return c.createTicket(ctx, in)
		case UpdateTicket:
			return c.updateTicket(ctx, in)
		case EscalateTicket:
			return c.escalateTicket(ctx, in)
		case ExplainRefundState:
			return c.explainRefundState(ctx, in)
		case ExplainOrderState:
			return c.explainOrderState(ctx, in)
		default:
			return fallback(ctx, tool, in)
		}
	}
}

func DefaultExecutor() Executor {
	return func(ctx context.Context, tool string, _ Input) (map[string]any, error) {
		return nil, fmt.Errorf("%w: tool=%s is unavailable", contractx.ErrToolFailed, tool)
	}
}

func (c *Catalog) simulate(ctx context.Context, tool string) error {
	r, ok := simulatedLatency[tool]
	if !ok {
		return nil
	}
	d := r.min
	if span := r.max - r.min; span > 0 {
		d += time.Duration(c.int64N(int64(span)))
	}
	return c.sleep(ctx, d)
}

func (c *Catalog) intRange(lo, hi int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lo + c.rng.IntN(hi-lo+1)
}

func (c *Catalog) int64N(n int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Int64N(n)
}

func (c *Catalog) float() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Float64()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
