package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	contractx "github.com/tanpawarit/ops-desk/agent/contract"
)

const (
	RequestLimit = 3
	TicketLimit  = 5
	OrderLimit   = 5
)

// Agent gathers the customer's refund requests, tickets and orders.
type Agent struct {
	store   contractx.RecordStore
	timeout time.Duration
}

// New builds a records agent. A non-positive timeout disables per-call deadlines.
func New(store contractx.RecordStore, timeout time.Duration) (*Agent, error) {
	if store == nil {
		return nil, errors.New("record store is required")
	}
	return &Agent{store: store, timeout: timeout}, nil
}

// Process fetches each collection and truncates it. Any store failure fails the whole stage.
func (a *Agent) Process(ctx context.Context, userQuery, userID string) (contractx.RecordsOutput, error) {
	requests, err := fetch(ctx, a.timeout, func(ctx context.Context) ([]contractx.RefundRequest, error) {
		return a.store.GetRefundRequests(ctx, userID)
	})
	if err != nil {
		return contractx.RecordsOutput{}, wrapStoreErr("refund requests", err)
	}

	tickets, err := fetch(ctx, a.timeout, func(ctx context.Context) ([]contractx.Ticket, error) {
		return a.store.GetTickets(ctx, userID)
	})
	if err != nil {
		return contractx.RecordsOutput{}, wrapStoreErr("tickets", err)
	}

	orders, err := fetch(ctx, a.timeout, func(ctx context.Context) ([]contractx.Order, error) {
		return a.store.GetOrders(ctx, userID, userQuery)
	})
	if err != nil {
		return contractx.RecordsOutput{}, wrapStoreErr("orders", err)
	}

	return contractx.RecordsOutput{
		Requests: head(requests, RequestLimit),
		Tickets:  head(tickets, TicketLimit),
		Orders:   head(orders, OrderLimit),
	}, nil
}

func fetch[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) ([]T, error)) ([]T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}

func wrapStoreErr(what string, err error) error {
	if errors.Is(err, contractx.ErrStoreQuery) {
		return fmt.Errorf("fetch %s: %w", what, err)
	}
	return fmt.Errorf("%w: fetch %s: %v", contractx.ErrStoreQuery, what, err)
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		items = items[:n]
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}
