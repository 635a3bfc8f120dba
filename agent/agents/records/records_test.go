package records

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	contractx "github.com/tanpawarit/ops-desk/agent/contract"
)

type fakeStore struct {
	requests   []contractx.RefundRequest
	tickets    []contractx.Ticket
	orders     []contractx.Order
	ticketsErr error
	gotQuery   string
	deadlines  int
}

func (f *fakeStore) note(ctx context.Context) {
	if _, ok := ctx.Deadline(); ok {
		f.deadlines++
	}
}

func (f *fakeStore) GetRefundRequests(ctx context.Context, _ string) ([]contractx.RefundRequest, error) {
	f.note(ctx)
	return f.requests, nil
}

func (f *fakeStore) GetTickets(ctx context.Context, _ string) ([]contractx.Ticket, error) {
	f.note(ctx)
	return f.tickets, f.ticketsErr
}

func (f *fakeStore) GetOrders(ctx context.Context, _ string, query string) ([]contractx.Order, error) {
	f.note(ctx)
	f.gotQuery = query
	return f.orders, nil
}

func (f *fakeStore) GetPoliciesByRegion(context.Context, string, contractx.Region) ([]contractx.Policy, error) {
	return nil, nil
}

func TestProcessTruncatesToLimits(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	for i := 0; i < 7; i++ {
		store.requests = append(store.requests, contractx.RefundRequest{ID: fmt.Sprintf("refund_%d", i)})
		store.tickets = append(store.tickets, contractx.Ticket{ID: fmt.Sprintf("ticket_%d", i)})
		store.orders = append(store.orders, contractx.Order{ID: fmt.Sprintf("order_%d", i)})
	}

	agent, err := New(store, time.Second)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	out, err := agent.Process(context.Background(), "refund my tablet", "user_002")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if len(out.Requests) != RequestLimit || len(out.Tickets) != TicketLimit || len(out.Orders) != OrderLimit {
		t.Fatalf("lengths = %d/%d/%d", len(out.Requests), len(out.Tickets), len(out.Orders))
	}
	if out.LatestRequest().ID != "refund_0" || out.LatestOrder().ID != "order_0" {
		t.Fatal("truncation must keep store order")
	}
	if store.gotQuery != "refund my tablet" {
		t.Fatalf("order query = %q", store.gotQuery)
	}
	if store.deadlines != 3 {
		t.Fatalf("expected a deadline on each call, got %d", store.deadlines)
	}
}

func TestProcessEmptyCollections(t *testing.T) {
	t.Parallel()

	agent, _ := New(&fakeStore{}, 0)
	out, err := agent.Process(context.Background(), "hi", "user_001")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out.Requests == nil || out.Tickets == nil || out.Orders == nil {
		t.Fatal("empty collections must be non-nil slices")
	}
	if out.LatestOrder() != nil {
		t.Fatal("expected no latest order")
	}
}

func TestProcessStoreFailureFailsStage(t *testing.T) {
	t.Parallel()

	agent, _ := New(&fakeStore{ticketsErr: errors.New("connection refused")}, 0)
	_, err := agent.Process(context.Background(), "hi", "user_001")
	if !errors.Is(err, contractx.ErrStoreQuery) {
		t.Fatalf("expected ErrStoreQuery, got %v", err)
	}
}

func TestNewRequiresStore(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, 0); err == nil {
		t.Fatal("expected error for nil store")
	}
}
