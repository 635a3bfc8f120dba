package store

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	contractx "github.com/tanpawarit/ops-desk/agent/contract"
)

// AuditRecord is one persisted audit entry.
type AuditRecord struct {
	UserID string
	Audit  contractx.AuditOutput
}

// MemoryStore serves fixtures from memory and keeps recorded audits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   Fixtures
	audits []AuditRecord
}

var (
	_ contractx.RecordStore   = (*MemoryStore)(nil)
	_ contractx.AuditRecorder = (*MemoryStore)(nil)
)

func NewMemoryStore(data Fixtures) *MemoryStore {
	return &MemoryStore{data: data}
}

func (s *MemoryStore) GetRefundRequests(ctx context.Context, userID string) ([]contractx.RefundRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []contractx.RefundRequest{}
	for _, r := range s.data.Requests {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FiledDate.After(out[j].FiledDate) })
	return out, nil
}

func (s *MemoryStore) GetTickets(ctx context.Context, userID string) ([]contractx.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []contractx.Ticket{}
	for _, t := range s.data.Tickets {
		if t.UserID == userID {
			t.Tags = slices.Clone(t.Tags)
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedDate.After(out[j].CreatedDate) })
	return out, nil
}

func (s *MemoryStore) GetOrders(ctx context.Context, userID string, queryText string) ([]contractx.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []contractx.Order{}
	for _, o := range s.data.Orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	rankOrders(out, strings.TrimSpace(queryText))
	return out, nil
}

func (s *MemoryStore) GetPoliciesByRegion(ctx context.Context, _ string, region contractx.Region) ([]contractx.Policy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []contractx.Policy{}
	for _, p := range s.data.Policies {
		if p.Region == region {
			p.Clauses = slices.Clone(p.Clauses)
			p.Exclusions = slices.Clone(p.Exclusions)
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) RecordAudit(ctx context.Context, userID string, out contractx.AuditOutput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, AuditRecord{UserID: userID, Audit: out})
	return nil
}

// Audits returns a copy of every recorded audit in insertion order.
func (s *MemoryStore) Audits() []AuditRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.audits)
}
