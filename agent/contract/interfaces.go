package contract

import "context"

// RecordStore returns caller-ordered sequences; the first element is the latest or most relevant.
type RecordStore interface {
	GetRefundRequests(ctx context.Context, userID string) ([]RefundRequest, error)
	GetTickets(ctx context.Context, userID string) ([]Ticket, error)
	GetOrders(ctx context.Context, userID string, queryText string) ([]Order, error)
	GetPoliciesByRegion(ctx context.Context, queryText string, region Region) ([]Policy, error)
}

// Classifier maps free text onto one label of req.Labels.
type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (string, error)
}

type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type AuditRecorder interface {
	RecordAudit(ctx context.Context, userID string, out AuditOutput) error
}
