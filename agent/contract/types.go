package contract

import "time"

type Region string

const (
	RegionUS Region = "US"
	RegionEU Region = "EU"
)

type Sentiment string

const (
	SentimentNegative Sentiment = "negative"
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
)

type Intent string

const (
	IntentRefundRequest Intent = "refund_request"
	IntentOrderInquiry  Intent = "order_inquiry"
	IntentGeneral       Intent = "general"
)

type Resolution string

const (
	ResolutionRefundRequestCreated Resolution = "refund_request_created"
	ResolutionTicketEscalated      Resolution = "ticket_escalated"
	ResolutionTicketUpdated        Resolution = "ticket_updated"
	ResolutionTicketCreated        Resolution = "ticket_created"
	ResolutionRefundStateExplained Resolution = "refund_state_explained"
	ResolutionNoActionRequired     Resolution = "no_action_required"
	ResolutionActionFailed         Resolution = "action_failed"
)

type ClassifyTask string

const (
	ClassifySentiment ClassifyTask = "sentiment"
	ClassifyIntent    ClassifyTask = "intent"
)

type ClassifyRequest struct {
	Task    ClassifyTask `json:"task"`
	Text    string       `json:"text"`
	Context string       `json:"context,omitempty"`
	Labels  []string     `json:"labels"`
}

type RefundRequest struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	SKU             string    `json:"sku"`
	ProductName     string    `json:"product_name"`
	Amount          float64   `json:"amount"`
	Currency        string    `json:"currency"`
	Status          string    `json:"status"`
	FiledDate       time.Time `json:"filed_date"`
	PurchaseDate    time.Time `json:"purchase_date"`
	Reason          string    `json:"reason,omitempty"`
	Description     string    `json:"description,omitempty"`
	OrderID         string    `json:"order_id,omitempty"`
	RefundMethod    string    `json:"refund_method,omitempty"`
	Category        string    `json:"category,omitempty"`
	Subcategory     string    `json:"subcategory,omitempty"`
	WarrantyCovered bool      `json:"warranty_covered"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Ticket struct {
	ID                string    `json:"id"`
	TicketNumber      string    `json:"ticket_number"`
	UserID            string    `json:"user_id"`
	Title             string    `json:"title"`
	Description       string    `json:"description,omitempty"`
	Status            string    `json:"status"`
	Priority          string    `json:"priority,omitempty"`
	Assignee          string    `json:"assignee,omitempty"`
	Channel           string    `json:"channel,omitempty"`
	CustomerSentiment Sentiment `json:"customer_sentiment"`
	Category          string    `json:"category,omitempty"`
	OrderID           string    `json:"order_id,omitempty"`
	Tags              []string  `json:"tags,omitempty"`
	Escalated         bool      `json:"escalated"`
	CreatedDate       time.Time `json:"created_date"`
	UpdatedDate       time.Time `json:"updated_date"`
}

// IsActive reports whether the ticket is still being worked on.
func (t Ticket) IsActive() bool {
	switch t.Status {
	case "in_progress", "open", "escalated":
		return true
	default:
		return false
	}
}

type Address struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

type Order struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	SKU             string    `json:"sku"`
	ProductName     string    `json:"product_name"`
	Quantity        int       `json:"quantity"`
	UnitPrice       float64   `json:"unit_price"`
	Currency        string    `json:"currency"`
	OrderDate       time.Time `json:"order_date"`
	ShippingAddress Address   `json:"shipping_address"`
	Status          string    `json:"status"`
}

type Policy struct {
	ID               string     `json:"id"`
	Region           Region     `json:"region"`
	Version          string     `json:"version"`
	EffectiveFrom    time.Time  `json:"effective_from"`
	EffectiveUntil   *time.Time `json:"effective_until,omitempty"`
	Clauses          []string   `json:"clauses"`
	FullText         string     `json:"fulltext"`
	RefundWindowDays int        `json:"refund_window_days"`
	Exclusions       []string   `json:"exclusions"`
}

// Expired reports whether the policy has a closed effective window.
func (p Policy) Expired() bool {
	return p.EffectiveUntil != nil
}

type RecordsOutput struct {
	Requests []RefundRequest `json:"requests"`
	Tickets  []Ticket        `json:"tickets"`
	Orders   []Order         `json:"orders"`
}

func (r RecordsOutput) LatestOrder() *Order {
	if len(r.Orders) == 0 {
		return nil
	}
	return &r.Orders[0]
}

func (r RecordsOutput) LatestRequest() *RefundRequest {
	if len(r.Requests) == 0 {
		return nil
	}
	return &r.Requests[0]
}

func (r RecordsOutput) LatestTicket() *Ticket {
	if len(r.Tickets) == 0 {
		return nil
	}
	return &r.Tickets[0]
}

type PolicyOutput struct {
	Region   Region   `json:"region"`
	Policies []Policy `json:"policies"`
}

type ToolReceipt struct {
	Tool      string         `json:"tool"`
	Status    int            `json:"status"`
	LatencyMS float64        `json:"latency_ms"`
	Response  map[string]any `json:"response"`
}

func (r ToolReceipt) Succeeded() bool {
	return r.Status >= 200 && r.Status < 300
}

type ActionOutput struct {
	Resolution   Resolution    `json:"resolution"`
	ToolReceipts []ToolReceipt `json:"tool_receipts"`
	CostUSD      float64       `json:"cost_token_usd"`
	Sentiment    Sentiment     `json:"sentiment"`
	Intent       Intent        `json:"intent"`
	Plan         []string      `json:"plan"`
}

type Citation struct {
	Source         string  `json:"source"`
	DocID          string  `json:"doc_id"`
	Version        string  `json:"version"`
	RelevanceScore float64 `json:"relevance_score"`
}

type AuditOutput struct {
	InteractionID string        `json:"interaction_id"`
	SpanIDs       []string      `json:"span_ids"`
	Citations     []Citation    `json:"citations"`
	ToolReceipts  []ToolReceipt `json:"tool_receipts"`
	FinalVerdict  string        `json:"final_verdict"`
	Rationale     string        `json:"rationale"`
	CreatedAt     time.Time     `json:"created_at"`
}
