package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/ops-desk/agent/contract"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type PostgresConfig struct {
	DSN         string        `envconfig:"DSN" split_words:"true"`
	DialTimeout time.Duration `envconfig:"DIAL_TIMEOUT" split_words:"true" default:"5s"`
}

func (c PostgresConfig) Enabled() bool {
	return strings.TrimSpace(c.DSN) != ""
}

// OpenPostgres opens a bun handle over pgdriver and pings it.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*bun.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	opts := []pgdriver.Option{pgdriver.WithDSN(dsn)}
	if cfg.DialTimeout > 0 {
		opts = append(opts, pgdriver.WithDialTimeout(cfg.DialTimeout))
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(opts...))
	db := bun.NewDB(sqldb, pgdialect.New())

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping postgres: %v", contractx.ErrStoreQuery, err)
	}
	return db, nil
}

type orderRow struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID              string            `bun:"id,pk"`
	UserID          string            `bun:"user_id,notnull"`
	SKU             string            `bun:"sku"`
	ProductName     string            `bun:"product_name"`
	Quantity        int               `bun:"quantity"`
	UnitPrice       float64           `bun:"unit_price"`
	Currency        string            `bun:"currency"`
	OrderDate       time.Time         `bun:"order_date"`
	ShippingAddress contractx.Address `bun:"shipping_address,type:jsonb"`
	Status          string            `bun:"status"`
	Rank            float64           `bun:"rank,scanonly"`
}

type policyRow struct {
	bun.BaseModel `bun:"table:policies,alias:p"`

	ID               string     `bun:"id,pk"`
	Region           string     `bun:"region,notnull"`
	Version          string     `bun:"version"`
	EffectiveFrom    time.Time  `bun:"effective_from"`
	EffectiveUntil   *time.Time `bun:"effective_until,nullzero"`
	Clauses          []string   `bun:"clauses,type:jsonb"`
	FullText         string     `bun:"fulltext"`
	RefundWindowDays int        `bun:"refund_window_days"`
	Exclusions       []string   `bun:"exclusions,type:jsonb"`
}

type refundRequestRow struct {
	bun.BaseModel `bun:"table:refund_requests,alias:r"`

	ID              string    `bun:"id,pk"`
	UserID          string    `bun:"user_id,notnull"`
	SKU             string    `bun:"sku"`
	ProductName     string    `bun:"product_name"`
	Amount          float64   `bun:"amount"`
	Currency        string    `bun:"currency"`
	Status          string    `bun:"status"`
	FiledDate       time.Time `bun:"filed_date"`
	PurchaseDate    time.Time `bun:"purchase_date"`
	Reason          string    `bun:"reason"`
	Description     string    `bun:"description"`
	OrderID         string    `bun:"order_id"`
	RefundMethod    string    `bun:"refund_method"`
	Category        string    `bun:"category"`
	Subcategory     string    `bun:"subcategory"`
	WarrantyCovered bool      `bun:"warranty_covered"`
	CreatedAt       time.Time `bun:"created_at"`
	UpdatedAt       time.Time `bun:"updated_at"`
}

type ticketRow struct {
	bun.BaseModel `bun:"table:tickets,alias:t"`

	ID                string    `bun:"id,pk"`
	TicketNumber      string    `bun:"ticket_number"`
	UserID            string    `bun:"user_id,notnull"`
	Title             string    `bun:"title"`
	Description       string    `bun:"description"`
	Status            string    `bun:"status"`
	Priority          string    `bun:"priority"`
	Assignee          string    `bun:"assignee"`
	Channel           string    `bun:"channel"`
	CustomerSentiment string    `bun:"customer_sentiment"`
	Category          string    `bun:"category"`
	OrderID           string    `bun:"order_id"`
	Tags              []string  `bun:"tags,type:jsonb"`
	Escalated         bool      `bun:"escalated"`
	CreatedDate       time.Time `bun:"created_date"`
	UpdatedDate       time.Time `bun:"updated_date"`
}

type auditRow struct {
	bun.BaseModel `bun:"table:audits,alias:a"`

	InteractionID string                  `bun:"interaction_id,pk"`
	UserID        string                  `bun:"user_id,notnull"`
	FinalVerdict  string                  `bun:"final_verdict"`
	Rationale     string                  `bun:"rationale"`
	SpanIDs       []string                `bun:"span_ids,type:jsonb"`
	Citations     []contractx.Citation    `bun:"citations,type:jsonb"`
	ToolReceipts  []contractx.ToolReceipt `bun:"tool_receipts,type:jsonb"`
	CreatedAt     time.Time               `bun:"created_at"`
}

// PostgresStore reads customer records through bun.
type PostgresStore struct {
	db bun.IDB
}

var (
	_ contractx.RecordStore   = (*PostgresStore)(nil)
	_ contractx.AuditRecorder = (*PostgresStore)(nil)
)

func NewPostgresStore(db bun.IDB) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("bun db is required")
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) GetRefundRequests(ctx context.Context, userID string) ([]contractx.RefundRequest, error) {
	var rows []refundRequestRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("r.user_id = ?", userID).
		OrderExpr("r.filed_date DESC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: refund requests: %v", contractx.ErrStoreQuery, err)
	}

	out := make([]contractx.RefundRequest, 0, len(rows))
	for _, r := range rows {
		out = append(out, contractx.RefundRequest{
			ID:              r.ID,
			UserID:          r.UserID,
			SKU:             r.SKU,
			ProductName:     r.ProductName,
			Amount:          r.Amount,
			Currency:        r.Currency,
			Status:          r.Status,
			FiledDate:       r.FiledDate,
			PurchaseDate:    r.PurchaseDate,
			Reason:          r.Reason,
			Description:     r.Description,
			OrderID:         r.OrderID,
			RefundMethod:    r.RefundMethod,
			Category:        r.Category,
			Subcategory:     r.Subcategory,
			WarrantyCovered: r.WarrantyCovered,
			CreatedAt:       r.CreatedAt,
			UpdatedAt:       r.UpdatedAt,
		})
	}
	return out, nil
}

func (s *PostgresStore) GetTickets(ctx context.Context, userID string) ([]contractx.Ticket, error) {
	var rows []ticketRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("t.user_id = ?", userID).
		OrderExpr("t.created_date DESC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: tickets: %v", contractx.ErrStoreQuery, err)
	}

	out := make([]contractx.Ticket, 0, len(rows))
	for _, r := range rows {
		out = append(out, contractx.Ticket{
			ID:                r.ID,
			TicketNumber:      r.TicketNumber,
			UserID:            r.UserID,
			Title:             r.Title,
			Description:       r.Description,
			Status:            r.Status,
			Priority:          r.Priority,
			Assignee:          r.Assignee,
			Channel:           r.Channel,
			CustomerSentiment: contractx.Sentiment(r.CustomerSentiment),
			Category:          r.Category,
			OrderID:           r.OrderID,
			Tags:              r.Tags,
			Escalated:         r.Escalated,
			CreatedDate:       r.CreatedDate,
			UpdatedDate:       r.UpdatedDate,
		})
	}
	return out, nil
}

// GetOrders ranks the user's orders with Postgres full-text search when queryText is set.
func (s *PostgresStore) GetOrders(ctx context.Context, userID string, queryText string) ([]contractx.Order, error) {
	var rows []orderRow
	q := s.db.NewSelect().
		Model(&rows).
		Where("o.user_id = ?", userID)

	if text := strings.TrimSpace(queryText); text != "" {
		q = q.ColumnExpr("o.*").
			ColumnExpr("ts_rank(to_tsvector('english', o.product_name || ' ' || o.sku || ' ' || o.status), plainto_tsquery('english', ?)) AS rank", text).
			OrderExpr("rank DESC")
	}
	q = q.OrderExpr("o.order_date DESC")

	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: orders: %v", contractx.ErrStoreQuery, err)
	}

	out := make([]contractx.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, contractx.Order{
			ID:              r.ID,
			UserID:          r.UserID,
			SKU:             r.SKU,
			ProductName:     r.ProductName,
			Quantity:        r.Quantity,
			UnitPrice:       r.UnitPrice,
			Currency:        r.Currency,
			OrderDate:       r.OrderDate,
			ShippingAddress: r.ShippingAddress,
			Status:          r.Status,
		})
	}
	return out, nil
}

func (s *PostgresStore) GetPoliciesByRegion(ctx context.Context, _ string, region contractx.Region) ([]contractx.Policy, error) {
	var rows []policyRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("p.region = ?", string(region)).
		OrderExpr("p.effective_from DESC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: policies: %v", contractx.ErrStoreQuery, err)
	}

	out := make([]contractx.Policy, 0, len(rows))
	for _, r := range rows {
		out = append(out, contractx.Policy{
			ID:               r.ID,
			Region:           contractx.Region(r.Region),
			Version:          r.Version,
			EffectiveFrom:    r.EffectiveFrom,
			EffectiveUntil:   r.EffectiveUntil,
			Clauses:          r.Clauses,
			FullText:         r.FullText,
			RefundWindowDays: r.RefundWindowDays,
			Exclusions:       r.Exclusions,
		})
	}
	return out, nil
}

func (s *PostgresStore) RecordAudit(ctx context.Context, userID string, out contractx.AuditOutput) error {
	row := &auditRow{
		InteractionID: out.InteractionID,
		UserID:        userID,
		FinalVerdict:  out.FinalVerdict,
		Rationale:     out.Rationale,
		SpanIDs:       out.SpanIDs,
		Citations:     out.Citations,
		ToolReceipts:  out.ToolReceipts,
		CreatedAt:     out.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("%w: insert audit %s: %v", contractx.ErrStoreQuery, out.InteractionID, err)
	}
	return nil
}

// CreateSchema creates every table the store reads or writes.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	models := []any{
		(*orderRow)(nil),
		(*policyRow)(nil),
		(*refundRequestRow)(nil),
		(*ticketRow)(nil),
		(*auditRow)(nil),
	}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("%w: create table: %v", contractx.ErrStoreQuery, err)
		}
	}
	return nil
}

// Seed inserts fixtures, leaving rows that already exist untouched.
func Seed(ctx context.Context, db bun.IDB, data Fixtures) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if rows := toOrderRows(data.Orders); len(rows) > 0 {
			if _, err := tx.NewInsert().Model(&rows).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
				return fmt.Errorf("%w: seed orders: %v", contractx.ErrStoreQuery, err)
			}
		}
		if rows := toPolicyRows(data.Policies); len(rows) > 0 {
			if _, err := tx.NewInsert().Model(&rows).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
				return fmt.Errorf("%w: seed policies: %v", contractx.ErrStoreQuery, err)
			}
		}
		if rows := toRefundRequestRows(data.Requests); len(rows) > 0 {
			if _, err := tx.NewInsert().Model(&rows).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
				return fmt.Errorf("%w: seed refund requests: %v", contractx.ErrStoreQuery, err)
			}
		}
		if rows := toTicketRows(data.Tickets); len(rows) > 0 {
			if _, err := tx.NewInsert().Model(&rows).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
				return fmt.Errorf("%w: seed tickets: %v", contractx.ErrStoreQuery, err)
			}
		}
		return nil
	})
}

func toOrderRows(in []contractx.Order) []orderRow {
	out := make([]orderRow, 0, len(in))
	for _, o := range in {
		out = append(out, orderRow{
			ID:              o.ID,
			UserID:          o.UserID,
			SKU:             o.SKU,
			ProductName:     o.ProductName,
			Quantity:        o.Quantity,
			UnitPrice:       o.UnitPrice,
			Currency:        o.Currency,
			OrderDate:       o.OrderDate,
			ShippingAddress: o.ShippingAddress,
			Status:          o.Status,
		})
	}
	return out
}

func toPolicyRows(in []contractx.Policy) []policyRow {
	out := make([]policyRow, 0, len(in))
	for _, p := range in {
		out = append(out, policyRow{
			ID:               p.ID,
			Region:           string(p.Region),
			Version:          p.Version,
			EffectiveFrom:    p.EffectiveFrom,
			EffectiveUntil:   p.EffectiveUntil,
			Clauses:          p.Clauses,
			FullText:         p.FullText,
			RefundWindowDays: p.RefundWindowDays,
			Exclusions:       p.Exclusions,
		})
	}
	return out
}

func toRefundRequestRows(in []contractx.RefundRequest) []refundRequestRow {
	out := make([]refundRequestRow, 0, len(in))
	for _, r := range in {
		out = append(out, refundRequestRow{
			ID:              r.ID,
			UserID:          r.UserID,
			SKU:             r.SKU,
			ProductName:     r.ProductName,
			Amount:          r.Amount,
			Currency:        r.Currency,
			Status:          r.Status,
			FiledDate:       r.FiledDate,
			PurchaseDate:    r.PurchaseDate,
			Reason:          r.Reason,
			Description:     r.Description,
			OrderID:         r.OrderID,
			RefundMethod:    r.RefundMethod,
			Category:        r.Category,
			Subcategory:     r.Subcategory,
			WarrantyCovered: r.WarrantyCovered,
			CreatedAt:       r.CreatedAt,
			UpdatedAt:       r.UpdatedAt,
		})
	}
	return out
}

func toTicketRows(in []contractx.Ticket) []ticketRow {
	out := make([]ticketRow, 0, len(in))
	for _, t := range in {
		out = append(out, ticketRow{
			ID:                t.ID,
			TicketNumber:      t.TicketNumber,
			UserID:            t.UserID,
			Title:             t.Title,
			Description:       t.Description,
			Status:            t.Status,
			Priority:          t.Priority,
			Assignee:          t.Assignee,
			Channel:           t.Channel,
			CustomerSentiment: string(t.CustomerSentiment),
			Category:          t.Category,
			OrderID:           t.OrderID,
			Tags:              t.Tags,
			Escalated:         t.Escalated,
			CreatedDate:       t.CreatedDate,
			UpdatedDate:       t.UpdatedDate,
		})
	}
	return out
}
