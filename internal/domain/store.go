package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TradeStore persists trade results.
type TradeStore interface {
	Insert(ctx context.Context, result TradeResult) error
	GetByID(ctx context.Context, id string) (TradeResult, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]TradeResult, error)
	ListBefore(ctx context.Context, before time.Time) ([]TradeResult, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
	SumProfit(ctx context.Context, since time.Time) (decimal.Decimal, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore is an append-only log of operator and supervisor events.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
