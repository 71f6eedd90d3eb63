package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// TradeStore implements domain.TradeStore over the trade_results table.
type TradeStore struct {
	pool *pgxpool.Pool
}

var _ domain.TradeStore = (*TradeStore)(nil)

// NewTradeStore creates a TradeStore backed by pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Numerics are read back as text so decimals round-trip exactly.
const tradeSelectCols = `id, symbol, direction, spread::text, size::text,
	theoretical_profit::text, success, maker_order, taker_order,
	execution_time_ms, error, executed_at`

// Insert stores a trade result. Re-inserting the same ID is a no-op.
func (s *TradeStore) Insert(ctx context.Context, r domain.TradeResult) error {
	maker, err := marshalOrder(r.LegMakerOrder)
	if err != nil {
		return fmt.Errorf("postgres: marshal maker order: %w", err)
	}
	taker, err := marshalOrder(r.LegTakerOrder)
	if err != nil {
		return fmt.Errorf("postgres: marshal taker order: %w", err)
	}

	const query = `
		INSERT INTO trade_results (
			id, symbol, direction, spread, size, theoretical_profit,
			success, maker_order, taker_order, execution_time_ms, error, executed_at
		) VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`

	_, err = s.pool.Exec(ctx, query,
		r.ID, r.Symbol, string(r.Direction),
		r.Spread.String(), r.Size.String(), r.Profit.String(),
		r.Success, maker, taker, r.ExecutionTimeMs, r.Error, r.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", r.ID, err)
	}
	return nil
}

// GetByID returns a trade result or domain.ErrNotFound.
func (s *TradeStore) GetByID(ctx context.Context, id string) (domain.TradeResult, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+tradeSelectCols+` FROM trade_results WHERE id = $1`, id)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("postgres: get trade %s: %w", id, err)
	}
	r, err := pgx.CollectExactlyOneRow(rows, scanTrade)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TradeResult{}, fmt.Errorf("postgres: get trade %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("postgres: get trade %s: %w", id, err)
	}
	return r, nil
}

// ListRecent returns trade results newest first.
func (s *TradeStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.TradeResult, error) {
	query, args := listQuery(`SELECT `+tradeSelectCols+` FROM trade_results`, "executed_at", opts)
	return s.collect(ctx, "list trades", query, args...)
}

// ListBefore returns every trade executed strictly before the cutoff, oldest
// first. Used by the archiver.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.TradeResult, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trade_results WHERE executed_at < $1 ORDER BY executed_at`
	return s.collect(ctx, "list trades before", query, before)
}

// DeleteBefore removes trades executed before the cutoff and returns the
// number deleted.
func (s *TradeStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trade_results WHERE executed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trades before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

// SumProfit totals theoretical profit of successful trades since the cutoff.
func (s *TradeStore) SumProfit(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	var raw string
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(theoretical_profit), 0)::text FROM trade_results WHERE success AND executed_at >= $1`,
		since,
	).Scan(&raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("postgres: sum profit: %w", err)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("postgres: parse profit sum %q: %w", raw, err)
	}
	return d, nil
}

func (s *TradeStore) collect(ctx context.Context, op, query string, args ...any) ([]domain.TradeResult, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	out, err := pgx.CollectRows(rows, scanTrade)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	return out, nil
}

func scanTrade(row pgx.CollectableRow) (domain.TradeResult, error) {
	var (
		r                    domain.TradeResult
		direction            string
		spread, size, profit string
		makerJSON, takerJSON []byte
	)
	if err := row.Scan(
		&r.ID, &r.Symbol, &direction, &spread, &size, &profit,
		&r.Success, &makerJSON, &takerJSON, &r.ExecutionTimeMs, &r.Error, &r.ExecutedAt,
	); err != nil {
		return r, err
	}
	r.Direction = domain.Direction(direction)

	var err error
	if r.Spread, err = decimal.NewFromString(spread); err != nil {
		return r, fmt.Errorf("parse spread: %w", err)
	}
	if r.Size, err = decimal.NewFromString(size); err != nil {
		return r, fmt.Errorf("parse size: %w", err)
	}
	if r.Profit, err = decimal.NewFromString(profit); err != nil {
		return r, fmt.Errorf("parse profit: %w", err)
	}
	if r.LegMakerOrder, err = unmarshalOrder(makerJSON); err != nil {
		return r, fmt.Errorf("maker order: %w", err)
	}
	if r.LegTakerOrder, err = unmarshalOrder(takerJSON); err != nil {
		return r, fmt.Errorf("taker order: %w", err)
	}
	return r, nil
}

func marshalOrder(o *domain.OrderHandle) ([]byte, error) {
	if o == nil {
		return nil, nil
	}
	return json.Marshal(o)
}

func unmarshalOrder(raw []byte) (*domain.OrderHandle, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var o domain.OrderHandle
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, err
	}
	return &o, nil
}
