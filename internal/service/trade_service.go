// Package service holds the application services that sit between the
// engine or API and the storage, bus and metrics layers.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadarb/internal/domain"
	"github.com/alanyoungcy/spreadarb/internal/metrics"
)

// TradeService records executed trades and serves trade history. Every
// dependency is optional so the engine runs without infrastructure.
type TradeService struct {
	trades domain.TradeStore
	bus    domain.SignalBus
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewTradeService creates a TradeService. Any of trades, bus and audit may be
// nil.
func NewTradeService(trades domain.TradeStore, bus domain.SignalBus, audit domain.AuditStore, logger *slog.Logger) *TradeService {
	return &TradeService{
		trades: trades,
		bus:    bus,
		audit:  audit,
		logger: logger.With(slog.String("component", "trade_service")),
	}
}

type tradeEvent struct {
	Event  string             `json:"event"`
	Trade  domain.TradeResult `json:"trade"`
	Leg    string             `json:"dangling_leg,omitempty"`
	SentAt string             `json:"sent_at"`
}

// Record persists the result, publishes it on ch:trade and stream:trades,
// audits partial executions and updates metrics. Persistence failures are
// returned; bus and audit failures are logged.
func (s *TradeService) Record(ctx context.Context, r domain.TradeResult) error {
	metrics.RecordTrade(r)

	var errs []error
	if s.trades != nil {
		if err := s.trades.Insert(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("trade_service: insert: %w", err))
		}
	}

	if s.bus != nil {
		evt := tradeEvent{Event: "trade_" + metrics.Outcome(r), Trade: r, Leg: r.DanglingLeg(), SentAt: time.Now().UTC().Format(time.RFC3339)}
		payload, err := json.Marshal(evt)
		if err == nil {
			if err := s.bus.Publish(ctx, domain.ChannelTrade, payload); err != nil {
				s.logger.WarnContext(ctx, "publish trade failed", slog.String("error", err.Error()))
			}
			if err := s.bus.StreamAppend(ctx, domain.StreamTrades, payload); err != nil {
				s.logger.WarnContext(ctx, "stream append failed", slog.String("error", err.Error()))
			}
		}
	}

	if s.audit != nil && r.Partial() {
		if err := s.audit.Log(ctx, "trade.partial", map[string]any{
			"trade_id":     r.ID,
			"direction":    string(r.Direction),
			"dangling_leg": r.DanglingLeg(),
			"size":         r.Size.String(),
			"error":        r.Error,
		}); err != nil {
			s.logger.WarnContext(ctx, "audit partial trade failed", slog.String("error", err.Error()))
		}
	}

	return errors.Join(errs...)
}

// ErrNoHistory is returned by the query methods when neither a trade store
// nor a signal bus is wired.
var ErrNoHistory = errors.New("trade_service: trade history not configured")

// streamPage is the XREAD batch size used when replaying stream:trades.
const streamPage = 500

// Recent lists recent trade results newest first. Without a trade store the
// redis trade stream is replayed instead.
func (s *TradeService) Recent(ctx context.Context, opts domain.ListOpts) ([]domain.TradeResult, error) {
	if s.trades != nil {
		out, err := s.trades.ListRecent(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("trade_service: list recent: %w", err)
		}
		return out, nil
	}

	all, err := s.streamTrades(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.TradeResult
	skipped := 0
	for _, r := range all {
		if opts.Since != nil && r.ExecutedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && r.ExecutedAt.After(*opts.Until) {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		out = append(out, r)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

// Get returns one trade result.
func (s *TradeService) Get(ctx context.Context, id string) (domain.TradeResult, error) {
	if s.trades != nil {
		r, err := s.trades.GetByID(ctx, id)
		if err != nil {
			return domain.TradeResult{}, fmt.Errorf("trade_service: get %s: %w", id, err)
		}
		return r, nil
	}

	all, err := s.streamTrades(ctx)
	if err != nil {
		return domain.TradeResult{}, err
	}
	for _, r := range all {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.TradeResult{}, fmt.Errorf("trade_service: get %s: %w", id, domain.ErrNotFound)
}

// ProfitSince sums theoretical profit of successful trades since t.
func (s *TradeService) ProfitSince(ctx context.Context, t time.Time) (decimal.Decimal, error) {
	if s.trades != nil {
		p, err := s.trades.SumProfit(ctx, t)
		if err != nil {
			return decimal.Zero, fmt.Errorf("trade_service: sum profit: %w", err)
		}
		return p, nil
	}

	all, err := s.streamTrades(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, r := range all {
		if r.Success && !r.ExecutedAt.Before(t) {
			total = total.Add(r.Profit)
		}
	}
	return total, nil
}

// streamTrades replays stream:trades and returns the trades newest first.
// The stream is capped by the bus, so a full replay stays bounded.
func (s *TradeService) streamTrades(ctx context.Context) ([]domain.TradeResult, error) {
	if s.bus == nil {
		return nil, ErrNoHistory
	}

	var out []domain.TradeResult
	lastID := "0"
	for {
		msgs, err := s.bus.StreamRead(ctx, domain.StreamTrades, lastID, streamPage)
		if err != nil {
			return nil, fmt.Errorf("trade_service: read stream: %w", err)
		}
		for _, m := range msgs {
			var evt tradeEvent
			if err := json.Unmarshal(m.Payload, &evt); err != nil {
				s.logger.WarnContext(ctx, "skipping malformed stream entry",
					slog.String("id", m.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			out = append(out, evt.Trade)
		}
		if len(msgs) < streamPage {
			break
		}
		lastID = msgs[len(msgs)-1].ID
	}

	slices.Reverse(out)
	return out, nil
}
