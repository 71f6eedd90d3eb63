// Package executor places the two legs of a spread opportunity and reports
// the outcome.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/spreadarb/internal/domain"
	"github.com/alanyoungcy/spreadarb/internal/metrics"
	"github.com/alanyoungcy/spreadarb/internal/position"
)

const (
	// DefaultFillTimeout bounds the maker limit order call.
	DefaultFillTimeout = 30 * time.Second
	// DefaultMarketTimeout bounds the taker market order call.
	DefaultMarketTimeout = 5 * time.Second
)

// ErrLegTimeout is returned for a leg whose venue call exceeded its bound.
var ErrLegTimeout = errors.New("leg timed out")

// Config holds per-leg call bounds.
type Config struct {
	FillTimeout   time.Duration
	MarketTimeout time.Duration
}

// Coordinator submits both legs concurrently and folds the fills into the
// position tracker. No compensating order is ever placed: a partial
// execution leaves the filled leg as open exposure.
type Coordinator struct {
	maker   domain.Exchange
	taker   domain.Exchange
	tracker *position.Tracker
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewCoordinator creates a Coordinator. Zero timeouts use the defaults.
func NewCoordinator(maker, taker domain.Exchange, tracker *position.Tracker, cfg Config, logger *slog.Logger) *Coordinator {
	if cfg.FillTimeout <= 0 {
		cfg.FillTimeout = DefaultFillTimeout
	}
	if cfg.MarketTimeout <= 0 {
		cfg.MarketTimeout = DefaultMarketTimeout
	}
	return &Coordinator{
		maker:   maker,
		taker:   taker,
		tracker: tracker,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "executor")),
		now:     time.Now,
	}
}

// Execute places the maker post-only limit leg and the taker market leg at
// the same time and waits for both. The returned TradeResult is always
// populated. The error is a *domain.PartialExecutionError when exactly one
// leg succeeded, or the joined leg errors when both failed.
func (c *Coordinator) Execute(ctx context.Context, opp domain.Opportunity) (domain.TradeResult, error) {
	start := c.now()
	log := c.logger.With(
		slog.String("symbol", opp.Symbol),
		slog.String("direction", string(opp.Direction)),
		slog.String("spread", opp.Spread.String()),
	)

	makerSide := opp.Direction.MakerSide()
	takerSide := opp.Direction.TakerSide()

	var (
		makerOrder, takerOrder *domain.OrderHandle
		makerErr, takerErr     error
	)

	// Leg failures are collected per leg; the group never cancels the
	// sibling leg.
	var g errgroup.Group
	g.Go(func() error {
		legStart := time.Now()
		makerOrder, makerErr = runLeg(ctx, c.cfg.FillTimeout, func(lctx context.Context) (*domain.OrderHandle, error) {
			return c.maker.PlaceLimitOrder(lctx, opp.Symbol, makerSide, opp.LegMakerPrice, opp.Size)
		})
		metrics.ObserveLeg("maker", time.Since(legStart))
		return nil
	})
	g.Go(func() error {
		legStart := time.Now()
		takerOrder, takerErr = runLeg(ctx, c.cfg.MarketTimeout, func(lctx context.Context) (*domain.OrderHandle, error) {
			return c.taker.PlaceMarketOrder(lctx, opp.Symbol, takerSide, opp.Size)
		})
		metrics.ObserveLeg("taker", time.Since(legStart))
		return nil
	})
	_ = g.Wait()

	result := domain.TradeResult{
		ID:              uuid.New().String(),
		Symbol:          opp.Symbol,
		Direction:       opp.Direction,
		Spread:          opp.Spread,
		Size:            opp.Size,
		Profit:          opp.TheoreticalProfit(),
		Success:         makerOrder != nil && takerOrder != nil,
		LegMakerOrder:   makerOrder,
		LegTakerOrder:   takerOrder,
		ExecutedAt:      c.now(),
		ExecutionTimeMs: c.now().Sub(start).Milliseconds(),
	}

	if makerOrder != nil {
		c.tracker.RecordFill(opp.Symbol, fillDelta(makerOrder, makerSide, opp.Size), fillPrice(makerOrder, opp.LegMakerPrice))
	}
	if takerOrder != nil {
		c.tracker.RecordFill(opp.Symbol, fillDelta(takerOrder, takerSide, opp.Size), fillPrice(takerOrder, opp.LegTakerPrice))
	}

	var err error
	switch {
	case result.Success:
		log.Info("spread executed",
			slog.String("trade_id", result.ID),
			slog.String("maker_order", makerOrder.ID),
			slog.String("taker_order", takerOrder.ID),
			slog.String("theoretical_profit", result.Profit.String()),
			slog.Int64("execution_ms", result.ExecutionTimeMs),
		)
	case makerOrder != nil:
		err = &domain.PartialExecutionError{FilledLeg: "maker", FailedLeg: "taker", Err: takerErr}
	case takerOrder != nil:
		err = &domain.PartialExecutionError{FilledLeg: "taker", FailedLeg: "maker", Err: makerErr}
	default:
		err = errors.Join(
			fmt.Errorf("maker leg: %w", makerErr),
			fmt.Errorf("taker leg: %w", takerErr),
		)
	}

	if err != nil {
		result.Error = err.Error()
		if result.Partial() {
			log.Error("partial execution, position left unhedged",
				slog.String("trade_id", result.ID),
				slog.String("dangling_leg", result.DanglingLeg()),
				slog.String("error", err.Error()),
			)
		} else {
			log.Warn("execution failed", slog.String("trade_id", result.ID), slog.String("error", err.Error()))
		}
	}

	c.tracker.RecordTrade(result)
	return result, err
}

// CancelAll cancels open orders on both venues. Both venues are always
// attempted.
func (c *Coordinator) CancelAll(ctx context.Context) error {
	var errs []error
	for _, ex := range []domain.Exchange{c.maker, c.taker} {
		if _, err := ex.CancelAllOrders(ctx); err != nil {
			c.logger.Error("cancel all failed", slog.String("venue", ex.Name()), slog.String("error", err.Error()))
			errs = append(errs, domain.NewAdapterError(ex.Name(), "cancel_all", err))
			continue
		}
		c.logger.Info("cancelled all orders", slog.String("venue", ex.Name()))
	}
	return errors.Join(errs...)
}

// runLeg calls place under its own deadline. A venue call that ignores the
// deadline is abandoned and reported as ErrLegTimeout.
func runLeg(ctx context.Context, timeout time.Duration, place func(context.Context) (*domain.OrderHandle, error)) (*domain.OrderHandle, error) {
	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		order *domain.OrderHandle
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		o, err := place(lctx)
		done <- outcome{o, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if errors.Is(out.err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w after %s: %w", ErrLegTimeout, timeout, out.err)
			}
			return nil, out.err
		}
		if out.order == nil {
			return nil, errors.New("venue returned no order")
		}
		return out.order, nil
	case <-lctx.Done():
		return nil, fmt.Errorf("%w after %s", ErrLegTimeout, timeout)
	}
}

// fillDelta treats a returned order as filled for its full size. Venues that
// report a partial fill contribute only the filled amount.
func fillDelta(o *domain.OrderHandle, side domain.OrderSide, size decimal.Decimal) decimal.Decimal {
	qty := size
	if o.Status == domain.OrderStatusPartial && o.Filled.IsPositive() {
		qty = o.Filled
	}
	return side.Sign().Mul(qty)
}

func fillPrice(o *domain.OrderHandle, fallback decimal.Decimal) decimal.Decimal {
	if o.Price.IsPositive() {
		return o.Price
	}
	return fallback
}
