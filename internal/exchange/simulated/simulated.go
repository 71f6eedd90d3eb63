// Package simulated is an in-memory venue whose mid price follows a seeded
// random walk. It is selected explicitly by configuration and is never a
// fallback for a misconfigured live venue.
package simulated

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

const (
	bookLevels  = 5
	priceScale  = 2
	levelStride = 0.5
)

// ErrInjected is returned for order calls failed by FailRate.
var ErrInjected = errors.New("simulated venue failure")

// Config parameterises a simulated venue.
type Config struct {
	Name       string
	StartPrice float64
	HalfSpread float64
	Volatility float64
	Depth      float64
	Seed       int64
	FailRate   float64
	Balances   domain.Balances
	// Latency delays every order call; the call honours ctx while waiting.
	Latency time.Duration
}

// Exchange is a simulated domain.Exchange.
type Exchange struct {
	mu       sync.Mutex
	cfg      Config
	rng      *rand.Rand
	mid      float64
	orders   map[string]*domain.OrderHandle
	balances domain.Balances
}

var _ domain.Exchange = (*Exchange)(nil)

// New creates a simulated venue.
func New(cfg Config) *Exchange {
	if cfg.Name == "" {
		cfg.Name = "simulated"
	}
	if cfg.StartPrice <= 0 {
		cfg.StartPrice = 100
	}
	if cfg.Depth <= 0 {
		cfg.Depth = 1
	}
	balances := make(domain.Balances, len(cfg.Balances))
	for k, v := range cfg.Balances {
		balances[k] = v
	}
	seed := uint64(cfg.Seed)
	return &Exchange{
		cfg:      cfg,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		mid:      cfg.StartPrice,
		orders:   make(map[string]*domain.OrderHandle),
		balances: balances,
	}
}

// Name implements domain.Exchange.
func (e *Exchange) Name() string { return e.cfg.Name }

// SetMid moves the mid price. Used by tests and demos to force a spread.
func (e *Exchange) SetMid(mid float64) {
	e.mu.Lock()
	e.mid = mid
	e.mu.Unlock()
}

// GetOrderBook advances the random walk one step and returns a book around
// the new mid.
func (e *Exchange) GetOrderBook(ctx context.Context, symbol string) (domain.OrderBookSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.OrderBookSnapshot{}, domain.NewAdapterError(e.cfg.Name, "get_orderbook", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.Volatility > 0 {
		e.mid += e.rng.NormFloat64() * e.cfg.Volatility
		if e.mid <= e.cfg.HalfSpread {
			e.mid = e.cfg.HalfSpread + 1
		}
	}
	return e.bookLocked(symbol), nil
}

func (e *Exchange) bookLocked(symbol string) domain.OrderBookSnapshot {
	snap := domain.OrderBookSnapshot{
		Venue:     e.cfg.Name,
		Symbol:    symbol,
		Bids:      make([]domain.PriceLevel, 0, bookLevels),
		Asks:      make([]domain.PriceLevel, 0, bookLevels),
		Timestamp: time.Now().UTC(),
	}
	size := decimal.NewFromFloat(e.cfg.Depth)
	for i := 0; i < bookLevels; i++ {
		off := e.cfg.HalfSpread + float64(i)*levelStride
		snap.Bids = append(snap.Bids, domain.PriceLevel{Price: decimal.NewFromFloat(e.mid - off).Round(priceScale), Size: size})
		snap.Asks = append(snap.Asks, domain.PriceLevel{Price: decimal.NewFromFloat(e.mid + off).Round(priceScale), Size: size})
	}
	return snap
}

// PlaceLimitOrder rests a post-only limit order. An order priced at or
// through the touch fills immediately at its limit price.
func (e *Exchange) PlaceLimitOrder(ctx context.Context, symbol string, side domain.OrderSide, price, size decimal.Decimal) (*domain.OrderHandle, error) {
	if err := e.preOrder(ctx, "place_limit", size); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	book := e.bookLocked(symbol)
	bid, _ := book.BestBid()
	ask, _ := book.BestAsk()

	o := &domain.OrderHandle{
		ID:        uuid.New().String(),
		Venue:     e.cfg.Name,
		Symbol:    symbol,
		Side:      side,
		Type:      domain.OrderTypeLimit,
		Price:     price,
		Size:      size,
		Filled:    decimal.Zero,
		Status:    domain.OrderStatusOpen,
		PostOnly:  true,
		CreatedAt: time.Now().UTC(),
	}

	marketable := (side == domain.OrderSideBuy && price.GreaterThanOrEqual(ask)) ||
		(side == domain.OrderSideSell && price.LessThanOrEqual(bid))
	if marketable {
		e.fillLocked(o, price)
	}
	e.orders[o.ID] = o

	out := *o
	return &out, nil
}

// PlaceMarketOrder fills immediately at the touch.
func (e *Exchange) PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, size decimal.Decimal) (*domain.OrderHandle, error) {
	if err := e.preOrder(ctx, "place_market", size); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	book := e.bookLocked(symbol)
	price, _ := book.BestAsk()
	if side == domain.OrderSideSell {
		price, _ = book.BestBid()
	}

	o := &domain.OrderHandle{
		ID:        uuid.New().String(),
		Venue:     e.cfg.Name,
		Symbol:    symbol,
		Side:      side,
		Type:      domain.OrderTypeMarket,
		Size:      size,
		CreatedAt: time.Now().UTC(),
	}
	e.fillLocked(o, price)
	e.orders[o.ID] = o

	out := *o
	return &out, nil
}

func (e *Exchange) preOrder(ctx context.Context, op string, size decimal.Decimal) error {
	if !size.IsPositive() {
		return domain.NewAdapterError(e.cfg.Name, op, fmt.Errorf("%w: size must be positive", domain.ErrInvalidOrder))
	}
	if e.cfg.Latency > 0 {
		select {
		case <-time.After(e.cfg.Latency):
		case <-ctx.Done():
			return domain.NewAdapterError(e.cfg.Name, op, ctx.Err())
		}
	} else if err := ctx.Err(); err != nil {
		return domain.NewAdapterError(e.cfg.Name, op, err)
	}

	if e.cfg.FailRate > 0 {
		e.mu.Lock()
		fail := e.rng.Float64() < e.cfg.FailRate
		e.mu.Unlock()
		if fail {
			return domain.NewAdapterError(e.cfg.Name, op, ErrInjected)
		}
	}
	return nil
}

// fillLocked marks o filled at price and moves balances.
func (e *Exchange) fillLocked(o *domain.OrderHandle, price decimal.Decimal) {
	o.Price = price
	o.Filled = o.Size
	o.Status = domain.OrderStatusFilled

	base, quote := splitSymbol(o.Symbol)
	notional := price.Mul(o.Size)
	if o.Side == domain.OrderSideBuy {
		e.balances[base] = e.balances[base].Add(o.Size)
		e.balances[quote] = e.balances[quote].Sub(notional)
	} else {
		e.balances[base] = e.balances[base].Sub(o.Size)
		e.balances[quote] = e.balances[quote].Add(notional)
	}
}

// CancelOrder cancels an open order. It reports false for an unknown or
// already terminal order.
func (e *Exchange) CancelOrder(_ context.Context, id, _ string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[id]
	if !ok || !o.IsOpen() {
		return false, nil
	}
	o.Status = domain.OrderStatusCancelled
	return true, nil
}

// CancelAllOrders cancels every open order. It succeeds when nothing is open.
func (e *Exchange) CancelAllOrders(context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, o := range e.orders {
		if o.IsOpen() {
			o.Status = domain.OrderStatusCancelled
		}
	}
	return true, nil
}

// GetBalance returns a copy of the simulated balances.
func (e *Exchange) GetBalance(context.Context) (domain.Balances, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(domain.Balances, len(e.balances))
	for k, v := range e.balances {
		out[k] = v
	}
	return out, nil
}

// GetOpenOrders lists open orders for symbol.
func (e *Exchange) GetOpenOrders(_ context.Context, symbol string) ([]domain.OrderHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []domain.OrderHandle
	for _, o := range e.orders {
		if o.Symbol == symbol && o.IsOpen() {
			out = append(out, *o)
		}
	}
	return out, nil
}

func splitSymbol(symbol string) (base, quote string) {
	base, quote, ok := strings.Cut(symbol, "/")
	if !ok {
		return symbol, "USD"
	}
	return base, quote
}
