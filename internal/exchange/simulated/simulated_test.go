package simulated

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newVenue() *Exchange {
	return New(Config{
		Name:       "sim",
		StartPrice: 100,
		HalfSpread: 0.05,
		Depth:      1,
		Seed:       42,
		Balances:   domain.Balances{"USDT": dec("1000")},
	})
}

func TestExchange_BookIsValidAndDeterministic(t *testing.T) {
	a := New(Config{StartPrice: 100, HalfSpread: 0.05, Volatility: 0.2, Seed: 7})
	b := New(Config{StartPrice: 100, HalfSpread: 0.05, Volatility: 0.2, Seed: 7})

	for range 10 {
		sa, err := a.GetOrderBook(context.Background(), "BTC/USDT")
		require.NoError(t, err)
		sb, _ := b.GetOrderBook(context.Background(), "BTC/USDT")
		require.NoError(t, sa.Validate())

		ba, _ := sa.BestBid()
		bb, _ := sb.BestBid()
		assert.True(t, ba.Equal(bb))
	}
}

func TestExchange_FixedBookWithoutVolatility(t *testing.T) {
	e := newVenue()
	snap, err := e.GetOrderBook(context.Background(), "BTC/USDT")
	require.NoError(t, err)

	bid, _ := snap.BestBid()
	ask, _ := snap.BestAsk()
	assert.True(t, bid.Equal(dec("99.95")), "bid = %s", bid)
	assert.True(t, ask.Equal(dec("100.05")), "ask = %s", ask)
	assert.Len(t, snap.Bids, bookLevels)
}

func TestExchange_MarketOrderFillsAtTouchAndMovesBalances(t *testing.T) {
	e := newVenue()
	o, err := e.PlaceMarketOrder(context.Background(), "BTC/USDT", domain.OrderSideBuy, dec("2"))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, o.Status)
	assert.True(t, o.Price.Equal(dec("100.05")))

	bal, err := e.GetBalance(context.Background())
	require.NoError(t, err)
	assert.True(t, bal["BTC"].Equal(dec("2")))
	assert.True(t, bal["USDT"].Equal(dec("799.9")), "usdt = %s", bal["USDT"])
}

func TestExchange_PassiveLimitRestsAndCancels(t *testing.T) {
	e := newVenue()
	ctx := context.Background()

	o, err := e.PlaceLimitOrder(ctx, "BTC/USDT", domain.OrderSideBuy, dec("99"), dec("1"))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusOpen, o.Status)
	assert.True(t, o.PostOnly)

	open, err := e.GetOpenOrders(ctx, "BTC/USDT")
	require.NoError(t, err)
	assert.Len(t, open, 1)

	ok, err := e.CancelOrder(ctx, o.ID, "BTC/USDT")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.CancelOrder(ctx, o.ID, "BTC/USDT")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExchange_MarketableLimitFillsImmediately(t *testing.T) {
	e := newVenue()
	o, err := e.PlaceLimitOrder(context.Background(), "BTC/USDT", domain.OrderSideBuy, dec("100.05"), dec("1"))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, o.Status)
}

func TestExchange_CancelAllIsIdempotent(t *testing.T) {
	e := newVenue()
	ctx := context.Background()

	ok, err := e.CancelAllOrders(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = e.PlaceLimitOrder(ctx, "BTC/USDT", domain.OrderSideSell, dec("101"), dec("1"))
	require.NoError(t, err)

	for range 2 {
		ok, err = e.CancelAllOrders(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	open, _ := e.GetOpenOrders(ctx, "BTC/USDT")
	assert.Empty(t, open)
}

func TestExchange_FailRateInjectsAdapterErrors(t *testing.T) {
	e := New(Config{Name: "flaky", StartPrice: 100, HalfSpread: 0.05, FailRate: 1})
	_, err := e.PlaceMarketOrder(context.Background(), "BTC/USDT", domain.OrderSideBuy, dec("1"))

	var ae *domain.AdapterError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "flaky", ae.Venue)
	assert.True(t, errors.Is(err, ErrInjected))
}

func TestExchange_LatencyHonoursDeadline(t *testing.T) {
	e := New(Config{StartPrice: 100, HalfSpread: 0.05, Latency: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := e.PlaceMarketOrder(ctx, "BTC/USDT", domain.OrderSideBuy, dec("1"))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestExchange_RejectsNonPositiveSize(t *testing.T) {
	e := newVenue()
	_, err := e.PlaceLimitOrder(context.Background(), "BTC/USDT", domain.OrderSideBuy, dec("99"), decimal.Zero)
	assert.True(t, errors.Is(err, domain.ErrInvalidOrder))
}
