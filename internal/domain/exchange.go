package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Exchange is the capability set every venue adapter satisfies. Simulated and
// live venues implement the same interface and are chosen by configuration.
type Exchange interface {
	Name() string
	GetOrderBook(ctx context.Context, symbol string) (OrderBookSnapshot, error)
	// PlaceLimitOrder places a post-only limit order.
	PlaceLimitOrder(ctx context.Context, symbol string, side OrderSide, price, size decimal.Decimal) (*OrderHandle, error)
	PlaceMarketOrder(ctx context.Context, symbol string, side OrderSide, size decimal.Decimal) (*OrderHandle, error)
	CancelOrder(ctx context.Context, id, symbol string) (bool, error)
	// CancelAllOrders is idempotent: calling it with nothing open succeeds.
	CancelAllOrders(ctx context.Context) (bool, error)
	GetBalance(ctx context.Context) (Balances, error)
	GetOpenOrders(ctx context.Context, symbol string) ([]OrderHandle, error)
}

// NotificationSink receives engine events. Implementations are
// fire-and-forget and must not block or fail the caller.
type NotificationSink interface {
	NotifyTradeComplete(ctx context.Context, result TradeResult, balances map[string]Balances)
	NotifyError(ctx context.Context, message string)
	NotifyStartupBalances(ctx context.Context, balances map[string]Balances)
}
