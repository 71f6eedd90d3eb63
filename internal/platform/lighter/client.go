// Package lighter adapts the Lighter order book REST API to domain.Exchange.
package lighter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadarb/internal/crypto"
	"github.com/alanyoungcy/spreadarb/internal/domain"
	"github.com/alanyoungcy/spreadarb/internal/platform/rest"
)

// DefaultBaseURL is the mainnet REST root.
const DefaultBaseURL = "https://mainnet.zklighter.elliot.ai/api/v1"

const bookLimit = 20

// Config configures a Client.
type Config struct {
	Name      string
	BaseURL   string
	APIKey    string
	APISecret string
	// MapSymbol converts "BTC/USDT" into a Lighter market such as "BTC-USDC".
	MapSymbol  func(string) string
	Limiter    domain.RateLimiter
	RateLimit  int
	HTTPClient *http.Client
}

// Client implements domain.Exchange against Lighter.
type Client struct {
	name      string
	rest      *rest.Client
	mapSymbol func(string) string
}

var _ domain.Exchange = (*Client)(nil)

// NewClient creates a Lighter adapter.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Name == "" {
		cfg.Name = "lighter"
	}
	mapSymbol := cfg.MapSymbol
	if mapSymbol == nil {
		mapSymbol = func(s string) string { return s }
	}
	return &Client{
		name:      cfg.Name,
		mapSymbol: mapSymbol,
		rest: rest.New(rest.Options{
			Venue:   cfg.Name,
			BaseURL: cfg.BaseURL,
			Auth: &crypto.HMACAuth{
				Key:    cfg.APIKey,
				Secret: cfg.APISecret,
				Headers: crypto.HeaderNames{
					APIKey:    "X-Lighter-Api-Key",
					Timestamp: "X-Lighter-Timestamp",
					Signature: "X-Lighter-Signature",
				},
				Millis: true,
			},
			Limiter:    cfg.Limiter,
			RateLimit:  cfg.RateLimit,
			HTTPClient: cfg.HTTPClient,
		}),
	}
}

// Name implements domain.Exchange.
func (c *Client) Name() string { return c.name }

// GetOrderBook returns the resting orders for symbol.
func (c *Client) GetOrderBook(ctx context.Context, symbol string) (domain.OrderBookSnapshot, error) {
	q := url.Values{
		"market": {c.mapSymbol(symbol)},
		"limit":  {strconv.Itoa(bookLimit)},
	}
	body, err := c.rest.Do(ctx, http.MethodGet, "/orderBookOrders", q, nil)
	if err != nil {
		return domain.OrderBookSnapshot{}, domain.NewAdapterError(c.name, "get_orderbook", err)
	}

	var resp orderBookResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderBookSnapshot{}, domain.NewAdapterError(c.name, "get_orderbook", fmt.Errorf("decode: %w", err))
	}
	return domain.OrderBookSnapshot{
		Venue:     c.name,
		Symbol:    symbol,
		Bids:      parseLevels(resp.Bids),
		Asks:      parseLevels(resp.Asks),
		Timestamp: nowUTC(),
	}, nil
}

// PlaceLimitOrder places a post-only limit order.
func (c *Client) PlaceLimitOrder(ctx context.Context, symbol string, side domain.OrderSide, price, size decimal.Decimal) (*domain.OrderHandle, error) {
	return c.placeOrder(ctx, symbol, orderRequest{
		Market:    c.mapSymbol(symbol),
		Side:      string(side),
		OrderType: "limit",
		Amount:    size.String(),
		Price:     price.String(),
		PostOnly:  true,
		ClientID:  uuid.New().String(),
	})
}

// PlaceMarketOrder places a market order.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, size decimal.Decimal) (*domain.OrderHandle, error) {
	return c.placeOrder(ctx, symbol, orderRequest{
		Market:    c.mapSymbol(symbol),
		Side:      string(side),
		OrderType: "market",
		Amount:    size.String(),
		ClientID:  uuid.New().String(),
	})
}

func (c *Client) placeOrder(ctx context.Context, symbol string, req orderRequest) (*domain.OrderHandle, error) {
	body, err := c.rest.Do(ctx, http.MethodPost, "/order", nil, req)
	if err != nil {
		return nil, domain.NewAdapterError(c.name, "place_order", err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewAdapterError(c.name, "place_order", fmt.Errorf("decode: %w", err))
	}
	if resp.Order.OrderID == "" {
		return nil, domain.NewAdapterError(c.name, "place_order", fmt.Errorf("%w: %s", domain.ErrInvalidOrder, resp.Msg))
	}

	h := resp.Order.toHandle(c.name, symbol)
	if h.Status == domain.OrderStatusRejected || h.Status == domain.OrderStatusCancelled {
		return nil, domain.NewAdapterError(c.name, "place_order",
			fmt.Errorf("%w: order %s %s", domain.ErrInvalidOrder, h.ID, h.Status))
	}
	return h, nil
}

// CancelOrder cancels one order.
func (c *Client) CancelOrder(ctx context.Context, id, symbol string) (bool, error) {
	body, err := c.rest.Do(ctx, http.MethodPost, "/cancelOrder", nil, cancelRequest{
		Market:  c.mapSymbol(symbol),
		OrderID: id,
	})
	if err != nil {
		return false, domain.NewAdapterError(c.name, "cancel_order", err)
	}
	var resp cancelResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, domain.NewAdapterError(c.name, "cancel_order", fmt.Errorf("decode: %w", err))
	}
	return resp.Cancelled > 0, nil
}

// CancelAllOrders cancels every open order on the account. Zero cancelled
// orders is still success.
func (c *Client) CancelAllOrders(ctx context.Context) (bool, error) {
	if _, err := c.rest.Do(ctx, http.MethodPost, "/cancelAllOrders", nil, cancelRequest{}); err != nil {
		return false, domain.NewAdapterError(c.name, "cancel_all", err)
	}
	return true, nil
}

// GetBalance returns available balances by asset.
func (c *Client) GetBalance(ctx context.Context) (domain.Balances, error) {
	body, err := c.rest.Do(ctx, http.MethodGet, "/account", nil, nil)
	if err != nil {
		return nil, domain.NewAdapterError(c.name, "get_balance", err)
	}
	var resp accountResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewAdapterError(c.name, "get_balance", fmt.Errorf("decode: %w", err))
	}
	out := make(domain.Balances, len(resp.Balances))
	for _, b := range resp.Balances {
		out[b.Asset] = parseDec(b.Available)
	}
	return out, nil
}

// GetOpenOrders lists open orders for symbol.
func (c *Client) GetOpenOrders(ctx context.Context, symbol string) ([]domain.OrderHandle, error) {
	q := url.Values{"market": {c.mapSymbol(symbol)}}
	body, err := c.rest.Do(ctx, http.MethodGet, "/accountActiveOrders", q, nil)
	if err != nil {
		return nil, domain.NewAdapterError(c.name, "get_open_orders", err)
	}
	var resp ordersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewAdapterError(c.name, "get_open_orders", fmt.Errorf("decode: %w", err))
	}
	out := make([]domain.OrderHandle, 0, len(resp.Orders))
	for _, o := range resp.Orders {
		out = append(out, *o.toHandle(c.name, symbol))
	}
	return out, nil
}
