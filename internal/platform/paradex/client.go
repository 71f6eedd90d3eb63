// Package paradex adapts the Paradex perpetuals REST API to domain.Exchange.
package paradex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadarb/internal/crypto"
	"github.com/alanyoungcy/spreadarb/internal/domain"
	"github.com/alanyoungcy/spreadarb/internal/platform/rest"
)

// DefaultBaseURL is the production REST root.
const DefaultBaseURL = "https://api.prod.paradex.trade/v1"

const bookDepth = 20

// Config configures a Client.
type Config struct {
	Name      string
	BaseURL   string
	APIKey    string
	APISecret string
	// MapSymbol converts an engine symbol such as "BTC/USDT" to a Paradex
	// market such as "BTC-USDC-PERP".
	MapSymbol func(string) string
	Limiter   domain.RateLimiter
	RateLimit int
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// Client implements domain.Exchange against Paradex.
type Client struct {
	name      string
	rest      *rest.Client
	mapSymbol func(string) string
}

var _ domain.Exchange = (*Client)(nil)

// NewClient creates a Paradex adapter.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Name == "" {
		cfg.Name = "paradex"
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
					APIKey:    "PARADEX-API-KEY",
					Timestamp: "PARADEX-TIMESTAMP",
					Signature: "PARADEX-SIGNATURE",
				},
			},
			Limiter:    cfg.Limiter,
			RateLimit:  cfg.RateLimit,
			HTTPClient: cfg.HTTPClient,
		}),
	}
}

// Name implements domain.Exchange.
func (c *Client) Name() string { return c.name }

// GetOrderBook returns the top of the book for symbol.
func (c *Client) GetOrderBook(ctx context.Context, symbol string) (domain.OrderBookSnapshot, error) {
	market := c.mapSymbol(symbol)
	q := url.Values{"depth": {strconv.Itoa(bookDepth)}}

	body, err := c.rest.Do(ctx, http.MethodGet, "/orderbook/"+url.PathEscape(market), q, nil)
	if err != nil {
		return domain.OrderBookSnapshot{}, domain.NewAdapterError(c.name, "get_orderbook", err)
	}

	var resp orderbookResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderBookSnapshot{}, domain.NewAdapterError(c.name, "get_orderbook", fmt.Errorf("decode: %w", err))
	}

	ts := time.Now().UTC()
	if resp.LastUpdatedAt > 0 {
		ts = time.UnixMilli(resp.LastUpdatedAt).UTC()
	}
	return domain.OrderBookSnapshot{
		Venue:     c.name,
		Symbol:    symbol,
		Bids:      parseLevels(resp.Bids),
		Asks:      parseLevels(resp.Asks),
		Timestamp: ts,
	}, nil
}

// PlaceLimitOrder places a post-only limit order.
func (c *Client) PlaceLimitOrder(ctx context.Context, symbol string, side domain.OrderSide, price, size decimal.Decimal) (*domain.OrderHandle, error) {
	return c.placeOrder(ctx, symbol, orderRequest{
		Market:      c.mapSymbol(symbol),
		Side:        sideString(side),
		Type:        "LIMIT",
		Size:        size.String(),
		Price:       price.String(),
		Instruction: "POST_ONLY",
		ClientID:    uuid.New().String(),
	})
}

// PlaceMarketOrder places an immediate-or-cancel market order.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, size decimal.Decimal) (*domain.OrderHandle, error) {
	return c.placeOrder(ctx, symbol, orderRequest{
		Market:      c.mapSymbol(symbol),
		Side:        sideString(side),
		Type:        "MARKET",
		Size:        size.String(),
		Instruction: "IOC",
		ClientID:    uuid.New().String(),
	})
}

func (c *Client) placeOrder(ctx context.Context, symbol string, req orderRequest) (*domain.OrderHandle, error) {
	body, err := c.rest.Do(ctx, http.MethodPost, "/orders", nil, req)
	if err != nil {
		return nil, domain.NewAdapterError(c.name, "place_order", err)
	}

	var o order
	if err := json.Unmarshal(body, &o); err != nil {
		return nil, domain.NewAdapterError(c.name, "place_order", fmt.Errorf("decode: %w", err))
	}
	if o.ID == "" {
		return nil, domain.NewAdapterError(c.name, "place_order", fmt.Errorf("%w: empty order id", domain.ErrInvalidOrder))
	}

	h := o.toHandle(c.name, symbol)
	if h.Status == domain.OrderStatusCancelled {
		return nil, domain.NewAdapterError(c.name, "place_order",
			fmt.Errorf("%w: order %s cancelled: %s", domain.ErrInvalidOrder, o.ID, o.CancelReason))
	}
	return h, nil
}

// CancelOrder cancels one order. An unknown order is reported as false.
func (c *Client) CancelOrder(ctx context.Context, id, _ string) (bool, error) {
	_, err := c.rest.Do(ctx, http.MethodDelete, "/orders/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return false, domain.NewAdapterError(c.name, "cancel_order", err)
	}
	return true, nil
}

// CancelAllOrders cancels every open order on the account.
func (c *Client) CancelAllOrders(ctx context.Context) (bool, error) {
	_, err := c.rest.Do(ctx, http.MethodDelete, "/orders", nil, nil)
	if err != nil {
		return false, domain.NewAdapterError(c.name, "cancel_all", err)
	}
	return true, nil
}

// GetBalance returns available balances by token.
func (c *Client) GetBalance(ctx context.Context) (domain.Balances, error) {
	body, err := c.rest.Do(ctx, http.MethodGet, "/balance", nil, nil)
	if err != nil {
		return nil, domain.NewAdapterError(c.name, "get_balance", err)
	}
	var resp balancesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewAdapterError(c.name, "get_balance", fmt.Errorf("decode: %w", err))
	}

	out := make(domain.Balances, len(resp.Results))
	for _, b := range resp.Results {
		out[b.Token] = parseDec(b.Size)
	}
	return out, nil
}

// GetOpenOrders lists open orders for symbol.
func (c *Client) GetOpenOrders(ctx context.Context, symbol string) ([]domain.OrderHandle, error) {
	q := url.Values{"market": {c.mapSymbol(symbol)}}
	body, err := c.rest.Do(ctx, http.MethodGet, "/orders", q, nil)
	if err != nil {
		return nil, domain.NewAdapterError(c.name, "get_open_orders", err)
	}
	var resp ordersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewAdapterError(c.name, "get_open_orders", fmt.Errorf("decode: %w", err))
	}

	out := make([]domain.OrderHandle, 0, len(resp.Results))
	for _, o := range resp.Results {
		out = append(out, *o.toHandle(c.name, symbol))
	}
	return out, nil
}
