package lighter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:   srv.URL,
		APIKey:    "key",
		APISecret: "secret",
		MapSymbol: func(string) string { return "BTC-USDC" },
	})
}

func TestClient_GetOrderBook(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orderBookOrders", r.URL.Path)
		assert.Equal(t, "BTC-USDC", r.URL.Query().Get("market"))
		assert.Equal(t, "key", r.Header.Get("X-Lighter-Api-Key"))
		assert.Len(t, r.Header.Get("X-Lighter-Timestamp"), 13)
		_, _ = w.Write([]byte(`{"code":200,"bids":[{"price":"100.25","size":"0.5"}],"asks":[{"price":"100.30","size":"0.7"}]}`))
	}))

	snap, err := c.GetOrderBook(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, "lighter", snap.Venue)
	require.NoError(t, snap.Validate())
	bid, _ := snap.BestBid()
	assert.True(t, bid.Equal(decimal.RequireFromString("100.25")))
}

func TestClient_MarketOrder(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req orderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sell", req.Side)
		assert.Equal(t, "market", req.OrderType)
		assert.False(t, req.PostOnly)
		assert.NotEmpty(t, req.ClientID)
		_, _ = w.Write([]byte(`{"code":200,"order":{"order_id":"77","side":"sell","order_type":"market","initial_amount":"0.001","filled_amount":"0.001","avg_price":"100.25","status":"filled"}}`))
	}))

	h, err := c.PlaceMarketOrder(context.Background(), "BTC/USDT", domain.OrderSideSell, decimal.RequireFromString("0.001"))
	require.NoError(t, err)
	assert.Equal(t, "77", h.ID)
	assert.Equal(t, domain.OrderStatusFilled, h.Status)
	assert.Equal(t, domain.OrderTypeMarket, h.Type)
}

func TestClient_RejectedOrder(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":200,"order":{"order_id":"78","initial_amount":"0.001","filled_amount":"0","status":"rejected"}}`))
	}))

	_, err := c.PlaceLimitOrder(context.Background(), "BTC/USDT", domain.OrderSideBuy, decimal.NewFromInt(100), decimal.RequireFromString("0.001"))
	assert.True(t, errors.Is(err, domain.ErrInvalidOrder))
	var ae *domain.AdapterError
	assert.True(t, errors.As(err, &ae))
}

func TestClient_RateLimitedResponse(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"code":429,"message":"too many requests"}`))
	}))

	_, err := c.GetOrderBook(context.Background(), "BTC/USDT")
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
}

func TestClient_CancelAllWithNothingOpen(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cancelAllOrders", r.URL.Path)
		_, _ = w.Write([]byte(`{"code":200,"cancelled":0}`))
	}))

	ok, err := c.CancelAllOrders(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClient_Balances(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":200,"balances":[{"asset":"USDC","available":"900"},{"asset":"BTC","available":"0.01"}]}`))
	}))

	bal, err := c.GetBalance(context.Background())
	require.NoError(t, err)
	assert.Len(t, bal, 2)
	assert.True(t, bal["BTC"].Equal(decimal.RequireFromString("0.01")))
}
