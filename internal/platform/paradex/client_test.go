package paradex

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/spreadarb/internal/crypto"
	"github.com/alanyoungcy/spreadarb/internal/domain"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		Name:      "paradex",
		BaseURL:   srv.URL,
		APIKey:    "key",
		APISecret: "secret",
		MapSymbol: func(string) string { return "BTC-USDC-PERP" },
	})
}

func TestClient_GetOrderBook(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orderbook/BTC-USDC-PERP", r.URL.Path)
		assert.Equal(t, "20", r.URL.Query().Get("depth"))
		assert.Equal(t, "key", r.Header.Get("PARADEX-API-KEY"))
		assert.NotEmpty(t, r.Header.Get("PARADEX-SIGNATURE"))
		_, _ = w.Write([]byte(`{"market":"BTC-USDC-PERP","bids":[["100.00","1.5"]],"asks":[["100.10","2"]],"last_updated_at":1700000000000}`))
	}))

	snap, err := c.GetOrderBook(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, "BTC/USDT", snap.Symbol)
	assert.Equal(t, "paradex", snap.Venue)

	bid, ok := snap.BestBid()
	require.True(t, ok)
	assert.True(t, bid.Equal(decimal.RequireFromString("100.00")))
	ask, ok := snap.BestAsk()
	require.True(t, ok)
	assert.True(t, ask.Equal(decimal.RequireFromString("100.10")))
	assert.Equal(t, int64(1700000000000), snap.Timestamp.UnixMilli())
}

func TestClient_PlaceLimitOrderIsPostOnlyAndSigned(t *testing.T) {
	verifier := &crypto.HMACAuth{Secret: "secret"}

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/orders", r.URL.Path)

		var raw json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.True(t, verifier.Verify("POST", "/orders", string(raw),
			r.Header.Get("PARADEX-TIMESTAMP"), r.Header.Get("PARADEX-SIGNATURE")))

		var req orderRequest
		require.NoError(t, json.Unmarshal(raw, &req))
		assert.Equal(t, "BUY", req.Side)
		assert.Equal(t, "LIMIT", req.Type)
		assert.Equal(t, "POST_ONLY", req.Instruction)
		assert.Equal(t, "100.1", req.Price)
		assert.Equal(t, "0.001", req.Size)

		_, _ = w.Write([]byte(`{"id":"o-1","market":"BTC-USDC-PERP","side":"BUY","type":"LIMIT","size":"0.001","remaining_size":"0.001","price":"100.1","status":"NEW","instruction":"POST_ONLY","created_at":1700000000000}`))
	}))

	h, err := c.PlaceLimitOrder(context.Background(), "BTC/USDT", domain.OrderSideBuy,
		decimal.RequireFromString("100.10"), decimal.RequireFromString("0.001"))
	require.NoError(t, err)
	assert.Equal(t, "o-1", h.ID)
	assert.Equal(t, domain.OrderStatusOpen, h.Status)
	assert.True(t, h.PostOnly)
	assert.Equal(t, "BTC/USDT", h.Symbol)
}

func TestClient_MarketOrderFilled(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"o-2","side":"SELL","type":"MARKET","size":"0.001","remaining_size":"0","avg_fill_price":"100.25","status":"CLOSED"}`))
	}))

	h, err := c.PlaceMarketOrder(context.Background(), "BTC/USDT", domain.OrderSideSell, decimal.RequireFromString("0.001"))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, h.Status)
	assert.Equal(t, domain.OrderSideSell, h.Side)
	assert.True(t, h.Price.Equal(decimal.RequireFromString("100.25")))
}

func TestClient_RejectedPostOnlyIsAdapterError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"o-3","size":"0.001","remaining_size":"0.001","status":"CLOSED","cancel_reason":"POST_ONLY_WOULD_CROSS"}`))
	}))

	_, err := c.PlaceLimitOrder(context.Background(), "BTC/USDT", domain.OrderSideBuy, decimal.NewFromInt(100), decimal.RequireFromString("0.001"))
	var ae *domain.AdapterError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "place_order", ae.Op)
	assert.True(t, errors.Is(err, domain.ErrInvalidOrder))
}

func TestClient_HTTPErrorsMapToSentinels(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"INVALID_SIGNATURE","message":"bad signature"}`))
	}))

	_, err := c.GetBalance(context.Background())
	var ae *domain.AdapterError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "paradex", ae.Venue)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	assert.Contains(t, err.Error(), "bad signature")
}

func TestClient_CancelAllIsRepeatable(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))

	for range 2 {
		ok, err := c.CancelAllOrders(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 2, calls)
}

func TestClient_GetBalanceAndOpenOrders(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /balance", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"token":"USDC","size":"1250.5"}]}`))
	})
	mux.HandleFunc("GET /orders", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTC-USDC-PERP", r.URL.Query().Get("market"))
		_, _ = w.Write([]byte(`{"results":[{"id":"a","side":"BUY","type":"LIMIT","size":"1","remaining_size":"0.4","price":"99","status":"OPEN"}]}`))
	})
	c := newTestClient(t, mux)

	bal, err := c.GetBalance(context.Background())
	require.NoError(t, err)
	assert.True(t, bal["USDC"].Equal(decimal.RequireFromString("1250.5")))

	orders, err := c.GetOpenOrders(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.OrderStatusPartial, orders[0].Status)
	assert.True(t, orders[0].Filled.Equal(decimal.RequireFromString("0.6")))
}
