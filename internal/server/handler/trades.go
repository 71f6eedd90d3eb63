package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadarb/internal/domain"
	"github.com/alanyoungcy/spreadarb/internal/service"
)

// TradeReader is the read side of the trade history.
type TradeReader interface {
	Recent(ctx context.Context, opts domain.ListOpts) ([]domain.TradeResult, error)
	Get(ctx context.Context, id string) (domain.TradeResult, error)
	ProfitSince(ctx context.Context, t time.Time) (decimal.Decimal, error)
}

// TradeHandler serves the persisted trade history.
type TradeHandler struct {
	trades TradeReader
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trades TradeReader, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{trades: trades, logger: logHandler(logger, "trades")}
}

// ListTrades returns recent trades, newest first.
// GET /api/trades?limit=&offset=&since=&until=
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	trades, err := h.trades.Recent(r.Context(), opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if trades == nil {
		trades = []domain.TradeResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"trades": trades,
		"count":  len(trades),
	})
}

// GetTrade returns one trade.
// GET /api/trades/{id}
func (h *TradeHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	t, err := h.trades.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Profit sums theoretical profit of successful trades. since defaults to
// 24 hours ago.
// GET /api/trades/profit?since=
func (h *TradeHandler) Profit(w http.ResponseWriter, r *http.Request) {
	t, err := parseTime(r.URL.Query().Get("since"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	since := time.Now().UTC().Add(-24 * time.Hour)
	if t != nil {
		since = *t
	}

	p, err := h.trades.ProfitSince(r.Context(), since)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"since":  since.Format(time.RFC3339),
		"profit": p,
	})
}

func (h *TradeHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrNoHistory) {
		writeError(w, http.StatusNotImplemented, err.Error())
		return
	}
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "trade query failed", slog.String("error", err.Error()))
	}
	writeError(w, code, err.Error())
}
