package paradex

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// --------------------------------------------------------------------------
// Paradex API DTOs
// --------------------------------------------------------------------------

// orderbookResponse is GET /orderbook/{market}. Levels are [price, size]
// string pairs.
type orderbookResponse struct {
	Market        string      `json:"market"`
	Bids          [][2]string `json:"bids"`
	Asks          [][2]string `json:"asks"`
	LastUpdatedAt int64       `json:"last_updated_at"` // unix ms
}

// orderRequest is the POST /orders body.
type orderRequest struct {
	Market      string `json:"market"`
	Side        string `json:"side"` // BUY | SELL
	Type        string `json:"type"` // LIMIT | MARKET
	Size        string `json:"size"`
	Price       string `json:"price,omitempty"`
	Instruction string `json:"instruction"` // POST_ONLY | IOC | GTC
	ClientID    string `json:"client_id"`
}

// order is an order as returned by the Paradex REST API.
type order struct {
	ID            string `json:"id"`
	ClientID      string `json:"client_id"`
	Market        string `json:"market"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Size          string `json:"size"`
	RemainingSize string `json:"remaining_size"`
	Price         string `json:"price"`
	AvgFillPrice  string `json:"avg_fill_price"`
	Status        string `json:"status"` // NEW | OPEN | CLOSED
	CancelReason  string `json:"cancel_reason"`
	Instruction   string `json:"instruction"`
	CreatedAt     int64  `json:"created_at"` // unix ms
}

type ordersResponse struct {
	Results []order `json:"results"`
}

type balance struct {
	Token string `json:"token"`
	Size  string `json:"size"`
}

type balancesResponse struct {
	Results []balance `json:"results"`
}

// toHandle converts a venue order into the domain handle. symbol is the
// engine's symbol, not the venue market.
func (o order) toHandle(venue, symbol string) *domain.OrderHandle {
	size := parseDec(o.Size)
	remaining := parseDec(o.RemainingSize)
	filled := size.Sub(remaining)
	if filled.IsNegative() {
		filled = decimal.Zero
	}

	price := parseDec(o.AvgFillPrice)
	if price.IsZero() {
		price = parseDec(o.Price)
	}

	status := domain.OrderStatusOpen
	switch o.Status {
	case "CLOSED":
		switch {
		case o.CancelReason != "" && filled.IsZero():
			status = domain.OrderStatusCancelled
		case filled.GreaterThanOrEqual(size):
			status = domain.OrderStatusFilled
		default:
			status = domain.OrderStatusPartial
		}
	case "OPEN", "NEW":
		if filled.IsPositive() {
			status = domain.OrderStatusPartial
		}
	}

	side := domain.OrderSideBuy
	if o.Side == "SELL" {
		side = domain.OrderSideSell
	}
	typ := domain.OrderTypeLimit
	if o.Type == "MARKET" {
		typ = domain.OrderTypeMarket
	}

	return &domain.OrderHandle{
		ID:        o.ID,
		Venue:     venue,
		Symbol:    symbol,
		Side:      side,
		Type:      typ,
		Price:     price,
		Size:      size,
		Filled:    filled,
		Status:    status,
		PostOnly:  o.Instruction == "POST_ONLY",
		CreatedAt: time.UnixMilli(o.CreatedAt).UTC(),
	}
}

func parseDec(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseLevels(raw [][2]string) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, l := range raw {
		p, err := decimal.NewFromString(l[0])
		if err != nil {
			continue
		}
		s, err := decimal.NewFromString(l[1])
		if err != nil {
			continue
		}
		levels = append(levels, domain.PriceLevel{Price: p, Size: s})
	}
	return levels
}

func sideString(s domain.OrderSide) string {
	if s == domain.OrderSideBuy {
		return "BUY"
	}
	return "SELL"
}
