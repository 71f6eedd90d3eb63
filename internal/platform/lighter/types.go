package lighter

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// level is one order book entry.
type level struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type orderBookResponse struct {
	Code int     `json:"code"`
	Bids []level `json:"bids"`
	Asks []level `json:"asks"`
}

// orderRequest is the POST /order body.
type orderRequest struct {
	Market    string `json:"market"`
	Side      string `json:"side"`       // buy | sell
	OrderType string `json:"order_type"` // limit | market
	Amount    string `json:"amount"`
	Price     string `json:"price,omitempty"`
	PostOnly  bool   `json:"post_only"`
	ClientID  string `json:"client_order_id"`
}

type cancelRequest struct {
	Market  string `json:"market,omitempty"`
	OrderID string `json:"order_id,omitempty"`
}

type cancelResponse struct {
	Code      int `json:"code"`
	Cancelled int `json:"cancelled"`
}

// order is an order as returned by Lighter.
type order struct {
	OrderID         string `json:"order_id"`
	Market          string `json:"market"`
	Side            string `json:"side"`
	OrderType       string `json:"order_type"`
	InitialAmount   string `json:"initial_amount"`
	FilledAmount    string `json:"filled_amount"`
	Price           string `json:"price"`
	AvgPrice        string `json:"avg_price"`
	Status          string `json:"status"` // open | filled | canceled | rejected
	PostOnly        bool   `json:"post_only"`
	CreatedAtMillis int64  `json:"timestamp"`
}

type orderResponse struct {
	Code  int    `json:"code"`
	Order order  `json:"order"`
	Msg   string `json:"message"`
}

type ordersResponse struct {
	Code   int     `json:"code"`
	Orders []order `json:"orders"`
}

type accountResponse struct {
	Code     int `json:"code"`
	Balances []struct {
		Asset     string `json:"asset"`
		Available string `json:"available"`
	} `json:"balances"`
}

func (o order) toHandle(venue, symbol string) *domain.OrderHandle {
	size := parseDec(o.InitialAmount)
	filled := parseDec(o.FilledAmount)

	price := parseDec(o.AvgPrice)
	if price.IsZero() {
		price = parseDec(o.Price)
	}

	var status domain.OrderStatus
	switch o.Status {
	case "filled":
		status = domain.OrderStatusFilled
	case "canceled", "cancelled":
		status = domain.OrderStatusCancelled
		if filled.IsPositive() {
			status = domain.OrderStatusPartial
		}
	case "rejected":
		status = domain.OrderStatusRejected
	default:
		status = domain.OrderStatusOpen
		if filled.IsPositive() {
			status = domain.OrderStatusPartial
		}
	}

	side := domain.OrderSideBuy
	if o.Side == "sell" {
		side = domain.OrderSideSell
	}
	typ := domain.OrderTypeLimit
	if o.OrderType == "market" {
		typ = domain.OrderTypeMarket
	}

	created := time.Now().UTC()
	if o.CreatedAtMillis > 0 {
		created = time.UnixMilli(o.CreatedAtMillis).UTC()
	}

	return &domain.OrderHandle{
		ID:        o.OrderID,
		Venue:     venue,
		Symbol:    symbol,
		Side:      side,
		Type:      typ,
		Price:     price,
		Size:      size,
		Filled:    filled,
		Status:    status,
		PostOnly:  o.PostOnly,
		CreatedAt: created,
	}
}

func parseDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseLevels(raw []level) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(raw))
	for _, l := range raw {
		p, perr := decimal.NewFromString(l.Price)
		s, serr := decimal.NewFromString(l.Size)
		if perr != nil || serr != nil {
			continue
		}
		out = append(out, domain.PriceLevel{Price: p, Size: s})
	}
	return out
}

func nowUTC() time.Time { return time.Now().UTC() }
