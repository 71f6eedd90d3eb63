package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel is a single price level in an order book.
type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// OrderBookSnapshot is a point-in-time view of one venue's book. Bids are
// sorted descending by price, asks ascending.
type OrderBookSnapshot struct {
	Venue     string       `json:"venue"`
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp time.Time    `json:"timestamp"`
}

// BestBid returns the highest bid and false when the bid side is empty.
func (s OrderBookSnapshot) BestBid() (decimal.Decimal, bool) {
	if len(s.Bids) == 0 {
		return decimal.Zero, false
	}
	return s.Bids[0].Price, true
}

// BestAsk returns the lowest ask and false when the ask side is empty.
func (s OrderBookSnapshot) BestAsk() (decimal.Decimal, bool) {
	if len(s.Asks) == 0 {
		return decimal.Zero, false
	}
	return s.Asks[0].Price, true
}

// MidPrice returns (bid+ask)/2, or zero if either side is empty.
func (s OrderBookSnapshot) MidPrice() decimal.Decimal {
	bid, okB := s.BestBid()
	ask, okA := s.BestAsk()
	if !okB || !okA {
		return decimal.Zero
	}
	return bid.Add(ask).Div(decimal.NewFromInt(2))
}

// Validate returns an *InsufficientDataError when the snapshot has an empty
// side or a crossed/locked top of book.
func (s OrderBookSnapshot) Validate() error {
	bid, okB := s.BestBid()
	ask, okA := s.BestAsk()
	switch {
	case !okB && !okA:
		return &InsufficientDataError{Venue: s.Venue, Symbol: s.Symbol, Reason: "empty book"}
	case !okB:
		return &InsufficientDataError{Venue: s.Venue, Symbol: s.Symbol, Reason: "empty bid side"}
	case !okA:
		return &InsufficientDataError{Venue: s.Venue, Symbol: s.Symbol, Reason: "empty ask side"}
	case bid.GreaterThanOrEqual(ask):
		return &InsufficientDataError{Venue: s.Venue, Symbol: s.Symbol, Reason: "crossed book"}
	}
	return nil
}
