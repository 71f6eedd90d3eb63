package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of the arbitrage relative to the maker venue.
type Direction string

const (
	// DirectionLong buys on the maker venue and sells on the taker venue.
	DirectionLong Direction = "LONG"
	// DirectionShort sells on the maker venue and buys on the taker venue.
	DirectionShort Direction = "SHORT"
)

// MakerSide returns the maker leg's order side.
func (d Direction) MakerSide() OrderSide {
	if d == DirectionLong {
		return OrderSideBuy
	}
	return OrderSideSell
}

// TakerSide returns the taker leg's order side.
func (d Direction) TakerSide() OrderSide {
	return d.MakerSide().Opposite()
}

// Opportunity is a detected spread that passed thresholds and the position
// bound. It is produced by the detector and consumed once by the coordinator.
type Opportunity struct {
	Direction     Direction       `json:"direction"`
	Symbol        string          `json:"symbol"`
	Spread        decimal.Decimal `json:"spread"`
	LegMakerPrice decimal.Decimal `json:"leg_maker_price"`
	LegTakerPrice decimal.Decimal `json:"leg_taker_price"`
	Size          decimal.Decimal `json:"size"`
	DetectedAt    time.Time       `json:"detected_at"`
}

// TheoreticalProfit is spread × size with no fee model.
func (o Opportunity) TheoreticalProfit() decimal.Decimal {
	return o.Spread.Mul(o.Size)
}
