package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeResult is the terminal record of one execution attempt.
//
// Profit is theoretical (spread × size) and is set whether or not both legs
// succeeded. It is not realized PnL.
type TradeResult struct {
	ID              string          `json:"id"`
	Symbol          string          `json:"symbol"`
	Direction       Direction       `json:"direction"`
	Spread          decimal.Decimal `json:"spread"`
	Size            decimal.Decimal `json:"size"`
	Profit          decimal.Decimal `json:"theoretical_profit"`
	Success         bool            `json:"success"`
	LegMakerOrder   *OrderHandle    `json:"leg_maker_order,omitempty"`
	LegTakerOrder   *OrderHandle    `json:"leg_taker_order,omitempty"`
	ExecutionTimeMs int64           `json:"execution_time_ms"`
	Error           string          `json:"error,omitempty"`
	ExecutedAt      time.Time       `json:"executed_at"`
}

// Partial reports whether exactly one leg returned an order.
func (r TradeResult) Partial() bool {
	return (r.LegMakerOrder == nil) != (r.LegTakerOrder == nil)
}

// DanglingLeg names the unhedged leg ("maker" or "taker"), or "" if none.
func (r TradeResult) DanglingLeg() string {
	switch {
	case r.LegMakerOrder != nil && r.LegTakerOrder == nil:
		return "maker"
	case r.LegTakerOrder != nil && r.LegMakerOrder == nil:
		return "taker"
	}
	return ""
}
