// Package position tracks net signed exposure per symbol and cumulative
// performance across executions.
package position

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// Tracker holds positions and performance counters. The engine is its only
// writer, but status readers run on other goroutines, so access is locked.
type Tracker struct {
	mu          sync.RWMutex
	positions   map[string]*domain.Position
	totalVolume decimal.Decimal
	totalTrades int64
	totalProfit decimal.Decimal
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{positions: make(map[string]*domain.Position)}
}

// GetNetPosition returns the net signed amount for symbol (zero if unseen).
func (t *Tracker) GetNetPosition(symbol string) decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if p, ok := t.positions[symbol]; ok {
		return p.NetAmount
	}
	return decimal.Zero
}

// Position returns a copy of the position for symbol.
func (t *Tracker) Position(symbol string) domain.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if p, ok := t.positions[symbol]; ok {
		return *p
	}
	return domain.Position{Symbol: symbol}
}

// RecordFill applies a signed fill to symbol.
//
// AvgPrice is the volume-weighted entry price of the open exposure: fills
// that grow the position blend in, fills that reduce it leave it unchanged,
// a fill that flips the sign resets it to the fill price, and a flat
// position has a zero average.
func (t *Tracker) RecordFill(symbol string, signedDelta, price decimal.Decimal) {
	if signedDelta.IsZero() {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.positions[symbol]
	if !ok {
		p = &domain.Position{Symbol: symbol}
		t.positions[symbol] = p
	}

	prev := p.NetAmount
	next := prev.Add(signedDelta)

	switch {
	case next.IsZero():
		p.AvgPrice = decimal.Zero
	case prev.IsZero() || prev.Sign() != next.Sign():
		p.AvgPrice = price
	case prev.Sign() == signedDelta.Sign():
		prevAbs := prev.Abs()
		deltaAbs := signedDelta.Abs()
		p.AvgPrice = prevAbs.Mul(p.AvgPrice).Add(deltaAbs.Mul(price)).Div(prevAbs.Add(deltaAbs))
	}

	p.NetAmount = next
	t.totalVolume = t.totalVolume.Add(signedDelta.Abs())
}

// RecordTrade counts a completed execution attempt. Only attempts where both
// legs filled add their theoretical profit.
func (t *Tracker) RecordTrade(result domain.TradeResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalTrades++
	if result.Success {
		t.totalProfit = t.totalProfit.Add(result.Profit)
	}
}

// TotalVolume returns the sum of absolute fill sizes.
func (t *Tracker) TotalVolume() decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totalVolume
}

// PerformanceMetrics returns the cumulative counters. TotalFees is always
// zero since venue fees are not modelled.
func (t *Tracker) PerformanceMetrics() domain.PerformanceMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	fees := decimal.Zero
	return domain.PerformanceMetrics{
		TotalTrades: t.totalTrades,
		TotalProfit: t.totalProfit,
		TotalFees:   fees,
		NetProfit:   t.totalProfit.Sub(fees),
		TotalVolume: t.totalVolume,
	}
}
