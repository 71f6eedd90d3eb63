package stats

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

func TestCollector_EmptySnapshot(t *testing.T) {
	s := NewCollector().Snapshot()
	assert.Zero(t, s.TotalTrades)
	assert.Zero(t, s.SuccessRate)
	assert.True(t, s.TotalPnL.IsZero())
}

func TestCollector_CountsAndRate(t *testing.T) {
	c := NewCollector()
	c.SpreadDetected()
	c.SpreadDetected()
	c.SpreadDetected()

	c.Record(domain.TradeResult{Success: true, Profit: decimal.RequireFromString("0.15")})
	c.Record(domain.TradeResult{Success: true, Profit: decimal.RequireFromString("0.05")})
	c.Record(domain.TradeResult{Success: false, Profit: decimal.RequireFromString("9")})

	s := c.Snapshot()
	assert.Equal(t, int64(3), s.SpreadsDetected)
	assert.Equal(t, int64(2), s.SpreadsExecuted)
	assert.Equal(t, int64(3), s.TotalTrades)
	assert.Equal(t, int64(2), s.SuccessfulTrades)
	assert.Equal(t, int64(1), s.FailedTrades)
	assert.True(t, s.TotalPnL.Equal(decimal.RequireFromString("0.2")))
	assert.InDelta(t, 66.666, s.SuccessRate, 0.01)
}
