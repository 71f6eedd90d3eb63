package position

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestTracker_UnknownSymbolIsFlat(t *testing.T) {
	tr := NewTracker()
	assert.True(t, tr.GetNetPosition("BTC/USDT").IsZero())
	assert.True(t, tr.Position("BTC/USDT").AvgPrice.IsZero())
}

func TestTracker_VolumeWeightedAverage(t *testing.T) {
	tr := NewTracker()
	tr.RecordFill("BTC/USDT", dec("1"), dec("100"))
	tr.RecordFill("BTC/USDT", dec("3"), dec("200"))

	p := tr.Position("BTC/USDT")
	assert.True(t, p.NetAmount.Equal(dec("4")))
	assert.True(t, p.AvgPrice.Equal(dec("175")), "avg = %s", p.AvgPrice)
	assert.True(t, tr.TotalVolume().Equal(dec("4")))
}

func TestTracker_ReducingKeepsAverage(t *testing.T) {
	tr := NewTracker()
	tr.RecordFill("BTC/USDT", dec("2"), dec("100"))
	tr.RecordFill("BTC/USDT", dec("-1"), dec("150"))

	p := tr.Position("BTC/USDT")
	assert.True(t, p.NetAmount.Equal(dec("1")))
	assert.True(t, p.AvgPrice.Equal(dec("100")))
	assert.True(t, tr.TotalVolume().Equal(dec("3")))
}

func TestTracker_FlipResetsAverage(t *testing.T) {
	tr := NewTracker()
	tr.RecordFill("BTC/USDT", dec("1"), dec("100"))
	tr.RecordFill("BTC/USDT", dec("-3"), dec("120"))

	p := tr.Position("BTC/USDT")
	assert.True(t, p.NetAmount.Equal(dec("-2")))
	assert.True(t, p.AvgPrice.Equal(dec("120")))
}

func TestTracker_FlatHasZeroAverage(t *testing.T) {
	tr := NewTracker()
	tr.RecordFill("BTC/USDT", dec("0.001"), dec("100.10"))
	tr.RecordFill("BTC/USDT", dec("-0.001"), dec("100.25"))

	assert.True(t, tr.GetNetPosition("BTC/USDT").IsZero())
	assert.True(t, tr.Position("BTC/USDT").AvgPrice.IsZero())
	assert.True(t, tr.TotalVolume().Equal(dec("0.002")))
}

func TestTracker_PerformanceMetricsExposeZeroFees(t *testing.T) {
	tr := NewTracker()
	tr.RecordTrade(domain.TradeResult{Success: true, Profit: dec("0.00015")})
	tr.RecordTrade(domain.TradeResult{Success: false, Profit: dec("0.5")})

	m := tr.PerformanceMetrics()
	assert.Equal(t, int64(2), m.TotalTrades)
	assert.True(t, m.TotalProfit.Equal(dec("0.00015")))
	assert.True(t, m.TotalFees.IsZero())
	assert.True(t, m.NetProfit.Equal(m.TotalProfit))
}
