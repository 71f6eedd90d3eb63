// Package stats aggregates trade results into running counters.
package stats

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// Collector keeps the engine's running totals.
type Collector struct {
	mu sync.RWMutex
	s  domain.TradeStats
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{s: domain.TradeStats{TotalPnL: decimal.Zero}}
}

// SpreadDetected counts an opportunity that passed detection and the
// cooldown gate. Scans refused by cooldown are not counted.
func (c *Collector) SpreadDetected() {
	c.mu.Lock()
	c.s.SpreadsDetected++
	c.mu.Unlock()
}

// Record folds one execution attempt into the totals. TotalPnL only grows
// on fully hedged executions.
func (c *Collector) Record(result domain.TradeResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.s.TotalTrades++
	if result.Success {
		c.s.SuccessfulTrades++
		c.s.SpreadsExecuted++
		c.s.TotalPnL = c.s.TotalPnL.Add(result.Profit)
	} else {
		c.s.FailedTrades++
	}
}

// Snapshot returns a copy with SuccessRate filled in as a percentage.
func (c *Collector) Snapshot() domain.TradeStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := c.s
	if out.TotalTrades > 0 {
		out.SuccessRate = float64(out.SuccessfulTrades) / float64(out.TotalTrades) * 100
	}
	return out
}
