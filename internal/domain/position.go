package domain

import "github.com/shopspring/decimal"

// Position is the net signed exposure for one symbol. Positive is long.
type Position struct {
	Symbol    string          `json:"symbol"`
	NetAmount decimal.Decimal `json:"net_amount"`
	AvgPrice  decimal.Decimal `json:"avg_price"`
}

// PerformanceMetrics summarizes recorded trades.
//
// TotalFees is always zero: venue fees are not modelled, so NetProfit equals
// TotalProfit and both are theoretical.
type PerformanceMetrics struct {
	TotalTrades int64           `json:"total_trades"`
	TotalProfit decimal.Decimal `json:"total_profit"`
	TotalFees   decimal.Decimal `json:"total_fees"`
	NetProfit   decimal.Decimal `json:"net_profit"`
	TotalVolume decimal.Decimal `json:"total_volume"`
}

// TradeStats are the running counters aggregated from TradeResults.
type TradeStats struct {
	TotalTrades      int64           `json:"total_trades"`
	SuccessfulTrades int64           `json:"successful_trades"`
	FailedTrades     int64           `json:"failed_trades"`
	TotalPnL         decimal.Decimal `json:"total_pnl"`
	SpreadsDetected  int64           `json:"spreads_detected"`
	SpreadsExecuted  int64           `json:"spreads_executed"`
	SuccessRate      float64         `json:"success_rate"`
}

// EngineStatus is the periodic snapshot the engine publishes for operators.
type EngineStatus struct {
	Symbol      string             `json:"symbol"`
	Running     bool               `json:"running"`
	Position    Position           `json:"position"`
	Stats       TradeStats         `json:"stats"`
	Performance PerformanceMetrics `json:"performance"`
	MakerVenue  string             `json:"maker_venue"`
	TakerVenue  string             `json:"taker_venue"`
	UpdatedAt   int64              `json:"updated_at"`
}
