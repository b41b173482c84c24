package domain

// PerformanceMetrics is derived from a run's trade list and equity curve.
// It is computed state, never authoritative on its own.
type PerformanceMetrics struct {
	TotalTrades  int     `json:"total_trades" db:"total_trades"`
	Wins         int     `json:"wins" db:"wins"`
	Losses       int     `json:"losses" db:"losses"`
	WinRate      float64 `json:"win_rate" db:"win_rate"`
	ProfitFactor float64 `json:"profit_factor" db:"profit_factor"` // +Inf when no losing trades
	SharpeRatio  float64 `json:"sharpe_ratio" db:"sharpe_ratio"`
	MaxDrawdown  float64 `json:"max_drawdown" db:"max_drawdown"` // fraction of the equity peak
	NetPnL       float64 `json:"net_pnl" db:"net_pnl"`
	ROI          float64 `json:"roi" db:"roi"`
}
