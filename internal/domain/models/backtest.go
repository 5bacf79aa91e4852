package models

import "time"

// PositionState is the simulator's state machine state.
type PositionState string

const (
	PositionFlat PositionState = "FLAT"
	PositionLong PositionState = "LONG"
)

// Position is the simulator's mutable state: cash plus at most one open
// long position. No shorting, no leverage.
type Position struct {
	State      PositionState `json:"state"`
	Cash       float64       `json:"cash"`
	Shares     float64       `json:"shares"`
	EntryPrice float64       `json:"entry_price,omitempty"`
	EntryTime  time.Time     `json:"entry_time,omitempty"`
}

// Trade is one closed round trip, created when a position transitions
// open to closed.
type Trade struct {
	EntryTime  time.Time `json:"entry_time"`
	EntryPrice float64   `json:"entry_price"`
	ExitTime   time.Time `json:"exit_time"`
	ExitPrice  float64   `json:"exit_price"`
	Shares     float64   `json:"shares"`
	PnL        float64   `json:"pnl"`
	PnLPct     float64   `json:"pnl_pct"`
}

// EquityPoint is the mark-to-market portfolio value at one bar.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// BacktestResult is the immutable summary of one simulation run.
// All metric fields are finite; degenerate inputs resolve to sentinel
// values rather than NaN or Inf.
type BacktestResult struct {
	RunID          string        `json:"run_id"`
	Symbol         string        `json:"symbol"`
	Strategy       string        `json:"strategy"`
	CreatedAt      time.Time     `json:"created_at"`
	InitialCapital float64       `json:"initial_capital"`
	FinalValue     float64       `json:"final_value"`
	TotalReturn    float64       `json:"total_return"`
	TotalReturnPct float64       `json:"total_return_pct"`
	TotalTrades    int           `json:"total_trades"`
	WinningTrades  int           `json:"winning_trades"`
	LosingTrades   int           `json:"losing_trades"`
	WinRate        float64       `json:"win_rate"`
	AvgProfit      float64       `json:"avg_profit"`
	AvgLoss        float64       `json:"avg_loss"`
	MaxDrawdown    float64       `json:"max_drawdown"`
	SharpeRatio    float64       `json:"sharpe_ratio"`
	Trades         []Trade       `json:"trades"`
	EquityCurve    []EquityPoint `json:"equity_curve"`
}
