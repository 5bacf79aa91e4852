package backtest

import (
	"fmt"
	"math"

	"QuantLab/internal/domain/models"
)

// Analyzer condenses a simulation outcome into summary metrics. Every
// metric is finite: empty or degenerate outcomes fall back to zero
// values instead of NaN or Inf.
type Analyzer struct {
	cfg Config
}

func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("backtest config: %w", err)
	}
	return &Analyzer{cfg: cfg}, nil
}

// Analyze computes the performance summary of one outcome. Identity
// fields (run id, symbol, strategy) are left for the caller to fill.
func (a *Analyzer) Analyze(initialCapital float64, out *Outcome) *models.BacktestResult {
	result := &models.BacktestResult{
		InitialCapital: initialCapital,
		FinalValue:     initialCapital,
		Trades:         out.Trades,
		EquityCurve:    out.Equity,
	}
	if len(out.Equity) > 0 {
		result.FinalValue = out.Equity[len(out.Equity)-1].Value
	}
	result.TotalReturn = result.FinalValue - initialCapital
	result.TotalReturnPct = result.TotalReturn / initialCapital * 100

	result.TotalTrades = len(out.Trades)
	var profitSum, lossSum float64
	for _, t := range out.Trades {
		if t.PnL > 0 {
			result.WinningTrades++
			profitSum += t.PnL
		} else {
			result.LosingTrades++
			lossSum += t.PnL
		}
	}
	if result.TotalTrades > 0 {
		result.WinRate = float64(result.WinningTrades) / float64(result.TotalTrades) * 100
	}
	if result.WinningTrades > 0 {
		result.AvgProfit = profitSum / float64(result.WinningTrades)
	}
	if result.LosingTrades > 0 {
		result.AvgLoss = lossSum / float64(result.LosingTrades)
	}

	result.MaxDrawdown = maxDrawdown(out.Equity)
	result.SharpeRatio = a.sharpe(out.Equity)
	return result
}

// maxDrawdown returns the largest percentage decline from a running
// peak of the equity curve, as a non-negative percentage.
func maxDrawdown(equity []models.EquityPoint) float64 {
	var peak, worst float64
	for _, p := range equity {
		if p.Value > peak {
			peak = p.Value
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - p.Value) / peak * 100; dd > worst {
			worst = dd
		}
	}
	return worst
}

// sharpe annualizes the mean excess per-bar return over its sample
// standard deviation. Curves too short to produce two returns, or with
// zero variance, score 0.
func (a *Analyzer) sharpe(equity []models.EquityPoint) float64 {
	returns := make([]float64, 0, len(equity))
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Value
		if prev <= 0 {
			continue
		}
		returns = append(returns, equity[i].Value/prev-1)
	}
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var ss float64
	for _, r := range returns {
		ss += (r - mean) * (r - mean)
	}
	std := math.Sqrt(ss / float64(len(returns)-1))
	if std == 0 {
		return 0
	}

	periods := float64(a.cfg.PeriodsPerYear)
	excess := mean - a.cfg.RiskFreeRate/periods
	return excess / std * math.Sqrt(periods)
}
