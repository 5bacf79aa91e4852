package backtest

import (
	"errors"
	"fmt"
	"time"

	"QuantLab/internal/domain/models"
)

var (
	ErrNoBars     = errors.New("no bars to simulate")
	ErrMisaligned = errors.New("decisions not aligned with bars")
	ErrBadPrice   = errors.New("non-positive close price")
)

// Config holds the execution and annualization parameters of a run.
// Commission is the proportional fee charged on each fill, so 0.001
// means ten basis points per side. PeriodsPerYear scales per-bar
// returns when annualizing the Sharpe ratio (252 for daily bars).
type Config struct {
	InitialCapital float64 `yaml:"initial_capital"`
	Commission     float64 `yaml:"commission"`
	PeriodsPerYear int     `yaml:"periods_per_year"`
	RiskFreeRate   float64 `yaml:"risk_free_rate"`
}

func DefaultConfig() Config {
	return Config{
		InitialCapital: 10000,
		Commission:     0,
		PeriodsPerYear: 252,
		RiskFreeRate:   0,
	}
}

func (c Config) Validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("initial_capital must be positive, got %v", c.InitialCapital)
	}
	if c.Commission < 0 || c.Commission >= 1 {
		return fmt.Errorf("commission must lie in [0, 1), got %v", c.Commission)
	}
	if c.PeriodsPerYear < 1 {
		return fmt.Errorf("periods_per_year must be at least 1, got %d", c.PeriodsPerYear)
	}
	if c.RiskFreeRate < 0 {
		return fmt.Errorf("risk_free_rate must not be negative, got %v", c.RiskFreeRate)
	}
	return nil
}

// Outcome is the raw simulation output before metrics are computed.
type Outcome struct {
	Final  models.Position
	Trades []models.Trade
	Equity []models.EquityPoint
}

// Simulator replays one decision per bar against a single-position
// portfolio. The portfolio is either FLAT (cash only) or LONG (all
// capital converted to fractional shares at the close). BUY while LONG,
// SELL while FLAT and every HOLD are no-ops, so replaying the same
// inputs always yields the same outcome.
type Simulator struct {
	cfg Config
}

func NewSimulator(cfg Config) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("backtest config: %w", err)
	}
	return &Simulator{cfg: cfg}, nil
}

// Run walks the bars in order, applying decisions[i] at bars[i].Close.
// Fills happen at the close of the signal bar. A position still open
// after the last decision is liquidated at the final close, so the
// outcome always ends FLAT and the last equity point equals final cash.
func (s *Simulator) Run(bars []models.Bar, decisions []models.Decision) (*Outcome, error) {
	if len(bars) == 0 {
		return nil, ErrNoBars
	}
	if len(decisions) != len(bars) {
		return nil, fmt.Errorf("%w: %d bars, %d decisions", ErrMisaligned, len(bars), len(decisions))
	}

	pos := models.Position{State: models.PositionFlat, Cash: s.cfg.InitialCapital}
	var costBasis float64
	trades := make([]models.Trade, 0)
	equity := make([]models.EquityPoint, 0, len(bars))

	last := len(bars) - 1
	for i, bar := range bars {
		if bar.Close <= 0 {
			return nil, fmt.Errorf("%w: bar %d close %v", ErrBadPrice, i, bar.Close)
		}

		switch decisions[i].Action {
		case models.ActionBuy:
			if pos.State == models.PositionFlat {
				costBasis = pos.Cash
				invested := pos.Cash * (1 - s.cfg.Commission)
				pos.Shares = invested / bar.Close
				pos.Cash = 0
				pos.EntryPrice = bar.Close
				pos.EntryTime = bar.Timestamp
				pos.State = models.PositionLong
			}
		case models.ActionSell:
			if pos.State == models.PositionLong {
				trades = append(trades, s.liquidate(&pos, bar, costBasis))
			}
		}

		if i == last && pos.State == models.PositionLong {
			trades = append(trades, s.liquidate(&pos, bar, costBasis))
		}

		equity = append(equity, models.EquityPoint{
			Timestamp: bar.Timestamp,
			Value:     pos.Cash + pos.Shares*bar.Close,
		})
	}

	return &Outcome{Final: pos, Trades: trades, Equity: equity}, nil
}

// liquidate closes the open position at the bar's close and returns the
// completed round trip. The profit is measured against the cash that
// entered the position, so both commissions land inside PnL.
func (s *Simulator) liquidate(pos *models.Position, bar models.Bar, costBasis float64) models.Trade {
	proceeds := pos.Shares * bar.Close * (1 - s.cfg.Commission)
	trade := models.Trade{
		EntryTime:  pos.EntryTime,
		EntryPrice: pos.EntryPrice,
		ExitTime:   bar.Timestamp,
		ExitPrice:  bar.Close,
		Shares:     pos.Shares,
		PnL:        proceeds - costBasis,
		PnLPct:     (proceeds - costBasis) / costBasis * 100,
	}
	pos.Cash = proceeds
	pos.Shares = 0
	pos.EntryPrice = 0
	pos.EntryTime = time.Time{}
	pos.State = models.PositionFlat
	return trade
}
