package fusion

import (
	"fmt"
	"math"

	"QuantLab/internal/domain/models"
)

// Signal group labels used in classification maps and decision records.
const (
	GroupRSI  = "RSI"
	GroupMACD = "MACD"
	GroupSMA  = "SMA"
)

// Config holds the thresholds for turning indicator values into signal states.
type Config struct {
	RSIOversold   float64 `yaml:"rsi_oversold"`
	RSIOverbought float64 `yaml:"rsi_overbought"`
	MinIndicators int     `yaml:"min_indicators"`
}

func DefaultConfig() Config {
	return Config{
		RSIOversold:   30,
		RSIOverbought: 70,
		MinIndicators: 2,
	}
}

func (c Config) Validate() error {
	if c.RSIOversold <= 0 || c.RSIOverbought >= 100 {
		return fmt.Errorf("rsi thresholds must lie inside (0, 100)")
	}
	if c.RSIOversold >= c.RSIOverbought {
		return fmt.Errorf("rsi_oversold (%v) must be below rsi_overbought (%v)", c.RSIOversold, c.RSIOverbought)
	}
	if c.MinIndicators < 1 {
		return fmt.Errorf("min_indicators must be at least 1, got %d", c.MinIndicators)
	}
	return nil
}

// Fuser combines per-indicator signal states into a single trading decision.
// It is pure: the same vector always yields the same decision.
type Fuser struct {
	cfg Config
}

func NewFuser(cfg Config) (*Fuser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("fusion config: %w", err)
	}
	return &Fuser{cfg: cfg}, nil
}

// Config returns the thresholds the fuser was built with.
func (f *Fuser) Config() Config { return f.cfg }

// Classify maps each indicator group with values present to its signal state.
// Groups whose inputs are missing from the vector are omitted.
func (f *Fuser) Classify(vec models.IndicatorVector) map[string]models.SignalState {
	states := make(map[string]models.SignalState, 3)

	if rsi, ok := vec[models.IndRSI]; ok {
		switch {
		case rsi < f.cfg.RSIOversold:
			states[GroupRSI] = models.StateOversold
		case rsi > f.cfg.RSIOverbought:
			states[GroupRSI] = models.StateOverbought
		default:
			states[GroupRSI] = models.StateNeutral
		}
	}
	if macd, ok := vec[models.IndMACD]; ok {
		if macd > 0 {
			states[GroupMACD] = models.StateBullish
		} else {
			states[GroupMACD] = models.StateBearish
		}
	}
	short, okShort := vec[models.IndSMAShort]
	long, okLong := vec[models.IndSMALong]
	if okShort && okLong {
		if short > long {
			states[GroupSMA] = models.StateBullish
		} else {
			states[GroupSMA] = models.StateBearish
		}
	}
	return states
}

// Fuse votes across the available indicator groups and returns BUY, SELL or
// HOLD with a confidence in [0, 10]. Vectors with fewer than MinIndicators
// available groups always yield HOLD with confidence 0.
func (f *Fuser) Fuse(vec models.IndicatorVector) models.Decision {
	return f.decide(f.Classify(vec), nil)
}

// FuseWithAdvice folds one external advisory decision into the vote. The
// advice counts as a single extra voter and never decides on its own: when
// the indicator groups cannot form a quorum the advice is ignored.
func (f *Fuser) FuseWithAdvice(vec models.IndicatorVector, advice *models.Decision) models.Decision {
	return f.decide(f.Classify(vec), advice)
}

func (f *Fuser) decide(states map[string]models.SignalState, advice *models.Decision) models.Decision {
	available := len(states)
	if available < f.cfg.MinIndicators {
		return models.Decision{Action: models.ActionHold, Confidence: 0}
	}

	var bullish, bearish int
	for _, state := range states {
		switch state {
		case models.StateOversold, models.StateBullish:
			bullish++
		case models.StateOverbought, models.StateBearish:
			bearish++
		}
	}
	if advice != nil {
		available++
		switch advice.Action {
		case models.ActionBuy:
			bullish++
		case models.ActionSell:
			bearish++
		}
	}

	confidence := math.Round(math.Abs(float64(bullish-bearish))/float64(available)*100) / 10
	switch {
	case bullish > bearish:
		return models.Decision{Action: models.ActionBuy, Confidence: confidence}
	case bearish > bullish:
		return models.Decision{Action: models.ActionSell, Confidence: confidence}
	default:
		return models.Decision{Action: models.ActionHold, Confidence: confidence}
	}
}
