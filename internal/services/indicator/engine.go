package indicator

import (
	"errors"
	"fmt"
	"math"

	"QuantLab/internal/domain/models"
)

// Validation errors returned at the engine boundary. The engine rejects
// malformed input; it never repairs it.
var (
	ErrNoBars        = errors.New("bar series is empty")
	ErrOutOfOrder    = errors.New("bar timestamps must be strictly increasing")
	ErrInvalidPrice  = errors.New("bar price is negative or not finite")
	ErrInvalidVolume = errors.New("bar volume is negative or not finite")
	ErrHighBelowLow  = errors.New("bar high is below low")
)

// Config holds the indicator windows. All windows are right-aligned: the
// value at bar t depends only on bars at or before t.
type Config struct {
	RSIPeriod       int     `yaml:"rsi_period"`
	MACDFast        int     `yaml:"macd_fast"`
	MACDSlow        int     `yaml:"macd_slow"`
	MACDSignal      int     `yaml:"macd_signal"`
	SMAShort        int     `yaml:"sma_short"`
	SMALong         int     `yaml:"sma_long"`
	BollingerPeriod int     `yaml:"bollinger_period"`
	BollingerK      float64 `yaml:"bollinger_k"`
}

// DefaultConfig returns the standard windows: RSI 14, MACD 12/26/9,
// SMA 20/50, Bollinger 20 with k=2.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:       14,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		SMAShort:        20,
		SMALong:         50,
		BollingerPeriod: 20,
		BollingerK:      2,
	}
}

// Validate checks window ordering and ranges.
func (c Config) Validate() error {
	if c.RSIPeriod < 1 {
		return fmt.Errorf("rsi_period must be >= 1, got %d", c.RSIPeriod)
	}
	if c.MACDFast < 1 || c.MACDSlow < 1 || c.MACDSignal < 1 {
		return fmt.Errorf("macd windows must be >= 1, got %d/%d/%d", c.MACDFast, c.MACDSlow, c.MACDSignal)
	}
	if c.MACDFast >= c.MACDSlow {
		return fmt.Errorf("macd_fast must be < macd_slow, got %d/%d", c.MACDFast, c.MACDSlow)
	}
	if c.SMAShort < 1 || c.SMALong < 1 {
		return fmt.Errorf("sma windows must be >= 1, got %d/%d", c.SMAShort, c.SMALong)
	}
	if c.SMAShort >= c.SMALong {
		return fmt.Errorf("sma_short must be < sma_long, got %d/%d", c.SMAShort, c.SMALong)
	}
	if c.BollingerPeriod < 2 {
		return fmt.Errorf("bollinger_period must be >= 2, got %d", c.BollingerPeriod)
	}
	if c.BollingerK <= 0 {
		return fmt.Errorf("bollinger_k must be > 0, got %v", c.BollingerK)
	}
	return nil
}

// LongestLookback returns the number of bars required before every
// indicator in the vector has a value.
func (c Config) LongestLookback() int {
	longest := c.RSIPeriod + 1
	for _, w := range []int{c.MACDSlow, c.SMAShort, c.SMALong, c.BollingerPeriod} {
		if w > longest {
			longest = w
		}
	}
	return longest
}

// Engine computes one IndicatorVector per bar from an ordered OHLCV series.
// The same bars and config always reproduce the same vectors.
type Engine struct {
	cfg Config
}

// NewEngine validates the config and builds an engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("indicator config: %w", err)
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine's window configuration.
func (e *Engine) Config() Config { return e.cfg }

// Compute validates the series and returns one vector per bar. Keys are
// absent while the bar sits inside the indicator's lookback; no NaN or
// Inf is ever emitted.
func (e *Engine) Compute(bars []models.Bar) ([]models.IndicatorVector, error) {
	if err := ValidateBars(bars); err != nil {
		return nil, err
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	rsi := rsiSeries(closes, e.cfg.RSIPeriod)
	macd, macdSignal, macdHist := macdSeries(closes, e.cfg.MACDFast, e.cfg.MACDSlow, e.cfg.MACDSignal)
	smaShort := smaSeries(closes, e.cfg.SMAShort)
	smaLong := smaSeries(closes, e.cfg.SMALong)
	upper, middle, lower := bollingerSeries(closes, e.cfg.BollingerPeriod, e.cfg.BollingerK)

	vectors := make([]models.IndicatorVector, len(bars))
	for i := range bars {
		v := make(models.IndicatorVector, 9)
		put(v, models.IndRSI, rsi[i])
		put(v, models.IndMACD, macd[i])
		put(v, models.IndMACDSignal, macdSignal[i])
		put(v, models.IndMACDHist, macdHist[i])
		put(v, models.IndSMAShort, smaShort[i])
		put(v, models.IndSMALong, smaLong[i])
		put(v, models.IndBollingerUpper, upper[i])
		put(v, models.IndBollingerMiddle, middle[i])
		put(v, models.IndBollingerLower, lower[i])
		vectors[i] = v
	}
	return vectors, nil
}

// Latest computes vectors for the whole series and returns the last one.
func (e *Engine) Latest(bars []models.Bar) (models.IndicatorVector, error) {
	vectors, err := e.Compute(bars)
	if err != nil {
		return nil, err
	}
	return vectors[len(vectors)-1], nil
}

// ValidateBars rejects empty, unordered, or malformed series.
func ValidateBars(bars []models.Bar) error {
	if len(bars) == 0 {
		return ErrNoBars
	}
	for i, b := range bars {
		if i > 0 && !b.Timestamp.After(bars[i-1].Timestamp) {
			return fmt.Errorf("bar %d: %w", i, ErrOutOfOrder)
		}
		for _, p := range []float64{b.Open, b.High, b.Low, b.Close} {
			if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
				return fmt.Errorf("bar %d: %w", i, ErrInvalidPrice)
			}
		}
		if b.Volume < 0 || math.IsNaN(b.Volume) || math.IsInf(b.Volume, 0) {
			return fmt.Errorf("bar %d: %w", i, ErrInvalidVolume)
		}
		if b.High < b.Low {
			return fmt.Errorf("bar %d: %w", i, ErrHighBelowLow)
		}
	}
	return nil
}

func put(v models.IndicatorVector, name string, val float64) {
	if !math.IsNaN(val) {
		v[name] = val
	}
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
