package indicator

import (
	"errors"
	"math"
	"testing"
	"time"

	"QuantLab/internal/domain/models"
)

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.IsNaN(got) != math.IsNaN(want) {
		t.Fatalf("%s: got %v, want %v", label, got, want)
	}
	if math.Abs(got-want) > tol {
		t.Fatalf("%s: got %.8f, want %.8f (tol %g)", label, got, want, tol)
	}
}

var testEpoch = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func bar(day int, close float64) models.Bar {
	return models.Bar{
		Timestamp: testEpoch.AddDate(0, 0, day),
		Open:      close,
		High:      close,
		Low:       close,
		Close:     close,
		Volume:    1000,
	}
}

func barsFromCloses(closes ...float64) []models.Bar {
	out := make([]models.Bar, len(closes))
	for i, c := range closes {
		out[i] = bar(i, c)
	}
	return out
}

func TestSMASeries(t *testing.T) {
	got := smaSeries([]float64{1, 2, 3, 4, 5}, 3)

	for i := 0; i < 2; i++ {
		if !math.IsNaN(got[i]) {
			t.Fatalf("sma[%d]: expected no value inside lookback, got %v", i, got[i])
		}
	}
	// (1+2+3)/3, (2+3+4)/3, (3+4+5)/3
	assertClose(t, "sma[2]", got[2], 2, 1e-12)
	assertClose(t, "sma[3]", got[3], 3, 1e-12)
	assertClose(t, "sma[4]", got[4], 4, 1e-12)
}

func TestRSISeries(t *testing.T) {
	// deltas: +1, +1, -1, +2
	got := rsiSeries([]float64{10, 11, 12, 11, 13}, 3)

	for i := 0; i < 3; i++ {
		if !math.IsNaN(got[i]) {
			t.Fatalf("rsi[%d]: expected no value inside lookback, got %v", i, got[i])
		}
	}
	// window {+1,+1,-1}: gains 2, losses 1, rs 2 -> 100-100/3
	assertClose(t, "rsi[3]", got[3], 66.6666667, 1e-6)
	// window {+1,-1,+2}: gains 3, losses 1, rs 3 -> 75
	assertClose(t, "rsi[4]", got[4], 75, 1e-9)
}

func TestRSISaturatesWithoutLosses(t *testing.T) {
	rising := rsiSeries([]float64{1, 2, 3, 4, 5}, 3)
	assertClose(t, "rsi rising", rising[4], 100, 1e-12)

	flat := rsiSeries([]float64{5, 5, 5, 5, 5}, 3)
	assertClose(t, "rsi flat", flat[4], 100, 1e-12)
}

func TestRSIStaysInBounds(t *testing.T) {
	closes := []float64{10, 12, 9, 14, 8, 15, 7, 16, 6, 17, 5, 18, 4, 19, 3}
	got := rsiSeries(closes, 4)
	for i, v := range got {
		if math.IsNaN(v) {
			continue
		}
		if v < 0 || v > 100 {
			t.Fatalf("rsi[%d] = %v out of [0,100]", i, v)
		}
	}
}

func TestEMASeries(t *testing.T) {
	// k = 2/3: 1, 5/3, 23/9
	got := emaSeries([]float64{1, 2, 3}, 2)
	assertClose(t, "ema[0]", got[0], 1, 1e-12)
	assertClose(t, "ema[1]", got[1], 5.0/3.0, 1e-12)
	assertClose(t, "ema[2]", got[2], 23.0/9.0, 1e-12)
}

func TestMACDSeries(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6}
	macd, sig, hist := macdSeries(closes, 2, 3, 2)

	for i := 0; i < 2; i++ {
		if !math.IsNaN(macd[i]) || !math.IsNaN(sig[i]) || !math.IsNaN(hist[i]) {
			t.Fatalf("macd family at %d: expected no value inside slow lookback", i)
		}
	}
	// emaFast(2): 1, 5/3, 23/9, 95/27, 365/81, 1337/243
	// emaSlow(3): 1, 1.5, 2.25, 3.125, 4.0625, 5.03125
	assertClose(t, "macd[2]", macd[2], 0.305556, 1e-6)
	assertClose(t, "macd[3]", macd[3], 0.393519, 1e-6)
	assertClose(t, "macd[4]", macd[4], 0.443673, 1e-6)
	assertClose(t, "macd[5]", macd[5], 0.470808, 1e-6)
	// signal seeds at macd[2], then k = 2/3
	assertClose(t, "sig[2]", sig[2], 0.305556, 1e-6)
	assertClose(t, "sig[3]", sig[3], 0.364198, 1e-6)
	assertClose(t, "sig[5]", sig[5], 0.452932, 1e-6)
	assertClose(t, "hist[5]", hist[5], 0.470808-0.452932, 1e-6)
}

func TestBollingerSeries(t *testing.T) {
	upper, middle, lower := bollingerSeries([]float64{1, 2, 3, 4, 5}, 3, 2)

	if !math.IsNaN(upper[1]) || !math.IsNaN(lower[1]) {
		t.Fatalf("bollinger at 1: expected no value inside lookback")
	}
	// window {1,2,3}: mean 2, sample std 1
	assertClose(t, "middle[2]", middle[2], 2, 1e-12)
	assertClose(t, "upper[2]", upper[2], 4, 1e-12)
	assertClose(t, "lower[2]", lower[2], 0, 1e-12)
	// window {2,3,4}: mean 3, sample std 1
	assertClose(t, "upper[3]", upper[3], 5, 1e-12)
	assertClose(t, "lower[3]", lower[3], 1, 1e-12)
}

func TestBollingerCollapsesOnFlatSeries(t *testing.T) {
	upper, middle, lower := bollingerSeries([]float64{5, 5, 5, 5}, 3, 2)
	assertClose(t, "upper", upper[3], 5, 1e-12)
	assertClose(t, "middle", middle[3], 5, 1e-12)
	assertClose(t, "lower", lower[3], 5, 1e-12)
}

func TestEngineComputeWarmupAndPresence(t *testing.T) {
	cfg := DefaultConfig()
	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	bars := make([]models.Bar, 60)
	for i := range bars {
		bars[i] = bar(i, 100+float64(i))
	}
	vectors, err := engine.Compute(bars)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(vectors) != len(bars) {
		t.Fatalf("vectors: got %d, want %d", len(vectors), len(bars))
	}

	if len(vectors[0]) != 0 {
		t.Fatalf("vector[0]: expected empty, got %v", vectors[0])
	}
	if vectors[13].Has(models.IndRSI) {
		t.Fatalf("RSI present before lookback filled")
	}
	if !vectors[14].Has(models.IndRSI) {
		t.Fatalf("RSI absent at first valid bar")
	}
	if vectors[24].Has(models.IndMACD) {
		t.Fatalf("MACD present before slow window filled")
	}
	if !vectors[25].Has(models.IndMACD) {
		t.Fatalf("MACD absent at first valid bar")
	}
	if vectors[48].Has(models.IndSMALong) {
		t.Fatalf("SMA_long present before lookback filled")
	}
	if !vectors[49].Has(models.IndSMALong) {
		t.Fatalf("SMA_long absent at first valid bar")
	}

	// From the longest lookback on, every key is present and every value finite.
	longest := cfg.LongestLookback()
	keys := []string{
		models.IndRSI, models.IndMACD, models.IndMACDSignal, models.IndMACDHist,
		models.IndSMAShort, models.IndSMALong,
		models.IndBollingerUpper, models.IndBollingerMiddle, models.IndBollingerLower,
	}
	for i := longest; i < len(vectors); i++ {
		for _, k := range keys {
			v, ok := vectors[i][k]
			if !ok {
				t.Fatalf("vector[%d]: missing %s", i, k)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("vector[%d] %s: non-finite %v", i, k, v)
			}
		}
		up, mid, low := vectors[i][models.IndBollingerUpper], vectors[i][models.IndBollingerMiddle], vectors[i][models.IndBollingerLower]
		if up < mid || mid < low {
			t.Fatalf("vector[%d]: band ordering violated %v/%v/%v", i, up, mid, low)
		}
	}
}

func TestEngineComputeDeterministic(t *testing.T) {
	engine, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	bars := make([]models.Bar, 80)
	for i := range bars {
		bars[i] = bar(i, 100+10*math.Sin(float64(i)/5))
	}

	first, err := engine.Compute(bars)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	second, err := engine.Compute(bars)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	for i := range first {
		if len(first[i]) != len(second[i]) {
			t.Fatalf("vector[%d]: key sets differ", i)
		}
		for k, v := range first[i] {
			if second[i][k] != v {
				t.Fatalf("vector[%d] %s: %v != %v", i, k, v, second[i][k])
			}
		}
	}
}

func TestValidateBars(t *testing.T) {
	valid := barsFromCloses(1, 2, 3)

	cases := []struct {
		name string
		bars []models.Bar
		want error
	}{
		{"empty", nil, ErrNoBars},
		{"duplicate timestamp", []models.Bar{valid[0], valid[0]}, ErrOutOfOrder},
		{"backwards timestamp", []models.Bar{valid[1], valid[0]}, ErrOutOfOrder},
		{"negative close", []models.Bar{bar(0, -1)}, ErrInvalidPrice},
		{"nan close", []models.Bar{bar(0, math.NaN())}, ErrInvalidPrice},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateBars(tc.bars); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}

	t.Run("negative volume", func(t *testing.T) {
		b := bar(0, 10)
		b.Volume = -5
		if err := ValidateBars([]models.Bar{b}); !errors.Is(err, ErrInvalidVolume) {
			t.Fatalf("got %v, want ErrInvalidVolume", err)
		}
	})
	t.Run("high below low", func(t *testing.T) {
		b := bar(0, 10)
		b.High, b.Low = 9, 11
		if err := ValidateBars([]models.Bar{b}); !errors.Is(err, ErrHighBelowLow) {
			t.Fatalf("got %v, want ErrHighBelowLow", err)
		}
	})
	t.Run("valid", func(t *testing.T) {
		if err := ValidateBars(valid); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero rsi", func(c *Config) { c.RSIPeriod = 0 }},
		{"fast >= slow", func(c *Config) { c.MACDFast = 26 }},
		{"short >= long", func(c *Config) { c.SMAShort = 50 }},
		{"bollinger too small", func(c *Config) { c.BollingerPeriod = 1 }},
		{"non-positive k", func(c *Config) { c.BollingerK = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
}
