package strategy

import (
	"testing"
	"time"

	"QuantLab/internal/domain/models"
	domsvc "QuantLab/internal/domain/service"
	"QuantLab/internal/services/backtest"
	"QuantLab/internal/services/fusion"
	"QuantLab/internal/services/indicator"
)

func newStrategy(t *testing.T, name string) domsvc.Strategy {
	t.Helper()
	fuser, err := fusion.NewFuser(fusion.DefaultConfig())
	if err != nil {
		t.Fatalf("new fuser: %v", err)
	}
	s, err := New(name, fuser)
	if err != nil {
		t.Fatalf("new strategy %s: %v", name, err)
	}
	return s
}

func TestNewRejectsUnknownName(t *testing.T) {
	fuser, err := fusion.NewFuser(fusion.DefaultConfig())
	if err != nil {
		t.Fatalf("new fuser: %v", err)
	}
	if _, err := New("momentum", fuser); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
	for _, name := range Names() {
		if _, err := New(name, fuser); err != nil {
			t.Fatalf("registered strategy %s: %v", name, err)
		}
	}
}

func TestRSIMACDStrategy(t *testing.T) {
	s := newStrategy(t, NameRSIMACD)

	cases := []struct {
		name   string
		vec    models.IndicatorVector
		action models.Action
	}{
		{
			"oversold with momentum buys",
			models.IndicatorVector{models.IndRSI: 25, models.IndMACD: 0.5, models.IndMACDSignal: 0.2},
			models.ActionBuy,
		},
		{
			"oversold without momentum holds",
			models.IndicatorVector{models.IndRSI: 25, models.IndMACD: 0.1, models.IndMACDSignal: 0.2},
			models.ActionHold,
		},
		{
			"overbought with cross down sells",
			models.IndicatorVector{models.IndRSI: 75, models.IndMACD: -0.1, models.IndMACDSignal: 0.2},
			models.ActionSell,
		},
		{
			"neutral rsi holds",
			models.IndicatorVector{models.IndRSI: 50, models.IndMACD: 0.5, models.IndMACDSignal: 0.2},
			models.ActionHold,
		},
		{
			"missing macd holds",
			models.IndicatorVector{models.IndRSI: 25},
			models.ActionHold,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.Decide(tc.vec); got.Action != tc.action {
				t.Fatalf("got %s, want %s", got.Action, tc.action)
			}
		})
	}
}

func TestMACrossoverStrategy(t *testing.T) {
	s := newStrategy(t, NameMACrossover)

	if got := s.Decide(models.IndicatorVector{models.IndSMAShort: 105, models.IndSMALong: 100}); got.Action != models.ActionBuy {
		t.Fatalf("short above long: got %s, want BUY", got.Action)
	}
	if got := s.Decide(models.IndicatorVector{models.IndSMAShort: 95, models.IndSMALong: 100}); got.Action != models.ActionSell {
		t.Fatalf("short below long: got %s, want SELL", got.Action)
	}
	if got := s.Decide(models.IndicatorVector{models.IndSMAShort: 100, models.IndSMALong: 100}); got.Action != models.ActionHold {
		t.Fatalf("equal averages: got %s, want HOLD", got.Action)
	}
	if got := s.Decide(models.IndicatorVector{models.IndSMAShort: 100}); got.Action != models.ActionHold {
		t.Fatalf("missing long leg: got %s, want HOLD", got.Action)
	}
}

func TestCombinedStrategy(t *testing.T) {
	s := newStrategy(t, NameCombined)

	buy := models.IndicatorVector{
		models.IndRSI: 35, models.IndMACD: 0.5, models.IndMACDSignal: 0.2,
		models.IndSMAShort: 105, models.IndSMALong: 100,
	}
	if got := s.Decide(buy); got.Action != models.ActionBuy {
		t.Fatalf("all aligned bullish: got %s, want BUY", got.Action)
	}

	sell := models.IndicatorVector{
		models.IndRSI: 65, models.IndMACD: -0.5, models.IndMACDSignal: -0.2,
		models.IndSMAShort: 95, models.IndSMALong: 100,
	}
	if got := s.Decide(sell); got.Action != models.ActionSell {
		t.Fatalf("all aligned bearish: got %s, want SELL", got.Action)
	}

	// One disagreeing leg blocks the trade.
	mixed := models.IndicatorVector{
		models.IndRSI: 35, models.IndMACD: 0.5, models.IndMACDSignal: 0.2,
		models.IndSMAShort: 95, models.IndSMALong: 100,
	}
	if got := s.Decide(mixed); got.Action != models.ActionHold {
		t.Fatalf("averages disagree: got %s, want HOLD", got.Action)
	}
	if got := s.Decide(models.IndicatorVector{models.IndRSI: 35}); got.Action != models.ActionHold {
		t.Fatalf("sparse vector: got %s, want HOLD", got.Action)
	}
}

func TestFusedStrategyDelegates(t *testing.T) {
	s := newStrategy(t, NameFused)

	vec := models.IndicatorVector{
		models.IndRSI: 25, models.IndMACD: 1.5,
		models.IndSMAShort: 105, models.IndSMALong: 100,
	}
	got := s.Decide(vec)
	if got.Action != models.ActionBuy || got.Confidence != 10 {
		t.Fatalf("got %+v, want BUY with confidence 10", got)
	}
	if got := s.Decide(models.IndicatorVector{}); got.Action != models.ActionHold {
		t.Fatalf("empty vector: got %s, want HOLD", got.Action)
	}
}

// A steadily rising series must never produce a SELL from the fused
// strategy, and riding it must never draw the equity curve down.
func TestFusedNeverSellsIntoRisingSeries(t *testing.T) {
	cfg := indicator.Config{
		RSIPeriod: 5,
		MACDFast:  3, MACDSlow: 7, MACDSignal: 3,
		SMAShort: 3, SMALong: 10,
		BollingerPeriod: 5, BollingerK: 2,
	}
	engine, err := indicator.NewEngine(cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	epoch := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, 30)
	for i := range bars {
		c := 100 + 2*float64(i)
		bars[i] = models.Bar{Timestamp: epoch.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	vectors, err := engine.Compute(bars)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	s := newStrategy(t, NameFused)
	decisions := make([]models.Decision, len(bars))
	for i, vec := range vectors {
		decisions[i] = s.Decide(vec)
		if decisions[i].Action == models.ActionSell {
			t.Fatalf("bar %d: SELL on a rising series", i)
		}
	}

	sim, err := backtest.NewSimulator(backtest.DefaultConfig())
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	out, err := sim.Run(bars, decisions)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	analyzer, err := backtest.NewAnalyzer(backtest.DefaultConfig())
	if err != nil {
		t.Fatalf("new analyzer: %v", err)
	}
	result := analyzer.Analyze(backtest.DefaultConfig().InitialCapital, out)
	if result.MaxDrawdown != 0 {
		t.Fatalf("max drawdown: got %v, want 0", result.MaxDrawdown)
	}
	if result.FinalValue < result.InitialCapital {
		t.Fatalf("final value %v below initial %v", result.FinalValue, result.InitialCapital)
	}
}
