package fusion

import (
	"testing"

	"QuantLab/internal/domain/models"
)

func newTestFuser(t *testing.T) *Fuser {
	t.Helper()
	f, err := NewFuser(DefaultConfig())
	if err != nil {
		t.Fatalf("new fuser: %v", err)
	}
	return f
}

func TestClassify(t *testing.T) {
	f := newTestFuser(t)

	vec := models.IndicatorVector{
		models.IndRSI:      25,
		models.IndMACD:     1.5,
		models.IndSMAShort: 105,
		models.IndSMALong:  100,
	}
	states := f.Classify(vec)
	if states[GroupRSI] != models.StateOversold {
		t.Fatalf("RSI state: got %s", states[GroupRSI])
	}
	if states[GroupMACD] != models.StateBullish {
		t.Fatalf("MACD state: got %s", states[GroupMACD])
	}
	if states[GroupSMA] != models.StateBullish {
		t.Fatalf("SMA state: got %s", states[GroupSMA])
	}
}

func TestClassifyThresholdsAreExclusive(t *testing.T) {
	f := newTestFuser(t)

	// Exactly on a threshold stays neutral, zero MACD reads bearish.
	states := f.Classify(models.IndicatorVector{models.IndRSI: 30})
	if states[GroupRSI] != models.StateNeutral {
		t.Fatalf("RSI at oversold threshold: got %s", states[GroupRSI])
	}
	states = f.Classify(models.IndicatorVector{models.IndRSI: 70})
	if states[GroupRSI] != models.StateNeutral {
		t.Fatalf("RSI at overbought threshold: got %s", states[GroupRSI])
	}
	states = f.Classify(models.IndicatorVector{models.IndMACD: 0})
	if states[GroupMACD] != models.StateBearish {
		t.Fatalf("MACD at zero: got %s", states[GroupMACD])
	}
	states = f.Classify(models.IndicatorVector{models.IndSMAShort: 100, models.IndSMALong: 100})
	if states[GroupSMA] != models.StateBearish {
		t.Fatalf("equal SMAs: got %s", states[GroupSMA])
	}
}

func TestClassifyOmitsMissingGroups(t *testing.T) {
	f := newTestFuser(t)

	states := f.Classify(models.IndicatorVector{models.IndRSI: 50, models.IndSMAShort: 100})
	if len(states) != 1 {
		t.Fatalf("states: got %v, want RSI only", states)
	}
	if _, ok := states[GroupSMA]; ok {
		t.Fatalf("SMA classified with the long leg missing")
	}
}

func TestFuse(t *testing.T) {
	f := newTestFuser(t)

	cases := []struct {
		name       string
		vec        models.IndicatorVector
		action     models.Action
		confidence float64
	}{
		{
			name: "unanimous buy",
			vec: models.IndicatorVector{
				models.IndRSI: 25, models.IndMACD: 1.5,
				models.IndSMAShort: 105, models.IndSMALong: 100,
			},
			action:     models.ActionBuy,
			confidence: 10,
		},
		{
			name: "majority buy",
			vec: models.IndicatorVector{
				models.IndRSI: 25, models.IndMACD: 1.5,
				models.IndSMAShort: 95, models.IndSMALong: 100,
			},
			action:     models.ActionBuy,
			confidence: 3.3, // margin 1 of 3 voters
		},
		{
			name: "unanimous sell",
			vec: models.IndicatorVector{
				models.IndRSI: 75, models.IndMACD: -0.4,
				models.IndSMAShort: 95, models.IndSMALong: 100,
			},
			action:     models.ActionSell,
			confidence: 10,
		},
		{
			name: "neutral rsi dilutes confidence",
			vec: models.IndicatorVector{
				models.IndRSI: 50, models.IndMACD: 1.5,
				models.IndSMAShort: 105, models.IndSMALong: 100,
			},
			action:     models.ActionBuy,
			confidence: 6.7, // margin 2 of 3 voters
		},
		{
			name: "tie holds with zero confidence",
			vec: models.IndicatorVector{
				models.IndRSI: 50, models.IndMACD: 1.5,
				models.IndSMAShort: 95, models.IndSMALong: 100,
			},
			action:     models.ActionHold,
			confidence: 0,
		},
		{
			name:       "below quorum holds",
			vec:        models.IndicatorVector{models.IndRSI: 25},
			action:     models.ActionHold,
			confidence: 0,
		},
		{
			name:       "empty vector holds",
			vec:        models.IndicatorVector{},
			action:     models.ActionHold,
			confidence: 0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := f.Fuse(tc.vec)
			if d.Action != tc.action {
				t.Fatalf("action: got %s, want %s", d.Action, tc.action)
			}
			if d.Confidence != tc.confidence {
				t.Fatalf("confidence: got %v, want %v", d.Confidence, tc.confidence)
			}
		})
	}
}

func TestFuseDeterministic(t *testing.T) {
	f := newTestFuser(t)
	vec := models.IndicatorVector{
		models.IndRSI: 25, models.IndMACD: 1.5,
		models.IndSMAShort: 95, models.IndSMALong: 100,
	}
	first := f.Fuse(vec)
	for i := 0; i < 50; i++ {
		if got := f.Fuse(vec); got != first {
			t.Fatalf("run %d: got %+v, want %+v", i, got, first)
		}
	}
}

func TestFuseWithAdvice(t *testing.T) {
	f := newTestFuser(t)

	tied := models.IndicatorVector{
		models.IndRSI: 50, models.IndMACD: 1.5,
		models.IndSMAShort: 95, models.IndSMALong: 100,
	}
	buy := models.Decision{Action: models.ActionBuy, Confidence: 8}

	// Advice breaks a one-one tie: 2 bullish vs 1 bearish of 4 voters.
	d := f.FuseWithAdvice(tied, &buy)
	if d.Action != models.ActionBuy {
		t.Fatalf("action: got %s, want BUY", d.Action)
	}
	if d.Confidence != 2.5 {
		t.Fatalf("confidence: got %v, want 2.5", d.Confidence)
	}

	// A holding adviser still joins the denominator.
	allBull := models.IndicatorVector{
		models.IndRSI: 25, models.IndMACD: 1.5,
		models.IndSMAShort: 105, models.IndSMALong: 100,
	}
	hold := models.Decision{Action: models.ActionHold}
	d = f.FuseWithAdvice(allBull, &hold)
	if d.Action != models.ActionBuy || d.Confidence != 7.5 {
		t.Fatalf("got %+v, want BUY 7.5", d)
	}

	// Advice never decides without an indicator quorum.
	d = f.FuseWithAdvice(models.IndicatorVector{}, &buy)
	if d.Action != models.ActionHold || d.Confidence != 0 {
		t.Fatalf("got %+v, want HOLD 0", d)
	}
	d = f.FuseWithAdvice(models.IndicatorVector{models.IndRSI: 25}, &buy)
	if d.Action != models.ActionHold || d.Confidence != 0 {
		t.Fatalf("got %+v, want HOLD 0", d)
	}
}

func TestConfigValidate(t *testing.T) {
	bad := []func(*Config){
		func(c *Config) { c.RSIOversold = 0 },
		func(c *Config) { c.RSIOverbought = 100 },
		func(c *Config) { c.RSIOversold, c.RSIOverbought = 70, 30 },
		func(c *Config) { c.MinIndicators = 0 },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
}
