package models

// Indicator names used as IndicatorVector keys.
const (
	IndRSI             = "RSI"
	IndMACD            = "MACD"
	IndMACDSignal      = "MACD_Signal"
	IndMACDHist        = "MACD_Hist"
	IndSMAShort        = "SMA_short"
	IndSMALong         = "SMA_long"
	IndBollingerUpper  = "Bollinger_Upper"
	IndBollingerMiddle = "Bollinger_Middle"
	IndBollingerLower  = "Bollinger_Lower"
)

// IndicatorVector maps indicator name to its value at one bar.
// A key is absent while the bar sits inside the indicator's lookback
// window; values are never NaN or Inf.
type IndicatorVector map[string]float64

// Has reports whether the indicator has a value at this bar.
func (v IndicatorVector) Has(name string) bool {
	_, ok := v[name]
	return ok
}

// Clone returns an independent copy of the vector.
func (v IndicatorVector) Clone() IndicatorVector {
	out := make(IndicatorVector, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// SignalState is the discrete classification of one indicator's value.
type SignalState string

const (
	StateOversold   SignalState = "OVERSOLD"
	StateOverbought SignalState = "OVERBOUGHT"
	StateNeutral    SignalState = "NEUTRAL"
	StateBullish    SignalState = "BULLISH"
	StateBearish    SignalState = "BEARISH"
)
