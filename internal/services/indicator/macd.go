package indicator

// emaSeries computes a recursive exponential moving average seeded from the
// first value, with multiplier 2/(span+1). Every index has a value; callers
// decide how much warmup to expose.
func emaSeries(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	k := 2.0 / float64(span+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// macdSeries computes MACD = EMA(fast) − EMA(slow) of closes plus the
// signal line (EMA of MACD) and histogram. Values are emitted once the
// slow window has filled; the signal EMA is seeded at the first emitted
// MACD value.
func macdSeries(closes []float64, fast, slow, signal int) (macd, sig, hist []float64) {
	n := len(closes)
	macd, sig, hist = nanSeries(n), nanSeries(n), nanSeries(n)
	if n < slow {
		return macd, sig, hist
	}

	emaFast := emaSeries(closes, fast)
	emaSlow := emaSeries(closes, slow)

	start := slow - 1
	k := 2.0 / float64(signal+1)
	for i := start; i < n; i++ {
		macd[i] = emaFast[i] - emaSlow[i]
		if i == start {
			sig[i] = macd[i]
		} else {
			sig[i] = macd[i]*k + sig[i-1]*(1-k)
		}
		hist[i] = macd[i] - sig[i]
	}
	return macd, sig, hist
}
