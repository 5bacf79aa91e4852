package indicator

// rsiSeries computes the Relative Strength Index over close-to-close deltas
// using a simple rolling mean of gains and losses. The first value appears
// at index period (the first delta consumes one bar). A window with zero
// average loss saturates at 100 instead of dividing by zero.
func rsiSeries(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if len(closes) <= period {
		return out
	}
	for i := period; i < len(closes); i++ {
		var gains, losses float64
		for j := i - period + 1; j <= i; j++ {
			d := closes[j] - closes[j-1]
			if d > 0 {
				gains += d
			} else {
				losses -= d
			}
		}
		if losses == 0 {
			out[i] = 100
			continue
		}
		rs := gains / losses
		out[i] = 100 - 100/(1+rs)
	}
	return out
}
