package indicator

// smaSeries computes a simple moving average; the first value appears once
// the window has filled, at index window-1.
func smaSeries(values []float64, window int) []float64 {
	out := nanSeries(len(values))
	if window < 1 || len(values) < window {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}
