package indicator

import "math"

// bollingerSeries computes Bollinger Bands: middle = SMA(window), upper and
// lower = middle ± k sample standard deviations (n-1 denominator) over the
// same window.
func bollingerSeries(closes []float64, window int, k float64) (upper, middle, lower []float64) {
	n := len(closes)
	upper, lower = nanSeries(n), nanSeries(n)
	middle = smaSeries(closes, window)
	if window < 2 || n < window {
		return upper, middle, lower
	}
	for i := window - 1; i < n; i++ {
		mean := middle[i]
		var ss float64
		for j := i - window + 1; j <= i; j++ {
			d := closes[j] - mean
			ss += d * d
		}
		std := math.Sqrt(ss / float64(window-1))
		upper[i] = mean + k*std
		lower[i] = mean - k*std
	}
	return upper, middle, lower
}
