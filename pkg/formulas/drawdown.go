package formulas

import "math"

// DrawdownCurve computes the drawdown series of a return series on its
// cumulative-product curve: dd[i] = curve[i]/peak_so_far - 1. Every entry
// is <= 0, with 0 exactly at running peaks.
func DrawdownCurve(returns []float64) []float64 {
	curve := CumulativeCurve(returns)
	dd := make([]float64, len(curve))

	peak := math.Inf(-1)
	for i, v := range curve {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd[i] = v/peak - 1
		}
	}

	return dd
}

// MaxDrawdown returns the minimum of the drawdown curve. Always <= 0;
// equals 0 only for a monotonically non-decreasing cumulative path.
func MaxDrawdown(returns []float64) float64 {
	maxDD := 0.0
	for _, d := range DrawdownCurve(returns) {
		if d < maxDD {
			maxDD = d
		}
	}
	return maxDD
}

// UlcerIndex measures depth and duration of drawdowns: the root mean
// square of the drawdown curve.
func UlcerIndex(returns []float64) float64 {
	dd := DrawdownCurve(returns)
	if len(dd) == 0 {
		return 0
	}

	sumSq := 0.0
	for _, d := range dd {
		sumSq += d * d
	}

	return math.Sqrt(sumSq / float64(len(dd)))
}

// CAGR computes the compound annual growth rate of a periodic return
// series.
func CAGR(returns []float64, periodsPerYear int) float64 {
	if len(returns) == 0 {
		return 0
	}
	curve := CumulativeCurve(returns)
	final := curve[len(curve)-1]
	if final <= 0 {
		return -1
	}
	years := float64(len(returns)) / float64(periodsPerYear)
	return math.Pow(final, 1/years) - 1
}
