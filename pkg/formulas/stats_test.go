package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleReturns(t *testing.T) {
	prices := []float64{100, 110, 99}
	rets := SimpleReturns(prices)

	require.Len(t, rets, 2)
	assert.InDelta(t, 0.10, rets[0], 1e-12)
	assert.InDelta(t, -0.10, rets[1], 1e-12)

	assert.Empty(t, SimpleReturns([]float64{100}))
}

func TestLogReturns(t *testing.T) {
	prices := []float64{100, 110}
	rets := LogReturns(prices)

	require.Len(t, rets, 1)
	// ln(1.1)
	assert.InDelta(t, 0.0953101798, rets[0], 1e-9)
}

func TestCumulativeCurve(t *testing.T) {
	curve := CumulativeCurve([]float64{0.1, -0.5, 0.2})

	require.Len(t, curve, 3)
	assert.InDelta(t, 1.10, curve[0], 1e-12)
	assert.InDelta(t, 0.55, curve[1], 1e-12)
	assert.InDelta(t, 0.66, curve[2], 1e-12)
}

func TestQuantile(t *testing.T) {
	data := []float64{5, 3, 1, 4, 2} // unsorted on purpose
	assert.InDelta(t, 3.0, Quantile(0.5, data), 1e-12)
	assert.InDelta(t, 1.0, Quantile(0.2, data), 1e-12)
	// input must not be reordered
	assert.Equal(t, []float64{5, 3, 1, 4, 2}, data)
}

func TestQuantileToleratesComplementProbability(t *testing.T) {
	// 1-0.95 is a hair above 0.05 in floating point; with twenty
	// observations the rank must still land on the first order statistic
	twenty := make([]float64, 20)
	for i := range twenty {
		twenty[i] = float64(i + 1)
	}

	assert.InDelta(t, 1.0, Quantile(1-0.95, twenty), 1e-12)
	assert.InDelta(t, 2.0, Quantile(1-0.94, twenty), 1e-12)
	assert.InDelta(t, 20.0, Quantile(1.0, twenty), 1e-12)
	assert.InDelta(t, 1.0, Quantile(0.0, twenty), 1e-12)
}

func TestMeanAndStdDev(t *testing.T) {
	data := []float64{0.02, 0.0, 0.04}
	assert.InDelta(t, 0.02, Mean(data), 1e-12)
	assert.InDelta(t, 0.02, StdDev(data), 1e-12)

	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, StdDev([]float64{0.01}))
}

func TestCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	y := []float64{2, 4, 6, 8}
	assert.InDelta(t, 1.0, Correlation(x, y), 1e-12)

	inv := []float64{8, 6, 4, 2}
	assert.InDelta(t, -1.0, Correlation(x, inv), 1e-12)

	assert.Equal(t, 0.0, Correlation(x, []float64{1, 2}))
}
