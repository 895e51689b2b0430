package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawdownCurve(t *testing.T) {
	dd := DrawdownCurve([]float64{0.1, -0.5, 0.2})

	require.Len(t, dd, 3)
	assert.InDelta(t, 0.0, dd[0], 1e-12)  // at the peak
	assert.InDelta(t, -0.5, dd[1], 1e-12) // 0.55/1.10 - 1
	assert.InDelta(t, -0.4, dd[2], 1e-12) // 0.66/1.10 - 1
}

func TestMaxDrawdownIsNeverPositive(t *testing.T) {
	tests := []struct {
		name    string
		returns []float64
		want    float64
	}{
		{"loss and partial recovery", []float64{0.1, -0.5, 0.2}, -0.5},
		{"monotone growth", []float64{0.01, 0.02, 0.03}, 0},
		{"flat", []float64{0, 0, 0}, 0},
		{"empty", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaxDrawdown(tt.returns)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.LessOrEqual(t, got, 0.0)
		})
	}
}

func TestUlcerIndex(t *testing.T) {
	assert.Equal(t, 0.0, UlcerIndex([]float64{0.01, 0.02, 0.03}))
	assert.Equal(t, 0.0, UlcerIndex(nil))

	// dd curve is [0, -0.5, -0.4]
	want := math.Sqrt((0.25 + 0.16) / 3)
	assert.InDelta(t, want, UlcerIndex([]float64{0.1, -0.5, 0.2}), 1e-12)
}

func TestCAGR(t *testing.T) {
	// doubling over exactly one year compounds to 100%
	periods := 252
	r := math.Pow(2, 1.0/float64(periods)) - 1
	returns := make([]float64, periods)
	for i := range returns {
		returns[i] = r
	}
	assert.InDelta(t, 1.0, CAGR(returns, periods), 1e-9)

	// a wiped-out portfolio caps at -100%
	assert.Equal(t, -1.0, CAGR([]float64{-1.0, 0.01}, 252))

	assert.Equal(t, 0.0, CAGR(nil, 252))
}
