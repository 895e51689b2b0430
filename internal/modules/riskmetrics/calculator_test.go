package riskmetrics

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/quantfolio/internal/domain"
)

func testCalculator(t *testing.T) *Calculator {
	t.Helper()
	c, err := NewCalculator(domain.DefaultParams(), zerolog.Nop())
	require.NoError(t, err)
	return c
}

// testReturns builds a deterministic T x 2 return matrix with both gains
// and losses so every metric in the catalogue is exercised.
func testReturns(rows int) *mat.Dense {
	rets := mat.NewDense(rows, 2, nil)
	for i := 0; i < rows; i++ {
		rets.Set(i, 0, 0.001+0.02*math.Sin(float64(i)))
		rets.Set(i, 1, 0.0005+0.015*math.Cos(float64(i)*1.3))
	}
	return rets
}

func TestPortfolioSeries(t *testing.T) {
	rets := mat.NewDense(4, 2, []float64{
		0.01, 0.02,
		-0.01, 0.00,
		0.02, 0.00,
		0.00, -0.01,
	})

	series, err := PortfolioSeries(rets, []float64{0.5, 0.5})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.015, -0.005, 0.01, -0.005}, series, 1e-12)

	_, err = PortfolioSeries(rets, []float64{1.0})
	var invalid *domain.InvalidInputError
	assert.ErrorAs(t, err, &invalid)
}

func TestComputeFullCatalogue(t *testing.T) {
	c := testCalculator(t)
	rets := testReturns(60)

	report, err := c.Compute(rets, []float64{0.5, 0.5}, nil)
	require.NoError(t, err)

	// the benchmark-free catalogue
	for _, name := range []string{
		MetricAnnualReturn, MetricCAGR, MetricVolatilityAnnual, MetricVolatilityDaily,
		MetricSharpeRatio, MetricSortinoRatio, MetricCalmarRatio, MetricRecoveryFactor,
		MetricMaxDrawdown, MetricUlcerIndex, MetricValueAtRisk, MetricConditionalVaR,
		MetricSkewness, MetricKurtosis, MetricDownsideDeviation, MetricWinRate,
		MetricProfitFactor, MetricPayoffRatio,
	} {
		_, ok := report[name]
		assert.True(t, ok, "missing metric %s", name)
	}
	assert.NotContains(t, report, MetricBeta)
	assert.NotContains(t, report, MetricAlpha)

	assert.LessOrEqual(t, report[MetricMaxDrawdown], 0.0)
	assert.GreaterOrEqual(t, report[MetricUlcerIndex], 0.0)
	assert.LessOrEqual(t, report[MetricConditionalVaR], report[MetricValueAtRisk])
	assert.GreaterOrEqual(t, report[MetricWinRate], 0.0)
	assert.LessOrEqual(t, report[MetricWinRate], 1.0)
}

func TestComputeWithBenchmark(t *testing.T) {
	c := testCalculator(t)
	rets := testReturns(60)

	benchmark := make([]float64, 60)
	for i := range benchmark {
		benchmark[i] = 0.0008 + 0.01*math.Sin(float64(i)*0.7)
	}

	report, err := c.Compute(rets, []float64{0.5, 0.5}, benchmark)
	require.NoError(t, err)

	for _, name := range []string{MetricBeta, MetricAlpha, MetricInformationRatio, MetricTrackingError} {
		_, ok := report[name]
		assert.True(t, ok, "missing metric %s", name)
	}
	assert.GreaterOrEqual(t, report[MetricTrackingError], 0.0)
}

func TestComputeRejections(t *testing.T) {
	c := testCalculator(t)

	t.Run("sample too small for VaR", func(t *testing.T) {
		_, err := c.Compute(testReturns(10), []float64{0.5, 0.5}, nil)
		var insufficient *domain.InsufficientDataError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, domain.MinVaRObservations, insufficient.Need)
	})

	t.Run("misaligned benchmark", func(t *testing.T) {
		_, err := c.Compute(testReturns(60), []float64{0.5, 0.5}, make([]float64, 30))
		var invalid *domain.InvalidInputError
		assert.ErrorAs(t, err, &invalid)
	})

	t.Run("weight length mismatch", func(t *testing.T) {
		_, err := c.Compute(testReturns(60), []float64{0.5, 0.3, 0.2}, nil)
		var invalid *domain.InvalidInputError
		assert.ErrorAs(t, err, &invalid)
	})
}

func TestValueAtRisk(t *testing.T) {
	series := make([]float64, domain.MinVaRObservations)
	for i := range series {
		series[i] = 0.01
	}
	series[0] = -0.10

	varValue, err := ValueAtRisk(series, 0.95)
	require.NoError(t, err)
	assert.InDelta(t, -0.10, varValue, 1e-12)

	cvar := ConditionalVaR(series, varValue)
	assert.LessOrEqual(t, cvar, varValue)

	_, err = ValueAtRisk(series[:domain.MinVaRObservations-1], 0.95)
	var insufficient *domain.InsufficientDataError
	assert.ErrorAs(t, err, &insufficient)
}

func TestDownsideDeviation(t *testing.T) {
	// one observation below target 0, deviation 0.02
	assert.InDelta(t, 0.02, DownsideDeviation([]float64{0.01, -0.02}, 0), 1e-12)

	// nothing below target
	assert.Equal(t, 0.0, DownsideDeviation([]float64{0.01, 0.02}, 0))
}

func TestSortinoRatioInfiniteWithoutDownside(t *testing.T) {
	series := []float64{0.01, 0.02, 0.015}
	assert.True(t, math.IsInf(SortinoRatio(series, 0, 252), 1))
}

func TestCalmarRatioInfiniteWithoutDrawdown(t *testing.T) {
	series := []float64{0.01, 0.02, 0.015}
	assert.True(t, math.IsInf(CalmarRatio(series, 252), 1))
}

func TestRecoveryFactor(t *testing.T) {
	// cumulative curve 1.1, 0.55, 0.66: total return -0.34, max drawdown -0.5
	assert.InDelta(t, -0.68, RecoveryFactor([]float64{0.1, -0.5, 0.2}), 1e-12)

	// a recovered path: curve 1.2, 0.9, 1.08; total return 0.08 over a
	// 0.25 drawdown
	assert.InDelta(t, 0.32, RecoveryFactor([]float64{0.2, -0.25, 0.2}), 1e-12)

	// no drawdown at all
	assert.True(t, math.IsInf(RecoveryFactor([]float64{0.01, 0.02}), 1))
}

func TestWinRate(t *testing.T) {
	assert.InDelta(t, 0.5, WinRate([]float64{0.01, -0.01, 0.02, 0.0}), 1e-12)
	assert.Equal(t, 0.0, WinRate(nil))
}

func TestProfitFactor(t *testing.T) {
	assert.InDelta(t, 3.0, ProfitFactor([]float64{0.03, -0.01}), 1e-12)
	assert.True(t, math.IsInf(ProfitFactor([]float64{0.01, 0.02}), 1))
	assert.Equal(t, 0.0, ProfitFactor([]float64{0, 0}))
}

func TestPayoffRatio(t *testing.T) {
	// average gain 0.03, average loss 0.03
	assert.InDelta(t, 1.0, PayoffRatio([]float64{0.02, 0.04, -0.03}), 1e-12)
	assert.True(t, math.IsInf(PayoffRatio([]float64{0.01}), 1))
}

func TestBetaAndAlpha(t *testing.T) {
	benchmark := []float64{0.01, -0.02, 0.015, 0.005, -0.01}
	series := make([]float64, len(benchmark))
	for i, b := range benchmark {
		series[i] = 2 * b
	}

	assert.InDelta(t, 2.0, Beta(series, benchmark), 1e-12)

	// perfectly benchmark-tracking portfolio has beta 1 and zero alpha
	// regardless of the risk-free rate
	assert.InDelta(t, 1.0, Beta(benchmark, benchmark), 1e-12)
	assert.InDelta(t, 0.0, Alpha(benchmark, benchmark, 0.03, 252), 1e-12)
}

func TestTrackingErrorAndInformationRatio(t *testing.T) {
	benchmark := []float64{0.01, -0.02, 0.015, 0.005, -0.01}

	// identical series: zero tracking error, information ratio defined as 0
	assert.Equal(t, 0.0, TrackingError(benchmark, benchmark))
	assert.Equal(t, 0.0, InformationRatio(benchmark, benchmark))

	series := []float64{0.012, -0.018, 0.016, 0.007, -0.008}
	assert.Greater(t, TrackingError(series, benchmark), 0.0)
}
