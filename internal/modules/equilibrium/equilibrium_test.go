package equilibrium

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/quantfolio/internal/domain"
)

func TestImpliedReturnsDiagonal(t *testing.T) {
	// Pi = lambda * Sigma * w: with a diagonal Sigma and equal weights the
	// implied return of each asset is lambda * sigma_ii / n.
	cov := mat.NewSymDense(3, []float64{
		0.04, 0, 0,
		0, 0.09, 0,
		0, 0, 0.01,
	})
	weights := domain.EqualWeights(3)

	pi, err := ImpliedReturns(cov, weights, 2.5)
	require.NoError(t, err)
	require.Len(t, pi, 3)

	assert.InDelta(t, 2.5*0.04/3, pi[0], 1e-12)
	assert.InDelta(t, 2.5*0.09/3, pi[1], 1e-12)
	assert.InDelta(t, 2.5*0.01/3, pi[2], 1e-12)
}

func TestImpliedReturnsIsDeterministic(t *testing.T) {
	cov := mat.NewSymDense(2, []float64{0.04, 0.006, 0.006, 0.09})
	weights := []float64{0.6, 0.4}

	first, err := ImpliedReturns(cov, weights, 2.5)
	require.NoError(t, err)
	second, err := ImpliedReturns(cov, weights, 2.5)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestImpliedReturnsScalesWithRiskAversion(t *testing.T) {
	cov := mat.NewSymDense(2, []float64{0.04, 0.006, 0.006, 0.09})
	weights := []float64{0.5, 0.5}

	low, err := ImpliedReturns(cov, weights, 1.0)
	require.NoError(t, err)
	high, err := ImpliedReturns(cov, weights, 4.0)
	require.NoError(t, err)

	for i := range low {
		assert.InDelta(t, 4*low[i], high[i], 1e-12)
	}
}

func TestImpliedReturnsRejections(t *testing.T) {
	goodCov := mat.NewSymDense(2, []float64{0.04, 0.006, 0.006, 0.09})

	t.Run("weight length mismatch", func(t *testing.T) {
		_, err := ImpliedReturns(goodCov, []float64{1.0}, 2.5)
		var invalid *domain.InvalidInputError
		assert.ErrorAs(t, err, &invalid)
	})

	t.Run("weights not summing to one", func(t *testing.T) {
		_, err := ImpliedReturns(goodCov, []float64{0.6, 0.6}, 2.5)
		var invalid *domain.InvalidInputError
		assert.ErrorAs(t, err, &invalid)
	})

	t.Run("non-finite weight", func(t *testing.T) {
		_, err := ImpliedReturns(goodCov, []float64{math.NaN(), 1.0}, 2.5)
		var invalid *domain.InvalidInputError
		assert.ErrorAs(t, err, &invalid)
	})

	t.Run("non-positive risk aversion", func(t *testing.T) {
		_, err := ImpliedReturns(goodCov, []float64{0.5, 0.5}, 0)
		var invalid *domain.InvalidInputError
		assert.ErrorAs(t, err, &invalid)
	})

	t.Run("asymmetric covariance", func(t *testing.T) {
		cov := mat.NewDense(2, 2, []float64{0.04, 0.01, 0.02, 0.09})
		_, err := ImpliedReturns(cov, []float64{0.5, 0.5}, 2.5)
		var degenerate *domain.DegenerateInputError
		assert.ErrorAs(t, err, &degenerate)
	})

	t.Run("non-square covariance", func(t *testing.T) {
		cov := mat.NewDense(2, 3, nil)
		_, err := ImpliedReturns(cov, []float64{0.5, 0.5}, 2.5)
		var degenerate *domain.DegenerateInputError
		assert.ErrorAs(t, err, &degenerate)
	})

	t.Run("non-finite covariance entry", func(t *testing.T) {
		cov := mat.NewDense(2, 2, []float64{0.04, math.Inf(1), math.Inf(1), 0.09})
		_, err := ImpliedReturns(cov, []float64{0.5, 0.5}, 2.5)
		var degenerate *domain.DegenerateInputError
		assert.ErrorAs(t, err, &degenerate)
	})
}

func TestCheckCovariance(t *testing.T) {
	good := mat.NewSymDense(2, []float64{0.04, 0.006, 0.006, 0.09})
	assert.NoError(t, CheckCovariance(good))

	bad := mat.NewDense(2, 2, []float64{0.04, 0.01, -0.01, 0.09})
	assert.Error(t, CheckCovariance(bad))
}
