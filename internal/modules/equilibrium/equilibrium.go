// Package equilibrium derives market-implied expected returns by CAPM
// reverse-optimization: instead of optimizing weights from returns, it
// solves for the returns that make the observed market weights optimal.
package equilibrium

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/quantfolio/internal/domain"
)

// WeightSumTolerance is how far market weights may drift from summing to 1.
const WeightSumTolerance = 1e-6

// ImpliedReturns computes Pi = lambda * Sigma * w_m.
//
// It is a pure function: identical inputs produce bit-identical output.
// Sigma must be square and symmetric within floating tolerance, and
// marketWeights must sum to 1 within WeightSumTolerance.
func ImpliedReturns(cov mat.Matrix, marketWeights []float64, riskAversion float64) ([]float64, error) {
	if err := CheckCovariance(cov); err != nil {
		return nil, err
	}

	n, _ := cov.Dims()
	if len(marketWeights) != n {
		return nil, &domain.InvalidInputError{
			Field:  "market_weights",
			Reason: fmt.Sprintf("length %d does not match %d assets", len(marketWeights), n),
		}
	}
	if riskAversion <= 0 {
		return nil, &domain.InvalidInputError{
			Field:  "risk_aversion",
			Reason: fmt.Sprintf("must be > 0, got %g", riskAversion),
		}
	}

	sum := 0.0
	for i, w := range marketWeights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, &domain.InvalidInputError{
				Field:  "market_weights",
				Reason: fmt.Sprintf("non-finite weight at index %d", i),
			}
		}
		sum += w
	}
	if math.Abs(sum-1) > WeightSumTolerance {
		return nil, &domain.InvalidInputError{
			Field:  "market_weights",
			Reason: fmt.Sprintf("weights sum to %g, expected 1 within %g", sum, WeightSumTolerance),
		}
	}

	var pi mat.VecDense
	pi.MulVec(cov, mat.NewVecDense(n, marketWeights))
	pi.ScaleVec(riskAversion, &pi)

	out := make([]float64, n)
	copy(out, pi.RawVector().Data)
	return out, nil
}

// CheckCovariance verifies the structural requirements every consumer of
// Sigma shares: square shape, finite entries, symmetry within tolerance.
func CheckCovariance(cov mat.Matrix) error {
	r, c := cov.Dims()
	if r != c {
		return &domain.DegenerateInputError{Rows: r, Cols: c, Reason: "covariance matrix is not square"}
	}

	const symTol = 1e-9
	for i := 0; i < r; i++ {
		for j := i; j < c; j++ {
			a, b := cov.At(i, j), cov.At(j, i)
			if math.IsNaN(a) || math.IsInf(a, 0) {
				return &domain.DegenerateInputError{Rows: r, Cols: c, Reason: fmt.Sprintf("non-finite entry at (%d,%d)", i, j)}
			}
			if math.Abs(a-b) > symTol {
				return &domain.DegenerateInputError{
					Rows: r, Cols: c,
					Reason: fmt.Sprintf("asymmetric at (%d,%d): %g vs %g", i, j, a, b),
				}
			}
		}
	}

	return nil
}
