// Package views blends market-implied equilibrium returns with investor
// views using the Black-Litterman posterior:
//
//	E(R) = [tau*Sigma^-1 + P' Omega^-1 P]^-1 [tau*Sigma^-1 Pi + P' Omega^-1 Q]
//
// Because every supported view is absolute and single-asset, P rows are
// unit vectors and Omega is diagonal, so the view block reduces to a
// per-asset diagonal update. An empty view set contributes nothing and the
// formula degrades to Pi through the same code path, with no 0x0 inversion.
package views

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/quantfolio/internal/domain"
	"github.com/aristath/quantfolio/internal/modules/equilibrium"
)

const (
	// omegaFloor keeps Omega invertible at confidence = 1.
	omegaFloor = 1e-10

	// ridgeScale sizes the diagonal regularization retry relative to the
	// mean diagonal of the matrix being inverted.
	ridgeScale = 1e-8
)

// Uncertainty maps a view's confidence c in (0,1] to the Omega diagonal
// entry tau * Sigma_ii * (1-c)/c, floored at omegaFloor. The mapping is
// strictly decreasing in c: confidence near 0 sends uncertainty to
// infinity (the view is ignored), confidence 1 pins it at the floor.
func Uncertainty(tau, sigmaII, confidence float64) float64 {
	omega := tau * sigmaII * (1 - confidence) / confidence
	if omega < omegaFloor {
		return omegaFloor
	}
	return omega
}

// Posterior computes Black-Litterman posterior expected returns from the
// implied returns pi, the annualized covariance, the scaling scalar tau,
// and zero or more views. Views are validated against the universe before
// any matrix work.
func Posterior(pi []float64, cov mat.Matrix, tau float64, viewSet domain.ViewSet, universe *domain.Universe) ([]float64, error) {
	if err := equilibrium.CheckCovariance(cov); err != nil {
		return nil, err
	}
	n, _ := cov.Dims()
	if len(pi) != n {
		return nil, &domain.InvalidInputError{
			Field:  "implied_returns",
			Reason: fmt.Sprintf("length %d does not match %d assets", len(pi), n),
		}
	}
	if universe.N() != n {
		return nil, &domain.InvalidInputError{
			Field:  "universe",
			Reason: fmt.Sprintf("%d assets in universe, covariance is %dx%d", universe.N(), n, n),
		}
	}
	if tau <= 0 {
		return nil, &domain.InvalidInputError{Field: "tau", Reason: fmt.Sprintf("must be > 0, got %g", tau)}
	}
	if err := viewSet.Validate(universe); err != nil {
		return nil, err
	}

	covInv, err := invertWithRidge(cov)
	if err != nil {
		return nil, err
	}

	// Prior precision block: A = tau * Sigma^-1, b = A * Pi.
	var a mat.Dense
	a.Scale(tau, covInv)

	b := mat.NewVecDense(n, nil)
	b.MulVec(&a, mat.NewVecDense(n, pi))

	// View block: each absolute view adds 1/omega to A at its asset's
	// diagonal and q/omega to b. Zero views leave A and b untouched.
	for _, v := range viewSet {
		i, _ := universe.Index(v.Symbol)
		omega := Uncertainty(tau, cov.At(i, i), v.Confidence)
		a.Set(i, i, a.At(i, i)+1/omega)
		b.SetVec(i, b.AtVec(i)+v.Return/omega)
	}

	var posterior mat.VecDense
	if err := posterior.SolveVec(&a, b); err != nil {
		regularized := addRidge(&a)
		if err := posterior.SolveVec(regularized, b); err != nil {
			return nil, &domain.SingularMatrixError{
				Size:   n,
				Reason: "posterior precision matrix not invertible after ridge regularization",
			}
		}
	}

	out := make([]float64, n)
	copy(out, posterior.RawVector().Data)
	return out, nil
}

// invertWithRidge inverts a matrix, retrying once with a small diagonal
// ridge before reporting SingularMatrixError.
func invertWithRidge(m mat.Matrix) (*mat.Dense, error) {
	var inv mat.Dense
	if err := inv.Inverse(m); err == nil {
		return &inv, nil
	}

	regularized := addRidge(m)
	if err := inv.Inverse(regularized); err != nil {
		n, _ := m.Dims()
		return nil, &domain.SingularMatrixError{
			Size:   n,
			Reason: "covariance matrix not invertible after ridge regularization",
		}
	}
	return &inv, nil
}

// addRidge returns m + delta*I where delta scales with the mean diagonal.
func addRidge(m mat.Matrix) *mat.Dense {
	n, _ := m.Dims()

	trace := 0.0
	for i := 0; i < n; i++ {
		trace += m.At(i, i)
	}
	delta := ridgeScale * trace / float64(n)
	if delta <= 0 {
		delta = ridgeScale
	}

	var out mat.Dense
	out.CloneFrom(m)
	for i := 0; i < n; i++ {
		out.Set(i, i, out.At(i, i)+delta)
	}
	return &out
}
