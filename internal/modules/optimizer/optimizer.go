// Package optimizer converts an expected-return vector and a covariance
// matrix into portfolio weights. The constrained solver maximizes the
// Sharpe ratio subject to full investment and per-asset bounds; a
// closed-form unconstrained mean-variance solver is kept alongside as a
// comparison baseline.
package optimizer

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/aristath/quantfolio/internal/domain"
	"github.com/aristath/quantfolio/internal/modules/equilibrium"
)

const (
	// penaltyWeight softly enforces the sum-to-one and bound constraints
	// during the warm-start solve. It is deliberately mild: a stiff
	// penalty stalls the line search, and feasibility is restored by
	// projection afterward anyway.
	penaltyWeight = 1e2

	// WeightTolerance is the feasibility tolerance on the returned vector.
	WeightTolerance = 1e-6

	maxIterations = 2000

	// refineIterations bounds the projected-gradient polish that follows
	// the warm-start solve.
	refineIterations = 5000
)

// Solver runs portfolio optimizations.
type Solver struct {
	log zerolog.Logger
}

// NewSolver creates a solver.
func NewSolver(log zerolog.Logger) *Solver {
	return &Solver{log: log.With().Str("component", "optimizer").Logger()}
}

// MaxSharpe finds weights maximizing (w'mu - rf) / sqrt(w'Sigma w) subject
// to sum(w) = 1 and lower <= w <= upper. A penalized Nelder-Mead solve
// (gonum/optimize) produces a warm start; its outcome is advisory, since
// even a stalled solve leaves a usable iterate. The converging step is a
// projected-gradient descent on the raw objective that never leaves the
// feasible set, so well-conditioned inputs always yield a feasible
// optimum. OptimizationFailureError is reserved for inputs where no
// finite objective value exists on the feasible set. When the objective
// is flat across several optima, the first one the descent reaches is
// accepted.
func (s *Solver) MaxSharpe(expected []float64, cov mat.Matrix, riskFree float64, lower, upper []float64) ([]float64, error) {
	n := len(expected)
	if err := validateInputs(expected, cov, lower, upper); err != nil {
		return nil, err
	}

	sigma := mat.DenseCopyOf(cov)
	mu := mat.NewVecDense(n, expected)

	negSharpe := func(w []float64) float64 {
		wv := mat.NewVecDense(n, w)
		var sw mat.VecDense
		sw.MulVec(sigma, wv)
		variance := mat.Dot(wv, &sw)
		if variance <= 0 || math.IsNaN(variance) {
			return math.Inf(1)
		}
		vol := math.Sqrt(variance)
		return -(mat.Dot(wv, mu) - riskFree) / vol
	}

	problem := optimize.Problem{
		Func: func(w []float64) float64 {
			return negSharpe(w) + penalty(w, lower, upper)
		},
	}

	x0 := feasibleStart(lower, upper)
	start := x0

	settings := &optimize.Settings{MajorIterations: maxIterations}
	if result, _ := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{}); result != nil && result.X != nil {
		if proj, ok := project(result.X, lower, upper); ok && negSharpe(proj) < negSharpe(start) {
			start = proj
		}
	}

	weights, ok := s.refine(start, negSharpe, func(grad, w []float64) {
		sharpeGradient(grad, w, expected, sigma, riskFree)
	}, lower, upper)
	if !ok || !feasible(weights, lower, upper) {
		return nil, &domain.OptimizationFailureError{
			Status:      "stalled",
			LastIterate: weights,
			Reason:      "projected gradient descent could not reach a feasible optimum",
		}
	}

	if v := negSharpe(weights); math.IsInf(v, 0) || math.IsNaN(v) {
		return nil, &domain.OptimizationFailureError{
			Status:      "degenerate",
			LastIterate: weights,
			Reason:      "objective not finite at solution",
		}
	}

	s.log.Debug().
		Int("assets", n).
		Float64("sharpe", -negSharpe(weights)).
		Msg("Max-Sharpe optimization converged")

	return weights, nil
}

// refine polishes a feasible start by projected-gradient descent with a
// backtracking step, staying on the feasible set throughout. Each
// iteration first tries the gradient component tangent to the sum-to-one
// plane, then the raw gradient; it stops when neither direction improves
// the objective at any step size, which is a constrained stationary point
// up to the step floor. Returns false only when the objective is not
// finite at the start.
func (s *Solver) refine(start []float64, objective func([]float64) float64, gradFn func(grad, w []float64), lower, upper []float64) ([]float64, bool) {
	n := len(start)
	w := append([]float64(nil), start...)
	fw := objective(w)
	if math.IsInf(fw, 0) || math.IsNaN(fw) {
		return w, false
	}

	grad := make([]float64, n)
	tangent := make([]float64, n)
	trial := make([]float64, n)

	descend := func(direction []float64) bool {
		for step := 1.0; step > 1e-14; step /= 2 {
			for i := range trial {
				trial[i] = w[i] - step*direction[i]
			}
			proj, ok := project(trial, lower, upper)
			if !ok {
				continue
			}
			if ft := objective(proj); ft < fw-1e-15 {
				copy(w, proj)
				fw = ft
				return true
			}
		}
		return false
	}

	for iter := 0; iter < refineIterations; iter++ {
		gradFn(grad, w)

		mean := floats.Sum(grad) / float64(n)
		for i := range tangent {
			tangent[i] = grad[i] - mean
		}

		if !descend(tangent) && !descend(grad) {
			break
		}
	}
	return w, true
}

// ClosedFormMeanVariance solves the classic unconstrained mean-variance
// problem: w proportional to Sigma^-1 (mu - rf*1), normalized to sum to 1.
// Components may be negative; there are no bound constraints.
func ClosedFormMeanVariance(expected []float64, cov mat.Symmetric, riskFree float64) ([]float64, error) {
	if err := equilibrium.CheckCovariance(cov); err != nil {
		return nil, err
	}
	n := cov.SymmetricDim()
	if len(expected) != n {
		return nil, &domain.InvalidInputError{
			Field:  "expected_returns",
			Reason: fmt.Sprintf("length %d does not match %d assets", len(expected), n),
		}
	}

	excess := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		excess.SetVec(i, expected[i]-riskFree)
	}

	var chol mat.Cholesky
	target := cov
	if !chol.Factorize(cov) {
		target = ridged(cov)
		if !chol.Factorize(target) {
			return nil, &domain.SingularMatrixError{
				Size:   n,
				Reason: "covariance matrix not positive definite after ridge regularization",
			}
		}
	}

	var z mat.VecDense
	if err := chol.SolveVecTo(&z, excess); err != nil {
		return nil, &domain.SingularMatrixError{Size: n, Reason: "covariance solve failed"}
	}

	total := floats.Sum(z.RawVector().Data)
	if math.Abs(total) < 1e-12 {
		return nil, &domain.OptimizationFailureError{
			Status:      "degenerate",
			LastIterate: z.RawVector().Data,
			Reason:      "unnormalized closed-form weights sum to zero",
		}
	}

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = z.AtVec(i) / total
	}
	return weights, nil
}

func validateInputs(expected []float64, cov mat.Matrix, lower, upper []float64) error {
	if err := equilibrium.CheckCovariance(cov); err != nil {
		return err
	}
	n, _ := cov.Dims()
	if len(expected) != n {
		return &domain.InvalidInputError{
			Field:  "expected_returns",
			Reason: fmt.Sprintf("length %d does not match %d assets", len(expected), n),
		}
	}
	if len(lower) != n || len(upper) != n {
		return &domain.InvalidInputError{
			Field:  "bounds",
			Reason: fmt.Sprintf("bounds length %d/%d does not match %d assets", len(lower), len(upper), n),
		}
	}
	var sumLower, sumUpper float64
	for i := 0; i < n; i++ {
		if lower[i] > upper[i] {
			return &domain.InvalidInputError{
				Field:  "bounds",
				Reason: fmt.Sprintf("asset %d: lower %g > upper %g", i, lower[i], upper[i]),
			}
		}
		sumLower += lower[i]
		sumUpper += upper[i]
	}
	if sumLower > 1+WeightTolerance || sumUpper < 1-WeightTolerance {
		return &domain.InvalidInputError{
			Field:  "bounds",
			Reason: fmt.Sprintf("bounds admit no fully-invested portfolio (sum of lower %g, sum of upper %g)", sumLower, sumUpper),
		}
	}
	for i, m := range expected {
		if math.IsNaN(m) || math.IsInf(m, 0) {
			return &domain.InvalidInputError{
				Field:  "expected_returns",
				Reason: fmt.Sprintf("non-finite expected return at index %d", i),
			}
		}
	}
	return nil
}

// sharpeGradient writes the analytic gradient of the negative Sharpe
// ratio.
func sharpeGradient(grad, w, mu []float64, sigma *mat.Dense, riskFree float64) {
	n := len(w)
	wv := mat.NewVecDense(n, w)

	var sw mat.VecDense
	sw.MulVec(sigma, wv)
	variance := mat.Dot(wv, &sw)
	if variance <= 1e-300 {
		variance = 1e-300
	}
	vol := math.Sqrt(variance)
	excess := floats.Dot(w, mu) - riskFree

	for i := 0; i < n; i++ {
		// d/dw_i of -(w'mu - rf)/vol
		grad[i] = -mu[i]/vol + excess*sw.AtVec(i)/(vol*variance)
	}
}

func penalty(w, lower, upper []float64) float64 {
	sum := floats.Sum(w)
	p := penaltyWeight * (sum - 1) * (sum - 1)
	for i := range w {
		if w[i] > upper[i] {
			d := w[i] - upper[i]
			p += penaltyWeight * d * d
		} else if w[i] < lower[i] {
			d := lower[i] - w[i]
			p += penaltyWeight * d * d
		}
	}
	return p
}

// feasibleStart returns equal weights pushed inside the bounds and
// projected onto the sum-to-one plane.
func feasibleStart(lower, upper []float64) []float64 {
	n := len(lower)
	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}
	if proj, ok := project(w, lower, upper); ok {
		return proj
	}
	return w
}

// project clamps to the bounds and redistributes the sum-to-one residual
// across assets with remaining slack.
func project(w, lower, upper []float64) ([]float64, bool) {
	n := len(w)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Min(math.Max(w[i], lower[i]), upper[i])
	}

	for iter := 0; iter < 100; iter++ {
		residual := 1 - floats.Sum(out)
		if math.Abs(residual) <= 1e-12 {
			return out, true
		}

		slack := 0.0
		for i := range out {
			if residual > 0 {
				slack += upper[i] - out[i]
			} else {
				slack += out[i] - lower[i]
			}
		}
		if slack <= 0 {
			return out, false
		}

		for i := range out {
			var room float64
			if residual > 0 {
				room = upper[i] - out[i]
			} else {
				room = out[i] - lower[i]
			}
			out[i] += residual * room / slack
		}
	}

	return out, math.Abs(1-floats.Sum(out)) <= WeightTolerance
}

func feasible(w, lower, upper []float64) bool {
	if math.Abs(1-floats.Sum(w)) > WeightTolerance {
		return false
	}
	for i := range w {
		if w[i] < lower[i]-WeightTolerance || w[i] > upper[i]+WeightTolerance {
			return false
		}
	}
	return true
}

// ridged returns cov + delta*I as a SymDense, delta scaled by the mean
// diagonal.
func ridged(cov mat.Symmetric) *mat.SymDense {
	n := cov.SymmetricDim()
	trace := 0.0
	for i := 0; i < n; i++ {
		trace += cov.At(i, i)
	}
	delta := 1e-8 * trace / float64(n)
	if delta <= 0 {
		delta = 1e-8
	}

	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, cov.At(i, j))
		}
		out.SetSym(i, i, out.At(i, i)+delta)
	}
	return out
}
