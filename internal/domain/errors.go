package domain

import "fmt"

// InvalidInputError reports malformed caller input: mismatched dimensions,
// weights not summing to one, a view on an unknown asset, a non-positive
// confidence.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.Field, e.Reason)
}

// DegenerateInputError reports a covariance matrix that is not usable as
// one: non-square, asymmetric, or containing non-finite entries.
type DegenerateInputError struct {
	Rows   int
	Cols   int
	Reason string
}

func (e *DegenerateInputError) Error() string {
	return fmt.Sprintf("degenerate input (%dx%d): %s", e.Rows, e.Cols, e.Reason)
}

// SingularMatrixError reports a matrix inversion that failed even after a
// ridge-regularization retry.
type SingularMatrixError struct {
	Size   int
	Reason string
}

func (e *SingularMatrixError) Error() string {
	return fmt.Sprintf("singular %dx%d matrix: %s", e.Size, e.Size, e.Reason)
}

// OptimizationFailureError reports solver non-convergence. LastIterate is
// the solver's final point, kept for diagnosis; it is never returned as a
// result weight vector.
type OptimizationFailureError struct {
	Status      string
	LastIterate []float64
	Reason      string
}

func (e *OptimizationFailureError) Error() string {
	return fmt.Sprintf("optimization failed (%s): %s", e.Status, e.Reason)
}

// InsufficientDataError reports a sample too small for the requested
// statistic.
type InsufficientDataError struct {
	Statistic string
	Need      int
	Got       int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: need %d observations, got %d", e.Statistic, e.Need, e.Got)
}
