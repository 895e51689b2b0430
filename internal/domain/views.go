package domain

import (
	"fmt"
	"math"
)

// View is an absolute single-asset view: the investor asserts an expected
// (annualized) return for one asset with a confidence in (0,1].
type View struct {
	Symbol     string  `json:"symbol"`
	Return     float64 `json:"return"`
	Confidence float64 `json:"confidence"`
}

// ViewSet is zero or more views. Relative multi-asset views are not
// supported.
type ViewSet []View

// Validate rejects views before any matrix computation: unknown symbols,
// confidences outside (0,1], and non-finite returns all fail here.
func (vs ViewSet) Validate(u *Universe) error {
	seen := make(map[string]bool, len(vs))
	for i, v := range vs {
		if _, ok := u.Index(v.Symbol); !ok {
			return &InvalidInputError{Field: "views", Reason: fmt.Sprintf("view %d references unknown asset %q", i, v.Symbol)}
		}
		if seen[v.Symbol] {
			return &InvalidInputError{Field: "views", Reason: fmt.Sprintf("duplicate view on %q", v.Symbol)}
		}
		seen[v.Symbol] = true
		if v.Confidence <= 0 || v.Confidence > 1 {
			return &InvalidInputError{Field: "views", Reason: fmt.Sprintf("%s: confidence must be in (0,1], got %g", v.Symbol, v.Confidence)}
		}
		if math.IsNaN(v.Return) || math.IsInf(v.Return, 0) {
			return &InvalidInputError{Field: "views", Reason: fmt.Sprintf("%s: view return is not finite", v.Symbol)}
		}
	}
	return nil
}
