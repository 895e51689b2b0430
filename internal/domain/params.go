package domain

import "fmt"

// Default numerical parameters. These seed Params and are never mutated;
// callers override per call by building their own Params value.
const (
	DefaultRiskFreeRate   = 0.03
	DefaultRiskAversion   = 2.5
	DefaultTau            = 0.05
	DefaultVaRConfidence  = 0.95
	DefaultPeriodsPerYear = 252

	// MinVaRObservations is the smallest sample for which an empirical
	// percentile is reported at all.
	MinVaRObservations = 20
)

// Bound is a per-asset weight interval.
type Bound struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Params carries every numerical knob the engine recognizes. It is a plain
// value threaded through each call; there is no process-wide state behind
// any default.
type Params struct {
	RiskFreeRate   float64 `json:"risk_free_rate"`
	RiskAversion   float64 `json:"risk_aversion"` // lambda in the equilibrium formula
	Tau            float64 `json:"tau"`
	VaRConfidence  float64 `json:"var_confidence"`
	AllowShort     bool    `json:"allow_short"`
	MinWeight      float64 `json:"min_weight"`
	MaxWeight      float64 `json:"max_weight"`
	PeriodsPerYear int     `json:"periods_per_year"`

	// AssetBounds overrides MinWeight/MaxWeight for individual symbols.
	AssetBounds map[string]Bound `json:"asset_bounds,omitempty"`
}

// DefaultParams returns the documented defaults: long-only, full [0,1]
// bounds, 95% VaR, daily periodicity.
func DefaultParams() Params {
	return Params{
		RiskFreeRate:   DefaultRiskFreeRate,
		RiskAversion:   DefaultRiskAversion,
		Tau:            DefaultTau,
		VaRConfidence:  DefaultVaRConfidence,
		AllowShort:     false,
		MinWeight:      0.0,
		MaxWeight:      1.0,
		PeriodsPerYear: DefaultPeriodsPerYear,
	}
}

// Validate checks every recognized option against its documented range.
func (p Params) Validate() error {
	if p.RiskAversion <= 0 {
		return &InvalidInputError{Field: "risk_aversion", Reason: fmt.Sprintf("must be > 0, got %g", p.RiskAversion)}
	}
	if p.Tau <= 0 {
		return &InvalidInputError{Field: "tau", Reason: fmt.Sprintf("must be > 0, got %g", p.Tau)}
	}
	if p.VaRConfidence <= 0 || p.VaRConfidence >= 1 {
		return &InvalidInputError{Field: "var_confidence", Reason: fmt.Sprintf("must be in (0,1), got %g", p.VaRConfidence)}
	}
	if p.PeriodsPerYear <= 0 {
		return &InvalidInputError{Field: "periods_per_year", Reason: fmt.Sprintf("must be > 0, got %d", p.PeriodsPerYear)}
	}
	if p.MinWeight > p.MaxWeight {
		return &InvalidInputError{Field: "bounds", Reason: fmt.Sprintf("min_weight %g > max_weight %g", p.MinWeight, p.MaxWeight)}
	}
	if !p.AllowShort && p.MinWeight < 0 {
		return &InvalidInputError{Field: "min_weight", Reason: "negative lower bound requires allow_short"}
	}
	for symbol, b := range p.AssetBounds {
		if b.Min > b.Max {
			return &InvalidInputError{Field: "asset_bounds", Reason: fmt.Sprintf("%s: min %g > max %g", symbol, b.Min, b.Max)}
		}
		if !p.AllowShort && b.Min < 0 {
			return &InvalidInputError{Field: "asset_bounds", Reason: fmt.Sprintf("%s: negative lower bound requires allow_short", symbol)}
		}
	}
	return nil
}

// BoundsFor expands the configured bounds into per-asset lower/upper
// vectors aligned with the universe order.
func (p Params) BoundsFor(u *Universe) (lower, upper []float64) {
	n := u.N()
	lower = make([]float64, n)
	upper = make([]float64, n)
	for i := 0; i < n; i++ {
		lower[i] = p.MinWeight
		upper[i] = p.MaxWeight
		if b, ok := p.AssetBounds[u.Symbol(i)]; ok {
			lower[i] = b.Min
			upper[i] = b.Max
		}
	}
	return lower, upper
}
