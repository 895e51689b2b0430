package returns

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/quantfolio/internal/domain"
	"github.com/aristath/quantfolio/pkg/formulas"
)

// MinObservations is the smallest return-series length for which the
// sample covariance is considered meaningful.
const MinObservations = 30

// Convention selects how prices become returns. It is always explicit;
// the builder never infers it.
type Convention string

const (
	ConventionSimple Convention = "simple"
	ConventionLog    Convention = "log"
)

// PriceSeries is one asset's chronologically ordered price history.
type PriceSeries struct {
	Symbol string    `json:"symbol"`
	Prices []float64 `json:"prices"`
}

// Dataset bundles the aligned return matrix with its universe and the
// annualized sample covariance. It is immutable for the lifetime of an
// analysis; every downstream component derives fresh values from it.
type Dataset struct {
	Universe       *domain.Universe
	Returns        *mat.Dense    // T x N periodic fractional returns
	Covariance     *mat.SymDense // N x N, annualized
	PeriodsPerYear int
}

// T returns the number of return observations per asset.
func (d *Dataset) T() int {
	t, _ := d.Returns.Dims()
	return t
}

// MeanReturns returns the annualized historical mean return per asset.
func (d *Dataset) MeanReturns() []float64 {
	_, n := d.Returns.Dims()
	mu := make([]float64, n)
	for j := 0; j < n; j++ {
		mu[j] = stat.Mean(mat.Col(nil, j, d.Returns), nil) * float64(d.PeriodsPerYear)
	}
	return mu
}

// WellConditioned reports whether the covariance matrix admits a Cholesky
// factorization, i.e. is numerically positive definite. Duplicated or
// highly collinear assets fail this check.
func (d *Dataset) WellConditioned() bool {
	var chol mat.Cholesky
	return chol.Factorize(d.Covariance)
}

// Builder converts raw price series into a Dataset.
type Builder struct {
	convention     Convention
	periodsPerYear int
	log            zerolog.Logger
}

// NewBuilder creates a builder for the given return convention and
// periodicity (252 for daily data).
func NewBuilder(convention Convention, periodsPerYear int, log zerolog.Logger) (*Builder, error) {
	switch convention {
	case ConventionSimple, ConventionLog:
	default:
		return nil, &domain.InvalidInputError{Field: "convention", Reason: fmt.Sprintf("unknown return convention %q", convention)}
	}
	if periodsPerYear <= 0 {
		return nil, &domain.InvalidInputError{Field: "periods_per_year", Reason: fmt.Sprintf("must be > 0, got %d", periodsPerYear)}
	}

	return &Builder{
		convention:     convention,
		periodsPerYear: periodsPerYear,
		log:            log.With().Str("component", "returns_builder").Logger(),
	}, nil
}

// Build validates and converts the aligned price series. All series must
// have the same length and at least MinObservations+1 points; gaps must be
// resolved upstream, so any non-finite or non-positive price is rejected.
func (b *Builder) Build(series []PriceSeries) (*Dataset, error) {
	if len(series) == 0 {
		return nil, &domain.InvalidInputError{Field: "series", Reason: "no price series supplied"}
	}

	symbols := make([]string, len(series))
	for i, s := range series {
		symbols[i] = s.Symbol
	}
	universe, err := domain.NewUniverse(symbols)
	if err != nil {
		return nil, err
	}

	length := len(series[0].Prices)
	if length < MinObservations+1 {
		return nil, &domain.InsufficientDataError{
			Statistic: "covariance",
			Need:      MinObservations + 1,
			Got:       length,
		}
	}

	for _, s := range series {
		if len(s.Prices) != length {
			return nil, &domain.InvalidInputError{
				Field:  "series",
				Reason: fmt.Sprintf("%s has %d prices, expected %d (series must be aligned)", s.Symbol, len(s.Prices), length),
			}
		}
		for i, p := range s.Prices {
			if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
				return nil, &domain.InvalidInputError{
					Field:  "series",
					Reason: fmt.Sprintf("%s has invalid price %g at index %d", s.Symbol, p, i),
				}
			}
		}
	}

	t := length - 1
	n := len(series)
	rets := mat.NewDense(t, n, nil)
	for j, s := range series {
		var col []float64
		if b.convention == ConventionLog {
			col = formulas.LogReturns(s.Prices)
		} else {
			col = formulas.SimpleReturns(s.Prices)
		}
		for i := 0; i < t; i++ {
			rets.Set(i, j, col[i])
		}
	}

	cov := AnnualizedCovariance(rets, b.periodsPerYear)

	ds := &Dataset{
		Universe:       universe,
		Returns:        rets,
		Covariance:     cov,
		PeriodsPerYear: b.periodsPerYear,
	}

	if !ds.WellConditioned() {
		b.log.Warn().
			Int("assets", n).
			Int("observations", t).
			Msg("Covariance matrix is not positive definite; downstream inversions will regularize or fail")
	}

	b.log.Debug().
		Int("assets", n).
		Int("observations", t).
		Str("convention", string(b.convention)).
		Msg("Built return dataset")

	return ds, nil
}

// AnnualizedCovariance computes the annualized sample covariance of the
// columns of a T x N return matrix.
func AnnualizedCovariance(rets mat.Matrix, periodsPerYear int) *mat.SymDense {
	_, n := rets.Dims()
	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, rets, nil)
	cov.ScaleSym(float64(periodsPerYear), cov)
	return cov
}

// SampleStats computes annualized mean returns and covariance of a return
// window. The backtest engine uses it on training slices.
func SampleStats(rets mat.Matrix, periodsPerYear int) ([]float64, *mat.SymDense) {
	_, n := rets.Dims()
	mu := make([]float64, n)
	for j := 0; j < n; j++ {
		mu[j] = stat.Mean(mat.Col(nil, j, rets), nil) * float64(periodsPerYear)
	}
	return mu, AnnualizedCovariance(rets, periodsPerYear)
}
