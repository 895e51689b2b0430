package services

import (
	"github.com/rs/zerolog"

	"github.com/aristath/quantfolio/internal/domain"
	"github.com/aristath/quantfolio/internal/modules/equilibrium"
	"github.com/aristath/quantfolio/internal/modules/optimizer"
	"github.com/aristath/quantfolio/internal/modules/returns"
	"github.com/aristath/quantfolio/internal/modules/riskmetrics"
	"github.com/aristath/quantfolio/internal/modules/views"
)

// AnalysisResult is the full single-shot pipeline output.
type AnalysisResult struct {
	Symbols          []string           `json:"symbols"`
	ImpliedReturns   []float64          `json:"implied_returns"`
	PosteriorReturns []float64          `json:"posterior_returns"`
	Weights          []float64          `json:"weights"`
	Metrics          riskmetrics.Report `json:"metrics"`
}

// Analyzer runs the estimation pipeline end to end: equilibrium returns,
// view integration, max-Sharpe weights, and a risk report on the full
// history. It holds no state between calls.
type Analyzer struct {
	log zerolog.Logger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(log zerolog.Logger) *Analyzer {
	return &Analyzer{log: log.With().Str("component", "analyzer").Logger()}
}

// Analyze drives one optimization call. Market weights default to equal
// weighting when nil; the benchmark is optional and only unlocks the
// relative metrics.
func (a *Analyzer) Analyze(ds *returns.Dataset, marketWeights []float64, viewSet domain.ViewSet, benchmark []float64, params domain.Params) (*AnalysisResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	n := ds.Universe.N()
	if marketWeights == nil {
		marketWeights = domain.EqualWeights(n)
	}

	implied, err := equilibrium.ImpliedReturns(ds.Covariance, marketWeights, params.RiskAversion)
	if err != nil {
		return nil, err
	}

	posterior, err := views.Posterior(implied, ds.Covariance, params.Tau, viewSet, ds.Universe)
	if err != nil {
		return nil, err
	}

	lower, upper := params.BoundsFor(ds.Universe)
	solver := optimizer.NewSolver(a.log)
	weights, err := solver.MaxSharpe(posterior, ds.Covariance, params.RiskFreeRate, lower, upper)
	if err != nil {
		return nil, err
	}

	calc, err := riskmetrics.NewCalculator(params, a.log)
	if err != nil {
		return nil, err
	}
	report, err := calc.Compute(ds.Returns, weights, benchmark)
	if err != nil {
		return nil, err
	}

	a.log.Info().
		Int("assets", n).
		Int("views", len(viewSet)).
		Msg("Analysis completed")

	return &AnalysisResult{
		Symbols:          ds.Universe.Symbols(),
		ImpliedReturns:   implied,
		PosteriorReturns: posterior,
		Weights:          weights,
		Metrics:          report,
	}, nil
}
