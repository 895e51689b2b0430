// Package backtest validates an allocation strategy by walk-forward
// simulation: weights are trained on a sliding historical window and
// scored on the periods immediately after it, so no test data is ever
// visible to the estimation pipeline for the same iteration.
package backtest

import (
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/quantfolio/internal/domain"
	"github.com/aristath/quantfolio/internal/modules/equilibrium"
	"github.com/aristath/quantfolio/internal/modules/optimizer"
	"github.com/aristath/quantfolio/internal/modules/returns"
	"github.com/aristath/quantfolio/internal/modules/riskmetrics"
	"github.com/aristath/quantfolio/internal/modules/views"
)

// Strategy selects how per-window weights are derived.
type Strategy string

const (
	// StrategyBlackLitterman runs equilibrium -> view integration ->
	// max-Sharpe optimization on each training window.
	StrategyBlackLitterman Strategy = "black_litterman"
	// StrategyMeanVariance optimizes on raw historical mean returns.
	StrategyMeanVariance Strategy = "mean_variance"
	// StrategyEqualWeight is the 1/N baseline.
	StrategyEqualWeight Strategy = "equal_weight"
)

// Config controls the window geometry and the per-window strategy.
type Config struct {
	WindowSize    int              `json:"window_size"`    // training periods per window
	RebalanceStep int              `json:"rebalance_step"` // periods between rebalances, also the test length
	Strategy      Strategy         `json:"strategy"`
	Views         domain.ViewSet   `json:"views,omitempty"`          // used by black_litterman only
	MarketWeights []float64        `json:"market_weights,omitempty"` // nil = equal weights
	MaxParallel   int              `json:"max_parallel"`             // 0 = GOMAXPROCS
}

// DefaultConfig is one trading year of training rebalanced quarterly.
func DefaultConfig() Config {
	return Config{
		WindowSize:    252,
		RebalanceStep: 63,
		Strategy:      StrategyBlackLitterman,
	}
}

// Window is one train/test index tuple over the return matrix rows.
// Training covers [TrainStart, TrainEnd), testing [TestStart, TestEnd).
type Window struct {
	Index      int `json:"index"`
	TrainStart int `json:"train_start"`
	TrainEnd   int `json:"train_end"`
	TestStart  int `json:"test_start"`
	TestEnd    int `json:"test_end"`
}

// WindowResult is the per-window outcome: either weights plus out-of-sample
// metrics, or a skip with its reason.
type WindowResult struct {
	Window
	Weights    []float64          `json:"weights,omitempty"`
	Metrics    riskmetrics.Report `json:"metrics,omitempty"`
	Skipped    bool               `json:"skipped"`
	SkipReason string             `json:"skip_reason,omitempty"`
}

// Run is the ordered sequence of window results.
type Run struct {
	Windows   []WindowResult `json:"windows"`
	Succeeded int            `json:"succeeded"`
	Skipped   int            `json:"skipped"`
}

// Engine drives the estimation pipeline across sliding windows.
type Engine struct {
	params domain.Params
	solver *optimizer.Solver
	calc   *riskmetrics.Calculator
	log    zerolog.Logger
}

// NewEngine validates the parameters and wires the pipeline components.
func NewEngine(params domain.Params, log zerolog.Logger) (*Engine, error) {
	calc, err := riskmetrics.NewCalculator(params, log)
	if err != nil {
		return nil, err
	}
	return &Engine{
		params: params,
		solver: optimizer.NewSolver(log),
		calc:   calc,
		log:    log.With().Str("component", "backtest").Logger(),
	}, nil
}

// Run executes the rolling backtest. Per-window failures are caught and
// recorded as skips; the run itself fails only when the data admits no
// window at all or every window failed. Windows are evaluated in parallel
// and merged by index, so repeated runs on identical inputs produce
// identical output.
func (e *Engine) Run(ds *returns.Dataset, benchmark []float64, cfg Config) (*Run, error) {
	t := ds.T()
	n := ds.Universe.N()

	if err := validateConfig(cfg, n); err != nil {
		return nil, err
	}
	if benchmark != nil && len(benchmark) != t {
		return nil, &domain.InvalidInputError{
			Field:  "benchmark",
			Reason: fmt.Sprintf("length %d does not align with %d return observations", len(benchmark), t),
		}
	}

	marketWeights := cfg.MarketWeights
	if marketWeights == nil {
		marketWeights = domain.EqualWeights(n)
	}

	windows := planWindows(t, cfg.WindowSize, cfg.RebalanceStep)
	if len(windows) == 0 {
		return nil, &domain.InsufficientDataError{
			Statistic: "backtest windows",
			Need:      cfg.WindowSize + 1,
			Got:       t,
		}
	}

	limit := cfg.MaxParallel
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	results := make([]WindowResult, len(windows))
	var g errgroup.Group
	g.SetLimit(limit)
	for _, win := range windows {
		win := win
		g.Go(func() error {
			results[win.Index] = e.evaluateWindow(ds, benchmark, cfg, marketWeights, win)
			return nil
		})
	}
	_ = g.Wait() // window failures are recorded, never returned

	run := &Run{Windows: results}
	for _, r := range results {
		if r.Skipped {
			run.Skipped++
		} else {
			run.Succeeded++
		}
	}

	e.log.Info().
		Int("windows", len(windows)).
		Int("succeeded", run.Succeeded).
		Int("skipped", run.Skipped).
		Str("strategy", string(cfg.Strategy)).
		Msg("Backtest completed")

	if run.Succeeded == 0 {
		return nil, fmt.Errorf("backtest produced no result: all %d windows failed (first: %s)",
			len(windows), results[0].SkipReason)
	}

	return run, nil
}

// evaluateWindow trains weights on rows strictly before the test slice and
// scores them on the test slice. Any pipeline failure becomes a recorded
// skip.
func (e *Engine) evaluateWindow(ds *returns.Dataset, benchmark []float64, cfg Config, marketWeights []float64, win Window) WindowResult {
	n := ds.Universe.N()
	train := ds.Returns.Slice(win.TrainStart, win.TrainEnd, 0, n)

	mu, cov := returns.SampleStats(train, ds.PeriodsPerYear)
	lower, upper := e.params.BoundsFor(ds.Universe)

	var weights []float64
	var err error

	switch cfg.Strategy {
	case StrategyEqualWeight:
		weights = domain.EqualWeights(n)

	case StrategyMeanVariance:
		weights, err = e.solver.MaxSharpe(mu, cov, e.params.RiskFreeRate, lower, upper)

	case StrategyBlackLitterman:
		var pi, posterior []float64
		pi, err = equilibrium.ImpliedReturns(cov, marketWeights, e.params.RiskAversion)
		if err == nil {
			posterior, err = views.Posterior(pi, cov, e.params.Tau, cfg.Views, ds.Universe)
		}
		if err == nil {
			weights, err = e.solver.MaxSharpe(posterior, cov, e.params.RiskFreeRate, lower, upper)
		}
	}

	if err != nil {
		e.log.Warn().
			Int("window", win.Index).
			Err(err).
			Msg("Skipping backtest window")
		return WindowResult{Window: win, Skipped: true, SkipReason: err.Error()}
	}

	test := ds.Returns.Slice(win.TestStart, win.TestEnd, 0, n)
	var benchSlice []float64
	if benchmark != nil {
		benchSlice = benchmark[win.TestStart:win.TestEnd]
	}

	report, err := e.calc.Compute(test, weights, benchSlice)
	if err != nil {
		e.log.Warn().
			Int("window", win.Index).
			Err(err).
			Msg("Skipping backtest window: metrics failed")
		return WindowResult{Window: win, Skipped: true, SkipReason: err.Error()}
	}

	return WindowResult{Window: win, Weights: weights, Metrics: report}
}

// planWindows slides the train/test boundary forward by the rebalance step
// until the next training window would extend past the end of the data or
// the test slice would be empty.
func planWindows(t, windowSize, step int) []Window {
	var windows []Window
	for m := 0; ; m++ {
		trainStart := m * step
		trainEnd := trainStart + windowSize
		testStart := trainEnd
		testEnd := testStart + step
		if testEnd > t {
			testEnd = t
		}
		if trainEnd >= t || testEnd <= testStart {
			break
		}
		windows = append(windows, Window{
			Index:      m,
			TrainStart: trainStart,
			TrainEnd:   trainEnd,
			TestStart:  testStart,
			TestEnd:    testEnd,
		})
	}
	return windows
}

func validateConfig(cfg Config, n int) error {
	if cfg.WindowSize <= 0 {
		return &domain.InvalidInputError{Field: "window_size", Reason: fmt.Sprintf("must be > 0, got %d", cfg.WindowSize)}
	}
	if cfg.RebalanceStep <= 0 {
		return &domain.InvalidInputError{Field: "rebalance_step", Reason: fmt.Sprintf("must be > 0, got %d", cfg.RebalanceStep)}
	}
	switch cfg.Strategy {
	case StrategyBlackLitterman, StrategyMeanVariance, StrategyEqualWeight:
	default:
		return &domain.InvalidInputError{Field: "strategy", Reason: fmt.Sprintf("unknown strategy %q", cfg.Strategy)}
	}
	if cfg.MarketWeights != nil && len(cfg.MarketWeights) != n {
		return &domain.InvalidInputError{
			Field:  "market_weights",
			Reason: fmt.Sprintf("length %d does not match %d assets", len(cfg.MarketWeights), n),
		}
	}
	return nil
}
