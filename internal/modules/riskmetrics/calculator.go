// Package riskmetrics scores a weight vector against historical returns.
// Every statistic is derived from the portfolio's realized return series
// r_p = R*w, never from per-asset returns directly; beta, alpha and the
// information ratio additionally consume a benchmark series aligned
// index-for-index with the return matrix.
package riskmetrics

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/quantfolio/internal/domain"
	"github.com/aristath/quantfolio/pkg/formulas"
)

// Report is a flat metric-name -> value mapping, recomputed fresh for any
// weight vector.
type Report map[string]float64

// Metric names appearing in a Report.
const (
	MetricAnnualReturn      = "annual_return"
	MetricCAGR              = "cagr"
	MetricVolatilityAnnual  = "volatility_annual"
	MetricVolatilityDaily   = "volatility_daily"
	MetricSharpeRatio       = "sharpe_ratio"
	MetricSortinoRatio      = "sortino_ratio"
	MetricCalmarRatio       = "calmar_ratio"
	MetricRecoveryFactor    = "recovery_factor"
	MetricMaxDrawdown       = "max_drawdown"
	MetricUlcerIndex        = "ulcer_index"
	MetricValueAtRisk       = "value_at_risk"
	MetricConditionalVaR    = "conditional_var"
	MetricSkewness          = "skewness"
	MetricKurtosis          = "kurtosis"
	MetricDownsideDeviation = "downside_deviation"
	MetricWinRate           = "win_rate"
	MetricProfitFactor      = "profit_factor"
	MetricPayoffRatio       = "payoff_ratio"
	MetricInformationRatio  = "information_ratio"
	MetricTrackingError     = "tracking_error"
	MetricBeta              = "beta"
	MetricAlpha             = "alpha"
)

// Calculator computes the fixed metric catalogue under one parameter set.
type Calculator struct {
	params domain.Params
	log    zerolog.Logger
}

// NewCalculator validates the parameters once and returns a calculator.
func NewCalculator(params domain.Params, log zerolog.Logger) (*Calculator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{
		params: params,
		log:    log.With().Str("component", "riskmetrics").Logger(),
	}, nil
}

// PortfolioSeries aggregates per-asset returns into the realized portfolio
// return series r_p = R*w.
func PortfolioSeries(rets mat.Matrix, weights []float64) ([]float64, error) {
	t, n := rets.Dims()
	if len(weights) != n {
		return nil, &domain.InvalidInputError{
			Field:  "weights",
			Reason: fmt.Sprintf("length %d does not match %d assets", len(weights), n),
		}
	}

	var series mat.VecDense
	series.MulVec(rets, mat.NewVecDense(n, weights))

	out := make([]float64, t)
	copy(out, series.RawVector().Data)
	return out, nil
}

// Compute evaluates the full catalogue for a weight vector. The benchmark
// series is optional; when present it must align with the return matrix
// row-for-row and unlocks information ratio, tracking error, beta and
// alpha. VaR and CVaR come from the empirical distribution (historical
// simulation); a sample below MinVaRObservations fails with
// InsufficientDataError instead of reporting a meaningless percentile.
func (c *Calculator) Compute(rets mat.Matrix, weights []float64, benchmark []float64) (Report, error) {
	series, err := PortfolioSeries(rets, weights)
	if err != nil {
		return nil, err
	}
	if len(series) < 2 {
		return nil, &domain.InsufficientDataError{Statistic: "risk metrics", Need: 2, Got: len(series)}
	}
	if benchmark != nil && len(benchmark) != len(series) {
		return nil, &domain.InvalidInputError{
			Field:  "benchmark",
			Reason: fmt.Sprintf("length %d does not align with %d return observations", len(benchmark), len(series)),
		}
	}

	ppy := c.params.PeriodsPerYear
	rf := c.params.RiskFreeRate

	varValue, err := ValueAtRisk(series, c.params.VaRConfidence)
	if err != nil {
		return nil, err
	}
	cvarValue := ConditionalVaR(series, varValue)

	report := Report{
		MetricAnnualReturn:      formulas.Mean(series) * float64(ppy),
		MetricCAGR:              formulas.CAGR(series, ppy),
		MetricVolatilityAnnual:  formulas.AnnualizedVolatility(series, ppy),
		MetricVolatilityDaily:   formulas.StdDev(series),
		MetricSharpeRatio:       SharpeRatio(series, rf, ppy),
		MetricSortinoRatio:      SortinoRatio(series, rf, ppy),
		MetricCalmarRatio:       CalmarRatio(series, ppy),
		MetricRecoveryFactor:    RecoveryFactor(series),
		MetricMaxDrawdown:       formulas.MaxDrawdown(series),
		MetricUlcerIndex:        formulas.UlcerIndex(series),
		MetricValueAtRisk:       varValue,
		MetricConditionalVaR:    cvarValue,
		MetricSkewness:          formulas.Skewness(series),
		MetricKurtosis:          formulas.ExcessKurtosis(series),
		MetricDownsideDeviation: DownsideDeviation(series, rf/float64(ppy)),
		MetricWinRate:           WinRate(series),
		MetricProfitFactor:      ProfitFactor(series),
		MetricPayoffRatio:       PayoffRatio(series),
	}

	if benchmark != nil {
		report[MetricInformationRatio] = InformationRatio(series, benchmark)
		report[MetricTrackingError] = TrackingError(series, benchmark)
		beta := Beta(series, benchmark)
		report[MetricBeta] = beta
		report[MetricAlpha] = Alpha(series, benchmark, rf, ppy)
	}

	c.log.Debug().
		Int("observations", len(series)).
		Bool("benchmark", benchmark != nil).
		Msg("Computed risk metrics report")

	return report, nil
}

// SharpeRatio is the annualized excess return per unit of volatility.
func SharpeRatio(series []float64, riskFree float64, periodsPerYear int) float64 {
	std := formulas.StdDev(series)
	if std == 0 {
		return 0
	}
	periodicRF := riskFree / float64(periodsPerYear)
	return (formulas.Mean(series) - periodicRF) / std * math.Sqrt(float64(periodsPerYear))
}

// SortinoRatio replaces total volatility with downside deviation below the
// periodic risk-free rate. With no downside observations it is +Inf.
func SortinoRatio(series []float64, riskFree float64, periodsPerYear int) float64 {
	periodicRF := riskFree / float64(periodsPerYear)
	dd := DownsideDeviation(series, periodicRF)
	if dd == 0 {
		return math.Inf(1)
	}
	return (formulas.Mean(series) - periodicRF) / dd * math.Sqrt(float64(periodsPerYear))
}

// DownsideDeviation is the root mean square of deviations below the target
// return, over the below-target observations.
func DownsideDeviation(series []float64, target float64) float64 {
	sumSq := 0.0
	count := 0
	for _, r := range series {
		if r < target {
			d := r - target
			sumSq += d * d
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sumSq / float64(count))
}

// CalmarRatio is CAGR over the magnitude of the maximum drawdown. With a
// flat-or-rising cumulative path (zero drawdown) it is +Inf.
func CalmarRatio(series []float64, periodsPerYear int) float64 {
	maxDD := formulas.MaxDrawdown(series)
	if maxDD == 0 {
		return math.Inf(1)
	}
	return formulas.CAGR(series, periodsPerYear) / -maxDD
}

// RecoveryFactor is the total compounded return over the magnitude of the
// maximum drawdown. Like the Calmar ratio it is +Inf on a path with zero
// drawdown.
func RecoveryFactor(series []float64) float64 {
	maxDD := formulas.MaxDrawdown(series)
	if maxDD == 0 {
		return math.Inf(1)
	}
	curve := formulas.CumulativeCurve(series)
	if len(curve) == 0 {
		return 0
	}
	total := curve[len(curve)-1] - 1
	return total / -maxDD
}

// ValueAtRisk is the empirical (1-confidence) quantile of the return
// distribution: the loss threshold not exceeded with the given
// probability. Historical simulation, not parametric.
func ValueAtRisk(series []float64, confidence float64) (float64, error) {
	if len(series) < domain.MinVaRObservations {
		return 0, &domain.InsufficientDataError{
			Statistic: fmt.Sprintf("VaR at %.0f%%", confidence*100),
			Need:      domain.MinVaRObservations,
			Got:       len(series),
		}
	}
	return formulas.Quantile(1-confidence, series), nil
}

// ConditionalVaR is the mean return given the VaR threshold is breached.
// Always <= the VaR at the same level.
func ConditionalVaR(series []float64, varValue float64) float64 {
	sum := 0.0
	count := 0
	for _, r := range series {
		if r <= varValue {
			sum += r
			count++
		}
	}
	if count == 0 {
		return varValue
	}
	return sum / float64(count)
}

// Beta is Cov(r_p, r_b) / Var(r_b).
func Beta(series, benchmark []float64) float64 {
	benchVar := formulas.Variance(benchmark)
	if benchVar == 0 {
		return 0
	}
	return formulas.Covariance(series, benchmark) / benchVar
}

// Alpha is Jensen's alpha, annualized: r_p - [rf + beta*(r_b - rf)].
func Alpha(series, benchmark []float64, riskFree float64, periodsPerYear int) float64 {
	beta := Beta(series, benchmark)
	portfolioAnnual := formulas.Mean(series) * float64(periodsPerYear)
	benchmarkAnnual := formulas.Mean(benchmark) * float64(periodsPerYear)
	return portfolioAnnual - (riskFree + beta*(benchmarkAnnual-riskFree))
}

// InformationRatio is mean active return over tracking error, on the
// periodic series.
func InformationRatio(series, benchmark []float64) float64 {
	active := activeReturns(series, benchmark)
	te := formulas.StdDev(active)
	if te == 0 {
		return 0
	}
	return formulas.Mean(active) / te
}

// TrackingError is the standard deviation of active returns.
func TrackingError(series, benchmark []float64) float64 {
	return formulas.StdDev(activeReturns(series, benchmark))
}

// WinRate is the share of positive periods.
func WinRate(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	wins := 0
	for _, r := range series {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(series))
}

// ProfitFactor is the ratio of summed gains to summed losses.
func ProfitFactor(series []float64) float64 {
	var gains, losses float64
	for _, r := range series {
		if r > 0 {
			gains += r
		} else if r < 0 {
			losses += r
		}
	}
	if losses == 0 {
		if gains > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return gains / -losses
}

// PayoffRatio is the average gain over the average loss magnitude.
func PayoffRatio(series []float64) float64 {
	var gainSum, lossSum float64
	var gainCount, lossCount int
	for _, r := range series {
		if r > 0 {
			gainSum += r
			gainCount++
		} else if r < 0 {
			lossSum += r
			lossCount++
		}
	}
	if lossCount == 0 {
		return math.Inf(1)
	}
	avgLoss := lossSum / float64(lossCount)
	avgGain := 0.0
	if gainCount > 0 {
		avgGain = gainSum / float64(gainCount)
	}
	return avgGain / -avgLoss
}

func activeReturns(series, benchmark []float64) []float64 {
	active := make([]float64, len(series))
	for i := range series {
		active[i] = series[i] - benchmark[i]
	}
	return active
}
