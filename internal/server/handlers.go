package server

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/aristath/quantfolio/internal/domain"
	"github.com/aristath/quantfolio/internal/export"
	"github.com/aristath/quantfolio/internal/modules/backtest"
	"github.com/aristath/quantfolio/internal/modules/returns"
	"github.com/aristath/quantfolio/internal/modules/riskmetrics"
)

// analyzeRequest accepts either inline price series or symbols plus a date
// range resolved through the price source. The return convention is always
// explicit and defaults to simple returns.
type analyzeRequest struct {
	Symbols       []string              `json:"symbols,omitempty"`
	Start         string                `json:"start,omitempty"` // YYYY-MM-DD, with symbols
	End           string                `json:"end,omitempty"`
	Series        []returns.PriceSeries `json:"series,omitempty"`
	Convention    string                `json:"convention,omitempty"` // "simple" (default) or "log"
	MarketWeights []float64             `json:"market_weights,omitempty"`
	Views         domain.ViewSet        `json:"views,omitempty"`
	Benchmark     []float64             `json:"benchmark,omitempty"`
	Params        *domain.Params        `json:"params,omitempty"`
}

type backtestRequest struct {
	analyzeRequest
	Backtest backtest.Config `json:"backtest"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	ds, params, err := s.buildDataset(r, &req)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}

	result, err := s.analyzer.Analyze(ds, req.MarketWeights, req.Views, req.Benchmark, params)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		if r.URL.Query().Get("table") == "metrics" {
			_ = export.WriteMetrics(w, result.Metrics)
			return
		}
		_ = export.WriteWeights(w, ds.Universe, result.Weights)
		return
	}

	result.Metrics = finiteOnly(result.Metrics)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req backtestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	ds, params, err := s.buildDataset(r, &req.analyzeRequest)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}

	cfg := req.Backtest
	if cfg.WindowSize == 0 && cfg.RebalanceStep == 0 && cfg.Strategy == "" {
		cfg = backtest.DefaultConfig()
	}
	if cfg.Strategy == "" {
		cfg.Strategy = backtest.StrategyBlackLitterman
	}
	if cfg.Views == nil {
		cfg.Views = req.Views
	}
	if cfg.MarketWeights == nil {
		cfg.MarketWeights = req.MarketWeights
	}

	engine, err := backtest.NewEngine(params, s.log)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}

	run, err := engine.Run(ds, req.Benchmark, cfg)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}

	for i := range run.Windows {
		run.Windows[i].Metrics = finiteOnly(run.Windows[i].Metrics)
	}

	// Partial results are distinguishable from full ones through the
	// succeeded/skipped counts and per-window skip reasons.
	writeJSON(w, http.StatusOK, run)
}

// buildDataset resolves the request into a return dataset, fetching prices
// through the cache when symbols are given instead of inline series.
func (s *Server) buildDataset(r *http.Request, req *analyzeRequest) (*returns.Dataset, domain.Params, error) {
	params := domain.DefaultParams()
	if req.Params != nil {
		params = *req.Params
	}
	if err := params.Validate(); err != nil {
		return nil, params, err
	}

	convention := returns.ConventionSimple
	if req.Convention != "" {
		convention = returns.Convention(req.Convention)
	}

	series := req.Series
	if len(series) == 0 {
		if len(req.Symbols) == 0 {
			return nil, params, &domain.InvalidInputError{Field: "series", Reason: "either series or symbols must be supplied"}
		}
		start, err := time.Parse("2006-01-02", req.Start)
		if err != nil {
			return nil, params, &domain.InvalidInputError{Field: "start", Reason: "expected YYYY-MM-DD"}
		}
		end, err := time.Parse("2006-01-02", req.End)
		if err != nil {
			return nil, params, &domain.InvalidInputError{Field: "end", Reason: "expected YYYY-MM-DD"}
		}
		series, err = s.prices.AlignedSeries(r.Context(), req.Symbols, start, end)
		if err != nil {
			return nil, params, err
		}
	}

	builder, err := returns.NewBuilder(convention, params.PeriodsPerYear, s.log)
	if err != nil {
		return nil, params, err
	}
	ds, err := builder.Build(series)
	if err != nil {
		return nil, params, err
	}
	return ds, params, nil
}

// writeCoreError maps the engine's error taxonomy onto HTTP statuses:
// caller mistakes are 400s, data/numerical conditions are 422s, anything
// else is a 500.
func (s *Server) writeCoreError(w http.ResponseWriter, err error) {
	var invalid *domain.InvalidInputError
	var degenerate *domain.DegenerateInputError
	var singular *domain.SingularMatrixError
	var optimization *domain.OptimizationFailureError
	var insufficient *domain.InsufficientDataError

	switch {
	case errors.As(err, &invalid), errors.As(err, &degenerate):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &singular), errors.As(err, &optimization), errors.As(err, &insufficient):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.log.Error().Err(err).Msg("Unhandled engine error")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// finiteOnly strips non-finite metric values, which JSON cannot encode.
// CSV export keeps them.
func finiteOnly(report riskmetrics.Report) riskmetrics.Report {
	out := make(riskmetrics.Report, len(report))
	for name, v := range report {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[name] = v
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
