package server

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/quantfolio/internal/domain"
	"github.com/aristath/quantfolio/internal/modules/backtest"
	"github.com/aristath/quantfolio/internal/modules/returns"
	"github.com/aristath/quantfolio/internal/services"
)

func testServer() *Server {
	return New(Config{
		Port:     0,
		Log:      zerolog.Nop(),
		Analyzer: services.NewAnalyzer(zerolog.Nop()),
	})
}

func inlineSeries(length int) []returns.PriceSeries {
	series := []returns.PriceSeries{
		{Symbol: "AAPL", Prices: make([]float64, length)},
		{Symbol: "MSFT", Prices: make([]float64, length)},
	}
	p0, p1 := 100.0, 250.0
	for i := 0; i < length; i++ {
		p0 *= 1 + 0.001 + 0.02*math.Sin(float64(i))
		p1 *= 1 + 0.0005 + 0.015*math.Cos(float64(i)*1.3)
		series[0].Prices[i] = p0
		series[1].Prices[i] = p1
	}
	return series
}

func postJSON(t *testing.T, s *Server, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestAnalyzeEndpointWithInlineSeries(t *testing.T) {
	s := testServer()

	rec := postJSON(t, s, "/api/analyze", analyzeRequest{
		Series: inlineSeries(returns.MinObservations + 30),
		Views:  domain.ViewSet{{Symbol: "AAPL", Return: 0.15, Confidence: 0.8}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result services.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Weights, 2)
	assert.InDelta(t, 1.0, result.Weights[0]+result.Weights[1], 1e-6)
	assert.NotEmpty(t, result.Metrics)
}

func TestAnalyzeEndpointRejectsMalformedJSON(t *testing.T) {
	s := testServer()

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeEndpointRequiresSeriesOrSymbols(t *testing.T) {
	s := testServer()

	rec := postJSON(t, s, "/api/analyze", analyzeRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeEndpointMapsInsufficientDataTo422(t *testing.T) {
	s := testServer()

	rec := postJSON(t, s, "/api/analyze", analyzeRequest{
		Series: inlineSeries(10),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAnalyzeEndpointCSVFormat(t *testing.T) {
	s := testServer()

	body, err := json.Marshal(analyzeRequest{Series: inlineSeries(returns.MinObservations + 30)})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze?format=csv", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "asset,weight")
}

func TestBacktestEndpoint(t *testing.T) {
	s := testServer()

	rec := postJSON(t, s, "/api/backtest", backtestRequest{
		analyzeRequest: analyzeRequest{Series: inlineSeries(101)},
		Backtest: backtest.Config{
			WindowSize:    30,
			RebalanceStep: 25,
			Strategy:      backtest.StrategyEqualWeight,
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var run backtest.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Greater(t, run.Succeeded, 0)
	assert.Len(t, run.Windows, run.Succeeded+run.Skipped)
}

func TestBacktestEndpointRejectsUnknownStrategy(t *testing.T) {
	s := testServer()

	rec := postJSON(t, s, "/api/backtest", backtestRequest{
		analyzeRequest: analyzeRequest{Series: inlineSeries(101)},
		Backtest: backtest.Config{
			WindowSize:    30,
			RebalanceStep: 25,
			Strategy:      "momentum",
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
