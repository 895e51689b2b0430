package export

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/quantfolio/internal/domain"
	"github.com/aristath/quantfolio/internal/modules/riskmetrics"
)

func TestWriteWeights(t *testing.T) {
	u, err := domain.NewUniverse([]string{"AAPL", "MSFT"})
	require.NoError(t, err)

	var buf strings.Builder
	require.NoError(t, WriteWeights(&buf, u, []float64{0.6, 0.4}))

	want := "asset,weight\nAAPL,0.6\nMSFT,0.4\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteWeightsLengthMismatch(t *testing.T) {
	u, err := domain.NewUniverse([]string{"AAPL", "MSFT"})
	require.NoError(t, err)

	var buf strings.Builder
	assert.Error(t, WriteWeights(&buf, u, []float64{1.0}))
}

func TestWriteMetricsIsSortedAndHandlesNonFinite(t *testing.T) {
	report := riskmetrics.Report{
		"sharpe_ratio":  1.25,
		"calmar_ratio":  math.Inf(1),
		"max_drawdown":  -0.18,
		"sortino_ratio": math.Inf(-1),
	}

	var buf strings.Builder
	require.NoError(t, WriteMetrics(&buf, report))

	want := "metric,value\n" +
		"calmar_ratio,Inf\n" +
		"max_drawdown,-0.18\n" +
		"sharpe_ratio,1.25\n" +
		"sortino_ratio,-Inf\n"
	assert.Equal(t, want, buf.String())
}
