package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUniverse(t *testing.T) {
	tests := []struct {
		name    string
		symbols []string
		wantErr bool
	}{
		{"valid", []string{"AAPL", "MSFT", "GOOG"}, false},
		{"single asset", []string{"SPY"}, false},
		{"empty list", []string{}, true},
		{"duplicate symbol", []string{"AAPL", "AAPL"}, true},
		{"empty symbol", []string{"AAPL", ""}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := NewUniverse(tt.symbols)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, u)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.symbols), u.N())
		})
	}
}

func TestUniverseIndexing(t *testing.T) {
	u, err := NewUniverse([]string{"AAPL", "MSFT", "GOOG"})
	require.NoError(t, err)

	i, ok := u.Index("MSFT")
	assert.True(t, ok)
	assert.Equal(t, 1, i)

	_, ok = u.Index("TSLA")
	assert.False(t, ok)

	assert.Equal(t, "GOOG", u.Symbol(2))
	assert.Equal(t, []string{"AAPL", "MSFT", "GOOG"}, u.Symbols())
}

func TestUniverseSymbolsIsACopy(t *testing.T) {
	u, err := NewUniverse([]string{"AAPL", "MSFT"})
	require.NoError(t, err)

	symbols := u.Symbols()
	symbols[0] = "mutated"
	assert.Equal(t, "AAPL", u.Symbol(0))
}

func TestEqualWeights(t *testing.T) {
	w := EqualWeights(4)
	require.Len(t, w, 4)

	sum := 0.0
	for _, v := range w {
		assert.InDelta(t, 0.25, v, 1e-12)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}
