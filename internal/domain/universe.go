package domain

import "fmt"

// Universe is an ordered set of asset symbols. Every vector and matrix in
// the engine is indexed by this order, which is fixed for the lifetime of
// one analysis. Lookups go through the explicit index map rather than
// relying on slice position at call sites.
type Universe struct {
	symbols []string
	index   map[string]int
}

// NewUniverse creates a universe from an ordered symbol list.
// Symbols must be non-empty and unique.
func NewUniverse(symbols []string) (*Universe, error) {
	if len(symbols) == 0 {
		return nil, &InvalidInputError{Field: "symbols", Reason: "universe must contain at least one asset"}
	}

	index := make(map[string]int, len(symbols))
	for i, s := range symbols {
		if s == "" {
			return nil, &InvalidInputError{Field: "symbols", Reason: fmt.Sprintf("empty symbol at position %d", i)}
		}
		if _, dup := index[s]; dup {
			return nil, &InvalidInputError{Field: "symbols", Reason: fmt.Sprintf("duplicate symbol %q", s)}
		}
		index[s] = i
	}

	owned := make([]string, len(symbols))
	copy(owned, symbols)

	return &Universe{symbols: owned, index: index}, nil
}

// N returns the number of assets.
func (u *Universe) N() int {
	return len(u.symbols)
}

// Index returns the matrix column for a symbol.
func (u *Universe) Index(symbol string) (int, bool) {
	i, ok := u.index[symbol]
	return i, ok
}

// Symbol returns the symbol at a column position.
func (u *Universe) Symbol(i int) string {
	return u.symbols[i]
}

// Symbols returns a copy of the ordered symbol list.
func (u *Universe) Symbols() []string {
	out := make([]string, len(u.symbols))
	copy(out, u.symbols)
	return out
}

// EqualWeights returns the 1/N market weight vector for n assets.
func EqualWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}
	return w
}
