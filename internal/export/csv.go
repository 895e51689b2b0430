// Package export serializes engine output to tabular CSV: one
// (asset, weight) table for allocations and one (metric, value) table for
// risk reports.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/aristath/quantfolio/internal/domain"
	"github.com/aristath/quantfolio/internal/modules/riskmetrics"
)

// WriteWeights writes an (asset, weight) table in universe order.
func WriteWeights(w io.Writer, universe *domain.Universe, weights []float64) error {
	if len(weights) != universe.N() {
		return fmt.Errorf("weights length %d does not match %d assets", len(weights), universe.N())
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"asset", "weight"}); err != nil {
		return err
	}
	for i, symbol := range universe.Symbols() {
		if err := cw.Write([]string{symbol, formatValue(weights[i])}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteMetrics writes a (metric, value) table sorted by metric name so
// output is reproducible.
func WriteMetrics(w io.Writer, report riskmetrics.Report) error {
	names := make([]string, 0, len(report))
	for name := range report {
		names = append(names, name)
	}
	sort.Strings(names)

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"metric", "value"}); err != nil {
		return err
	}
	for _, name := range names {
		if err := cw.Write([]string{name, formatValue(report[name])}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	if math.IsInf(v, 1) {
		return "Inf"
	}
	if math.IsInf(v, -1) {
		return "-Inf"
	}
	return fmt.Sprintf("%.10g", v)
}
