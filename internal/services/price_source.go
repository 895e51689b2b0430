// Package services hosts the glue between external collaborators and the
// engine: the read-through price source that turns provider data into the
// aligned series the return builder requires.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/quantfolio/internal/clients/yahoo"
	"github.com/aristath/quantfolio/internal/database"
	"github.com/aristath/quantfolio/internal/modules/returns"
)

// HistoryProvider is the data-provider boundary: a per-asset daily close
// series for a symbol and date range.
type HistoryProvider interface {
	DailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]yahoo.PricePoint, error)
}

// PriceSource serves price series through the sqlite cache, fetching from
// the provider on a cache miss.
type PriceSource struct {
	provider HistoryProvider
	repo     *database.PriceRepository
	log      zerolog.Logger
}

// NewPriceSource creates a price source.
func NewPriceSource(provider HistoryProvider, repo *database.PriceRepository, log zerolog.Logger) *PriceSource {
	return &PriceSource{
		provider: provider,
		repo:     repo,
		log:      log.With().Str("component", "price_source").Logger(),
	}
}

// coverageLeeway absorbs weekends and holidays at the edges of a
// requested range when judging whether the cache spans it.
const coverageLeeway = 7 * 24 * time.Hour

// History returns a symbol's daily closes for the range. The cache serves
// the request only when it actually covers it; a fragment (fewer rows than
// the range's weekdays could plausibly produce, or a span stopping short
// of either edge) triggers a provider refresh instead of silently
// shrinking the dataset.
func (s *PriceSource) History(ctx context.Context, symbol string, start, end time.Time) ([]database.PricePoint, error) {
	count, err := s.repo.Count(symbol, start, end)
	if err != nil {
		return nil, err
	}
	if count < minCachedPoints(start, end) {
		s.log.Debug().
			Str("symbol", symbol).
			Int("cached", count).
			Msg("Cache too sparse for range, refreshing")
		return s.Refresh(ctx, symbol, start, end)
	}

	cached, err := s.repo.History(symbol, start, end)
	if err != nil {
		return nil, err
	}
	if !spanCovered(cached, start, end) {
		s.log.Debug().
			Str("symbol", symbol).
			Int("cached", count).
			Msg("Cache does not span range, refreshing")
		return s.Refresh(ctx, symbol, start, end)
	}
	return cached, nil
}

// minCachedPoints is the fewest cached closes a range may hold and still
// count as covered: half its weekdays, which tolerates market holidays
// and short provider histories without accepting a fragment.
func minCachedPoints(start, end time.Time) int {
	weekdays := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			weekdays++
		}
	}
	return weekdays / 2
}

// spanCovered reports whether the cached points reach both edges of the
// requested range, within the leeway.
func spanCovered(points []database.PricePoint, start, end time.Time) bool {
	if len(points) == 0 {
		return false
	}
	first := points[0].Date
	last := points[len(points)-1].Date
	return !first.After(start.Add(coverageLeeway)) && !last.Before(end.Add(-coverageLeeway))
}

// Refresh fetches a symbol's history from the provider and upserts it into
// the cache, bypassing any cached data.
func (s *PriceSource) Refresh(ctx context.Context, symbol string, start, end time.Time) ([]database.PricePoint, error) {
	fetched, err := s.provider.DailyHistory(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("provider fetch for %s: %w", symbol, err)
	}

	points := make([]database.PricePoint, len(fetched))
	for i, p := range fetched {
		points[i] = database.PricePoint{Date: p.Date, Close: p.Close}
	}

	if err := s.repo.Save(symbol, points); err != nil {
		return nil, err
	}
	return points, nil
}

// AlignedSeries fetches every symbol's history and intersects the series
// on dates present for all symbols, in chronological order. The return
// builder requires gap-free aligned input, and this is where gaps are
// resolved.
func (s *PriceSource) AlignedSeries(ctx context.Context, symbols []string, start, end time.Time) ([]returns.PriceSeries, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols requested")
	}

	histories := make(map[string]map[string]float64, len(symbols))
	var dates []string

	for i, symbol := range symbols {
		points, err := s.History(ctx, symbol, start, end)
		if err != nil {
			return nil, err
		}

		byDate := make(map[string]float64, len(points))
		for _, p := range points {
			byDate[p.Date.Format("2006-01-02")] = p.Close
		}
		histories[symbol] = byDate

		if i == 0 {
			for _, p := range points {
				dates = append(dates, p.Date.Format("2006-01-02"))
			}
		}
	}

	// Keep only dates every symbol has a close for.
	aligned := dates[:0]
	for _, d := range dates {
		ok := true
		for _, symbol := range symbols {
			if _, has := histories[symbol][d]; !has {
				ok = false
				break
			}
		}
		if ok {
			aligned = append(aligned, d)
		}
	}

	series := make([]returns.PriceSeries, len(symbols))
	for i, symbol := range symbols {
		prices := make([]float64, len(aligned))
		for j, d := range aligned {
			prices[j] = histories[symbol][d]
		}
		series[i] = returns.PriceSeries{Symbol: symbol, Prices: prices}
	}

	s.log.Debug().
		Int("symbols", len(symbols)).
		Int("aligned_dates", len(aligned)).
		Msg("Built aligned price series")

	return series, nil
}
