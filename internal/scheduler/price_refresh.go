package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/quantfolio/internal/services"
)

// PriceRefreshJob re-fetches the configured symbols into the price cache
// so analyses run against current history without blocking on the
// provider.
type PriceRefreshJob struct {
	source   *services.PriceSource
	symbols  []string
	lookback time.Duration
	log      zerolog.Logger
}

// NewPriceRefreshJob creates a refresh job covering the trailing lookback
// period for each symbol.
func NewPriceRefreshJob(source *services.PriceSource, symbols []string, lookback time.Duration, log zerolog.Logger) *PriceRefreshJob {
	return &PriceRefreshJob{
		source:   source,
		symbols:  symbols,
		lookback: lookback,
		log:      log.With().Str("job", "price_refresh").Logger(),
	}
}

// Name returns the job name
func (j *PriceRefreshJob) Name() string {
	return "price_refresh"
}

// Run refreshes every configured symbol. A single symbol failure is logged
// and the rest still refresh.
func (j *PriceRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	end := time.Now()
	start := end.Add(-j.lookback)

	var lastErr error
	for _, symbol := range j.symbols {
		if _, err := j.source.Refresh(ctx, symbol, start, end); err != nil {
			j.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to refresh symbol")
			lastErr = err
		}
	}

	return lastErr
}
