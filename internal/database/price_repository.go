package database

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// PricePoint is one cached daily close.
type PricePoint struct {
	Date  time.Time
	Close float64
}

// PriceRepository stores and serves daily close series from the cache.
type PriceRepository struct {
	db  *DB
	log zerolog.Logger
}

// NewPriceRepository creates a new price repository.
func NewPriceRepository(db *DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		db:  db,
		log: log.With().Str("component", "price_repository").Logger(),
	}
}

// Save upserts a symbol's price points.
func (r *PriceRepository) Save(symbol string, points []PricePoint) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO price_history (symbol, date, close)
		VALUES (?, ?, ?)
		ON CONFLICT(symbol, date) DO UPDATE SET close = excluded.close
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(symbol, p.Date.Format("2006-01-02"), p.Close); err != nil {
			return fmt.Errorf("failed to insert price for %s: %w", symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit prices: %w", err)
	}

	r.log.Debug().
		Str("symbol", symbol).
		Int("points", len(points)).
		Msg("Saved price history")

	return nil
}

// History returns the cached daily closes for a symbol in a date range,
// chronologically ordered.
func (r *PriceRepository) History(symbol string, start, end time.Time) ([]PricePoint, error) {
	rows, err := r.db.Query(`
		SELECT date, close
		FROM price_history
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, symbol, start.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var points []PricePoint
	for rows.Next() {
		var dateStr string
		var close float64
		if err := rows.Scan(&dateStr, &close); err != nil {
			return nil, fmt.Errorf("failed to scan price row: %w", err)
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse cached date %q: %w", dateStr, err)
		}
		points = append(points, PricePoint{Date: date, Close: close})
	}

	return points, rows.Err()
}

// Count returns how many points are cached for a symbol in a range.
func (r *PriceRepository) Count(symbol string, start, end time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*)
		FROM price_history
		WHERE symbol = ? AND date >= ? AND date <= ?
	`, symbol, start.Format("2006-01-02"), end.Format("2006-01-02")).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count price history: %w", err)
	}
	return count, nil
}
