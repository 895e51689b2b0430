// Package yahoo fetches daily price history from the Yahoo Finance chart
// API. It is the engine's default data provider; the core never talks to
// it directly and only ever sees aligned price series.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const chartBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// Client is a Yahoo Finance chart API client
type Client struct {
	client  *http.Client
	baseURL string
	log     zerolog.Logger
}

// NewClient creates a new Yahoo Finance client
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: chartBaseURL,
		log:     log.With().Str("client", "yahoo").Logger(),
	}
}

// PricePoint is one daily close as returned by the provider.
type PricePoint struct {
	Date  time.Time
	Close float64
}

// chartResponse mirrors the subset of the chart API payload we read.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// DailyHistory fetches daily closes for a symbol in [start, end], with
// retry and exponential backoff. Days with a missing close are dropped;
// gap handling beyond that belongs to the caller.
func (c *Client) DailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]PricePoint, error) {
	const maxRetries = 3

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		points, err := c.fetchChart(ctx, symbol, start, end)
		if err == nil {
			return points, nil
		}
		lastErr = err

		if attempt < maxRetries-1 {
			wait := time.Duration(1<<uint(attempt)) * time.Second
			c.log.Warn().Err(err).
				Str("symbol", symbol).
				Int("attempt", attempt+1).
				Dur("wait", wait).
				Msg("Failed to fetch price history, retrying")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	return nil, fmt.Errorf("failed to fetch history for %s after %d attempts: %w", symbol, maxRetries, lastErr)
}

func (c *Client) fetchChart(ctx context.Context, symbol string, start, end time.Time) ([]PricePoint, error) {
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, url.PathEscape(symbol), url.Values{
		"period1":  {fmt.Sprintf("%d", start.Unix())},
		"period2":  {fmt.Sprintf("%d", end.Unix())},
		"interval": {"1d"},
		"events":   {"history"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; quantfolio/1.0)")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("chart API returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode chart response: %w", err)
	}

	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error %s: %s", parsed.Chart.Error.Code, parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, fmt.Errorf("no chart data for %s", symbol)
	}

	result := parsed.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no quote data for %s", symbol)
	}
	closes := result.Indicators.Quote[0].Close

	points := make([]PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue // market holiday or missing close
		}
		points = append(points, PricePoint{
			Date:  time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Close: *closes[i],
		})
	}

	c.log.Debug().
		Str("symbol", symbol).
		Int("points", len(points)).
		Msg("Fetched price history")

	return points, nil
}
