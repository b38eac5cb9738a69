// Package kraken fetches daily OHLC bars from the Kraken public market-data API.
package kraken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/mtlprog/stakingcalc/internal/domain"
)

// maxBars is how many of the most recent bars the OHLC endpoint ever returns.
const maxBars = 720

// Client fetches OHLC bars from Kraken with retry on 429 and a client-side rate limit.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
}

// NewClient creates a new Kraken API client. requestsPerSecond <= 0 disables rate limiting.
func NewClient(baseURL string, timeout time.Duration, requestsPerSecond float64, maxRetries int, baseDelay time.Duration) *Client {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
}

// MaxLookback is how far back the venue serves bars of the given interval.
func (c *Client) MaxLookback(intervalMinutes int) time.Duration {
	return time.Duration(maxBars*intervalMinutes) * time.Minute
}

type ohlcResponse struct {
	Error  []string                   `json:"error"`
	Result map[string]json.RawMessage `json:"result"`
}

// FetchOHLC returns the bars for pair since the given instant, ascending by day.
// Coverage is bounded by the venue's own history limit (see MaxLookback).
// Any failure is returned as *domain.UpstreamError.
func (c *Client) FetchOHLC(ctx context.Context, pair domain.TradingPair, since time.Time, intervalMinutes int) ([]domain.PriceBar, error) {
	q := url.Values{}
	q.Set("pair", pair.Symbol)
	q.Set("interval", strconv.Itoa(intervalMinutes))
	q.Set("since", strconv.FormatInt(since.Unix(), 10))

	body, err := c.get(ctx, "/0/public/OHLC?"+q.Encode())
	if err != nil {
		return nil, &domain.UpstreamError{Pair: pair.Symbol, Err: err}
	}

	bars, err := parseOHLC(body, pair)
	if err != nil {
		return nil, &domain.UpstreamError{Pair: pair.Symbol, Err: err}
	}
	return bars, nil
}

func parseOHLC(body []byte, pair domain.TradingPair) ([]domain.PriceBar, error) {
	var resp ohlcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing OHLC response: %w", err)
	}
	if len(resp.Error) > 0 {
		return nil, fmt.Errorf("kraken error: %s", strings.Join(resp.Error, "; "))
	}

	raw, ok := resp.Result[pair.ResultKey]
	if !ok {
		raw, ok = resp.Result[pair.Symbol]
	}
	if !ok {
		return nil, fmt.Errorf("response has no series for %s", pair.ResultKey)
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("parsing OHLC series: %w", err)
	}

	bars := make([]domain.PriceBar, 0, len(rows))
	for i, row := range rows {
		bar, err := parseBar(row, pair.Symbol)
		if err != nil {
			return nil, fmt.Errorf("bar %d: %w", i, err)
		}
		bars = append(bars, bar)
	}

	slices.SortFunc(bars, func(a, b domain.PriceBar) int { return a.Day.Compare(b.Day) })
	return bars, nil
}

// parseBar decodes [time, open, high, low, close, vwap, volume, count].
func parseBar(row []json.RawMessage, symbol string) (domain.PriceBar, error) {
	if len(row) != 8 {
		return domain.PriceBar{}, fmt.Errorf("expected 8 fields, got %d", len(row))
	}

	var ts int64
	if err := json.Unmarshal(row[0], &ts); err != nil {
		return domain.PriceBar{}, fmt.Errorf("parsing timestamp: %w", err)
	}

	var prices [6]decimal.Decimal
	for i := range prices {
		d, err := decodeDecimal(row[i+1])
		if err != nil {
			return domain.PriceBar{}, fmt.Errorf("parsing field %d: %w", i+1, err)
		}
		prices[i] = d
	}

	var count int64
	if err := json.Unmarshal(row[7], &count); err != nil {
		return domain.PriceBar{}, fmt.Errorf("parsing trade count: %w", err)
	}

	return domain.PriceBar{
		Pair:   symbol,
		Day:    domain.DayFromUnix(ts),
		Open:   prices[0],
		High:   prices[1],
		Low:    prices[2],
		Close:  prices[3],
		VWAP:   prices[4],
		Volume: prices[5],
		Count:  count,
	}, nil
}

// decodeDecimal accepts both quoted ("2000.5") and bare (2000.5) numbers.
func decodeDecimal(raw json.RawMessage) (decimal.Decimal, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return decimal.NewFromString(s)
	}
	return decimal.NewFromString(string(raw))
}

// get performs a rate-limited GET request with retry on 429.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	endpoint := c.baseURL + path

	var lastErr error
	for attempt := range c.maxRetries + 1 {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("executing request: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("HTTP 429 at %s (attempt %d/%d)", endpoint, attempt+1, c.maxRetries+1)
			if attempt < c.maxRetries {
				delay := c.baseDelay * time.Duration(1<<uint(attempt))
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
				continue
			}
			return nil, lastErr
		}

		return nil, fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, endpoint, string(body))
	}

	if lastErr == nil {
		lastErr = errors.New("no attempts made")
	}
	return nil, lastErr
}
