package ohlc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mtlprog/stakingcalc/internal/domain"
)

// MinBuffer is the smallest allowed margin subtracted from the earliest reward day.
const MinBuffer = domain.Day

// Fetcher retrieves bars from a price venue.
type Fetcher interface {
	FetchOHLC(ctx context.Context, pair domain.TradingPair, since time.Time, intervalMinutes int) ([]domain.PriceBar, error)
	MaxLookback(intervalMinutes int) time.Duration
}

// PairFailure records a pair whose refresh failed.
type PairFailure struct {
	Pair string `json:"pair"`
	Err  error  `json:"-"`
}

// MarshalJSON includes the error text.
func (f PairFailure) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Pair  string `json:"pair"`
		Error string `json:"error"`
	}{f.Pair, f.Err.Error()})
}

// RefreshResult reports which pairs were replaced and which failed.
type RefreshResult struct {
	Since   time.Time     `json:"since"`
	Updated []string      `json:"updated"`
	Failed  []PairFailure `json:"failed"`
}

// Err joins the per-pair failures, or returns nil when every pair succeeded.
func (r RefreshResult) Err() error {
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", f.Pair, f.Err))
	}
	return errors.Join(errs...)
}

// Service keeps the price store current by pulling bars from the fetcher.
type Service struct {
	fetcher Fetcher
	repo    Repository
	now     func() time.Time
}

// NewService creates a new price cache service.
func NewService(fetcher Fetcher, repo Repository) *Service {
	return &Service{
		fetcher: fetcher,
		repo:    repo,
		now:     time.Now,
	}
}

// Repository returns the underlying store for read access.
func (s *Service) Repository() Repository {
	return s.repo
}

// Lookback is how far back the fetcher serves daily bars.
func (s *Service) Lookback() time.Duration {
	return s.fetcher.MaxLookback(domain.DailyInterval)
}

// Earliest is the oldest start the fetcher can still serve daily bars for.
func (s *Service) Earliest() time.Time {
	return s.now().Add(-s.Lookback())
}

// Refresh fetches daily bars since the given instant for every pair and replaces
// each stored series. A start older than the venue's history fails with
// *domain.WindowError before any request is made. A failing pair is recorded
// in the result and does not stop the others.
func (s *Service) Refresh(ctx context.Context, pairs []domain.TradingPair, since time.Time) (RefreshResult, error) {
	result := RefreshResult{
		Since:   since.UTC(),
		Updated: []string{},
		Failed:  []PairFailure{},
	}

	if earliest := s.Earliest(); since.Before(earliest) {
		return result, &domain.WindowError{Requested: since, Earliest: earliest}
	}

	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("refreshing prices: %w", err)
		}

		n, err := s.refreshPair(ctx, pair, since)
		if err != nil {
			slog.Warn("price refresh failed", "pair", pair.Symbol, "error", err)
			result.Failed = append(result.Failed, PairFailure{Pair: pair.Symbol, Err: err})
			continue
		}

		slog.Info("price series refreshed", "pair", pair.Symbol, "bars", n, "since", since.Format(domain.DateFormat))
		result.Updated = append(result.Updated, pair.Symbol)
	}

	return result, nil
}

func (s *Service) refreshPair(ctx context.Context, pair domain.TradingPair, since time.Time) (int, error) {
	bars, err := s.fetcher.FetchOHLC(ctx, pair, since, domain.DailyInterval)
	if err != nil {
		return 0, fmt.Errorf("fetching OHLC: %w", err)
	}
	if err := s.repo.Upsert(ctx, pair.Symbol, bars); err != nil {
		return 0, fmt.Errorf("storing OHLC: %w", err)
	}
	return len(bars), nil
}

// SinceFor returns the fetch start for rewards beginning on earliest: the reward
// day minus buffer. Buffers under MinBuffer are raised to it.
func SinceFor(earliest time.Time, buffer time.Duration) time.Time {
	buffer = max(buffer, MinBuffer)
	return domain.NormalizeDay(earliest).Add(-buffer)
}
