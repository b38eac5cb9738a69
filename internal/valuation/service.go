// Package valuation prices reward quantities at same-day closes and derives the
// cumulative held versus sold-on-receipt series.
package valuation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/stakingcalc/internal/domain"
	"github.com/mtlprog/stakingcalc/internal/ohlc"
)

// PriceReader looks up the stored bar for an exact (pair, day).
type PriceReader interface {
	Get(ctx context.Context, pair string, day time.Time) (domain.PriceBar, error)
}

// AssetValuation is the priced series of one reward asset.
type AssetValuation struct {
	Asset   domain.Asset          `json:"asset"`
	Pair    string                `json:"pair"`
	Rows    []domain.ValuationRow `json:"rows"`
	Summary domain.AssetSummary   `json:"summary"`
}

// Result holds the valuation of every reward asset of a matrix, in column order.
type Result struct {
	Fiat   domain.Fiat      `json:"fiat"`
	Assets []AssetValuation `json:"assets"`
}

// Rows flattens all asset series, asset by asset.
func (r Result) Rows() []domain.ValuationRow {
	return lo.FlatMap(r.Assets, func(a AssetValuation, _ int) []domain.ValuationRow { return a.Rows })
}

// Summaries returns the per-asset summaries in column order.
func (r Result) Summaries() []domain.AssetSummary {
	return lo.Map(r.Assets, func(a AssetValuation, _ int) domain.AssetSummary { return a.Summary })
}

// Service values reward matrices against the price store.
type Service struct {
	prices PriceReader
}

// NewService creates a new valuation service.
func NewService(prices PriceReader) *Service {
	return &Service{prices: prices}
}

// Valuate prices each reward cell at its day's close in the given fiat.
// A missing bar halts the run with *domain.PriceMissingError and no result.
func (s *Service) Valuate(ctx context.Context, matrix domain.RewardMatrix, fiat domain.Fiat) (Result, error) {
	result := Result{Fiat: fiat, Assets: []AssetValuation{}}

	for _, asset := range matrix.RewardAssets() {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("valuating rewards: %w", err)
		}

		av, err := s.valuateAsset(ctx, matrix, asset, fiat)
		if err != nil {
			return Result{}, err
		}
		slog.Debug("asset valued", "asset", asset.ID, "pair", av.Pair, "events", len(av.Rows))
		result.Assets = append(result.Assets, av)
	}

	return result, nil
}

func (s *Service) valuateAsset(ctx context.Context, matrix domain.RewardMatrix, asset domain.Asset, fiat domain.Fiat) (AssetValuation, error) {
	pair := domain.NewTradingPair(asset, fiat)
	av := AssetValuation{Asset: asset, Pair: pair.Symbol, Rows: []domain.ValuationRow{}}

	cumAmount := decimal.Zero
	cumSold := decimal.Zero
	for day, amount := range matrix.Column(asset.ID) {
		day = domain.NormalizeDay(day)

		bar, err := s.prices.Get(ctx, pair.Symbol, day)
		if err != nil {
			if errors.Is(err, ohlc.ErrNotFound) {
				return AssetValuation{}, &domain.PriceMissingError{Pair: pair.Symbol, Day: day}
			}
			return AssetValuation{}, fmt.Errorf("reading %s close for %s: %w", pair.Symbol, day.Format(domain.DateFormat), err)
		}

		value := amount.Mul(bar.Close)
		cumAmount = cumAmount.Add(amount)
		cumSold = cumSold.Add(value)
		held := cumAmount.Mul(bar.Close)

		av.Rows = append(av.Rows, domain.ValuationRow{
			Day:                 day,
			Asset:               asset.ID,
			Pair:                pair.Symbol,
			Amount:              amount,
			Close:               bar.Close,
			Value:               value,
			CumulativeAmount:    cumAmount,
			CumulativeHeldValue: held,
			CumulativeSoldValue: cumSold,
			Difference:          held.Sub(cumSold),
		})
	}

	av.Summary = summarizeAsset(asset.ID, pair.Symbol, av.Rows)
	return av, nil
}

// CheckWindow fails with *domain.WindowError when start is older than the
// venue's history reaches back from now.
func CheckWindow(start, now time.Time, lookback time.Duration) error {
	earliest := now.Add(-lookback)
	if start.Before(earliest) {
		return &domain.WindowError{Requested: start, Earliest: earliest}
	}
	return nil
}
