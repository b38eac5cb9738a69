// Package report turns a raw ledger into a priced staking reward report.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/mtlprog/stakingcalc/internal/domain"
	"github.com/mtlprog/stakingcalc/internal/ledger"
	"github.com/mtlprog/stakingcalc/internal/ohlc"
	"github.com/mtlprog/stakingcalc/internal/valuation"
)

// ErrNoRewards is returned when a refresh is requested for a ledger without reward assets.
var ErrNoRewards = errors.New("ledger contains no staking rewards")

// Options selects the fiat and the reward-day window [From, To). Zero bounds are open.
type Options struct {
	Fiat domain.Fiat
	From time.Time
	To   time.Time
}

// Report is the presentation contract: the reward matrix, its valuation and per-asset summaries.
type Report struct {
	Fiat        domain.Fiat           `json:"fiat"`
	From        time.Time             `json:"from,omitzero"`
	To          time.Time             `json:"to,omitzero"`
	GeneratedAt time.Time             `json:"generatedAt"`
	Matrix      domain.RewardMatrix   `json:"matrix"`
	Valuation   valuation.Result      `json:"valuation"`
	Summaries   []domain.AssetSummary `json:"summaries"`
}

// Cache is the price cache the generator reads history depth from and refreshes.
type Cache interface {
	Lookback() time.Duration
	Refresh(ctx context.Context, pairs []domain.TradingPair, since time.Time) (ohlc.RefreshResult, error)
}

// Generator wires the ledger normalizer, price cache and valuation engine.
type Generator struct {
	cache  Cache
	valuer *valuation.Service
	buffer time.Duration
	now    func() time.Time
}

// NewGenerator creates a report generator. buffer is the margin fetched before
// the earliest reward day; values under one day are raised to one day.
func NewGenerator(cache Cache, valuer *valuation.Service, buffer time.Duration) *Generator {
	return &Generator{
		cache:  cache,
		valuer: valuer,
		buffer: max(buffer, ohlc.MinBuffer),
		now:    time.Now,
	}
}

// Generate normalizes the ledger, restricts it to the window, checks that the
// window is within price history and values it.
func (g *Generator) Generate(ctx context.Context, table ledger.Table, opts Options) (Report, error) {
	matrix, err := ledger.Normalize(table)
	if err != nil {
		return Report{}, fmt.Errorf("normalizing ledger: %w", err)
	}
	return g.GenerateFromMatrix(ctx, matrix, opts)
}

// GenerateFromMatrix is Generate for an already normalized ledger.
func (g *Generator) GenerateFromMatrix(ctx context.Context, matrix domain.RewardMatrix, opts Options) (Report, error) {
	if !opts.From.IsZero() && !opts.To.IsZero() && !opts.From.Before(opts.To) {
		return Report{}, fmt.Errorf("empty window: from %s is not before to %s",
			opts.From.Format(domain.DateFormat), opts.To.Format(domain.DateFormat))
	}

	windowed := matrix.Window(opts.From, opts.To)
	if earliest, ok := windowed.EarliestReward(); ok {
		start := ohlc.SinceFor(earliest, g.buffer)
		if err := valuation.CheckWindow(start, g.now(), g.cache.Lookback()); err != nil {
			return Report{}, err
		}
	}

	result, err := g.valuer.Valuate(ctx, windowed, opts.Fiat)
	if err != nil {
		return Report{}, fmt.Errorf("valuating rewards: %w", err)
	}

	slog.Info("report generated",
		"fiat", opts.Fiat,
		"days", windowed.Len(),
		"assets", len(result.Assets))

	return Report{
		Fiat:        opts.Fiat,
		From:        opts.From,
		To:          opts.To,
		GeneratedAt: g.now().UTC(),
		Matrix:      windowed,
		Valuation:   result,
		Summaries:   result.Summaries(),
	}, nil
}

// RefreshFor updates the stored prices of every reward asset in the matrix,
// starting one buffer before the earliest day a reward asset was received.
func (g *Generator) RefreshFor(ctx context.Context, matrix domain.RewardMatrix, fiat domain.Fiat) (ohlc.RefreshResult, error) {
	earliest, ok := matrix.EarliestReward()
	if !ok {
		return ohlc.RefreshResult{}, ErrNoRewards
	}

	pairs := lo.Map(matrix.RewardAssets(), func(a domain.Asset, _ int) domain.TradingPair {
		return domain.NewTradingPair(a, fiat)
	})
	return g.cache.Refresh(ctx, pairs, ohlc.SinceFor(earliest, g.buffer))
}
