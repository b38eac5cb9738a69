package valuation

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/stakingcalc/internal/domain"
)

// Summarize groups valuation rows by asset, in first-seen order, and reports
// the latest cumulative figures of each.
func Summarize(rows []domain.ValuationRow) []domain.AssetSummary {
	groups := lo.GroupBy(rows, func(r domain.ValuationRow) string { return r.Asset })
	order := lo.Uniq(lo.Map(rows, func(r domain.ValuationRow, _ int) string { return r.Asset }))

	return lo.Map(order, func(asset string, _ int) domain.AssetSummary {
		g := groups[asset]
		return summarizeAsset(asset, g[0].Pair, g)
	})
}

// summarizeAsset expects rows of one asset in ascending day order. Empty rows
// give a zero summary.
func summarizeAsset(asset, pair string, rows []domain.ValuationRow) domain.AssetSummary {
	s := domain.AssetSummary{
		Asset:            asset,
		Pair:             pair,
		Events:           len(rows),
		TotalAmount:      decimal.Zero,
		LatestHeldValue:  decimal.Zero,
		LatestSoldValue:  decimal.Zero,
		LatestDifference: decimal.Zero,
	}
	if len(rows) == 0 {
		return s
	}

	first, last := rows[0], rows[len(rows)-1]
	s.From = first.Day
	s.To = last.Day
	s.TotalAmount = last.CumulativeAmount
	s.LatestHeldValue = last.CumulativeHeldValue
	s.LatestSoldValue = last.CumulativeSoldValue
	s.LatestDifference = last.Difference
	return s
}
