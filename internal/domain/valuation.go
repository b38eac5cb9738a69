package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ValuationRow is the priced view of one reward cell. Values are full precision.
type ValuationRow struct {
	Day                 time.Time       `json:"day"`
	Asset               string          `json:"asset"`
	Pair                string          `json:"pair"`
	Amount              decimal.Decimal `json:"amount"`
	Close               decimal.Decimal `json:"close"`
	Value               decimal.Decimal `json:"value"`
	CumulativeAmount    decimal.Decimal `json:"cumulativeAmount"`
	CumulativeHeldValue decimal.Decimal `json:"cumulativeHeldValue"`
	CumulativeSoldValue decimal.Decimal `json:"cumulativeSoldValue"`
	Difference          decimal.Decimal `json:"difference"`
}

// AssetSummary holds the per-asset headline figures of a report.
// From and To are zero when the asset has no rewards in the selected window.
type AssetSummary struct {
	Asset            string          `json:"asset"`
	Pair             string          `json:"pair"`
	Events           int             `json:"events"`
	From             time.Time       `json:"from"`
	To               time.Time       `json:"to"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	LatestHeldValue  decimal.Decimal `json:"latestHeldValue"`
	LatestSoldValue  decimal.Decimal `json:"latestSoldValue"`
	LatestDifference decimal.Decimal `json:"latestDifference"`
}
