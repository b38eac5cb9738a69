package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyInterval is the bar size, in minutes, used for reward valuation.
const DailyInterval = 1440

// PriceBar is one daily OHLC record for a trading pair, keyed by (Pair, Day).
type PriceBar struct {
	Pair   string          `json:"ticker"`
	Day    time.Time       `json:"timestamp"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	VWAP   decimal.Decimal `json:"vwap"`
	Volume decimal.Decimal `json:"volume"`
	Count  int64           `json:"count"`
}

// PairCoverage describes which days are stored for a pair.
type PairCoverage struct {
	Pair  string    `json:"ticker"`
	First time.Time `json:"first"`
	Last  time.Time `json:"last"`
	Bars  int       `json:"bars"`
}
