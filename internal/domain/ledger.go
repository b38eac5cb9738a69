package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RewardTypeMarker is the substring of the ledger "type" column that marks a reward row.
// The match is literal and case-sensitive.
const RewardTypeMarker = "staking"

// LedgerRow is one line of an exchange ledger export.
type LedgerRow struct {
	TxID    string          `json:"txid"`
	RefID   string          `json:"refid"`
	Time    time.Time       `json:"time"`
	Type    string          `json:"type"`
	Subtype string          `json:"subtype"`
	AClass  string          `json:"aclass"`
	Asset   string          `json:"asset"`
	Amount  decimal.Decimal `json:"amount"`
	Fee     string          `json:"fee"`
	Balance string          `json:"balance"`
}

// RewardEvent is the sum of all reward rows for one asset on one day.
type RewardEvent struct {
	Day    time.Time       `json:"day"`
	Asset  Asset           `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
}
