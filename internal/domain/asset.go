package domain

import (
	"fmt"
	"strings"
)

// RewardMarker is the ticker suffix the exchange uses for staking reward accrual assets ("ETH2.S", "DOT.S").
const RewardMarker = ".S"

// Asset is a ledger asset identifier split into its base ticker and reward flag.
type Asset struct {
	ID                 string `json:"id"`
	Base               string `json:"base"`
	IsRewardDerivative bool   `json:"isRewardDerivative"`
}

// ParseAsset builds an Asset from a raw ledger identifier.
// Identifiers containing RewardMarker are reward derivatives; the base is everything before the marker.
func ParseAsset(id string) Asset {
	id = strings.TrimSpace(id)
	base, _, found := strings.Cut(id, RewardMarker)
	return Asset{ID: id, Base: base, IsRewardDerivative: found}
}

// String returns the raw ledger identifier.
func (a Asset) String() string {
	return a.ID
}

// Fiat is a quote currency code.
type Fiat string

const (
	FiatEUR Fiat = "EUR"
	FiatUSD Fiat = "USD"
)

// SupportedFiats lists the quote currencies reports can be priced in.
var SupportedFiats = []Fiat{FiatEUR, FiatUSD}

// ParseFiat validates a currency code (case-insensitive).
func ParseFiat(s string) (Fiat, error) {
	f := Fiat(strings.ToUpper(strings.TrimSpace(s)))
	for _, supported := range SupportedFiats {
		if f == supported {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported fiat currency %q", s)
}

// bitcoinBases are the identifiers the exchange uses for bitcoin in ledgers.
var bitcoinBases = map[string]bool{
	"XBT":  true,
	"XXBT": true,
	"BTC":  true,
}

// TradingPair identifies a market on the price venue.
// Symbol is what the OHLC endpoint is queried with and what the store is keyed by;
// ResultKey is the key the venue answers under, which differs for legacy listings.
type TradingPair struct {
	Base      string `json:"base"`
	Fiat      Fiat   `json:"fiat"`
	Symbol    string `json:"symbol"`
	ResultKey string `json:"resultKey"`
}

// NewTradingPair derives the market for an asset quoted in fiat.
// Bitcoin is listed under the compound symbol XXBTZ<fiat> for USD and EUR.
func NewTradingPair(asset Asset, fiat Fiat) TradingPair {
	base := strings.ToUpper(asset.Base)
	if bitcoinBases[base] && (fiat == FiatUSD || fiat == FiatEUR) {
		return TradingPair{
			Base:      "XBT",
			Fiat:      fiat,
			Symbol:    "XBT" + string(fiat),
			ResultKey: "XXBTZ" + string(fiat),
		}
	}
	symbol := base + string(fiat)
	return TradingPair{Base: base, Fiat: fiat, Symbol: symbol, ResultKey: symbol}
}

// bitcoinResultPrefix is the base part of the venue's compound bitcoin keys ("XXBTZEUR").
const bitcoinResultPrefix = "XXBTZ"

// PairFromSymbol rebuilds a pair from a stored symbol such as "ETH2EUR" or "XBTUSD".
// The venue's compound bitcoin key ("XXBTZEUR") maps to the same pair as "XBTEUR".
func PairFromSymbol(symbol string) (TradingPair, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, f := range SupportedFiats {
		if base, ok := strings.CutSuffix(symbol, string(f)); ok && base != "" {
			if base == bitcoinResultPrefix {
				base = "XBT"
			}
			return NewTradingPair(Asset{ID: base, Base: base}, f), nil
		}
	}
	return TradingPair{}, fmt.Errorf("cannot derive pair from symbol %q", symbol)
}

// String returns the pair symbol.
func (p TradingPair) String() string {
	return p.Symbol
}
