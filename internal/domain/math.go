package domain

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const (
	fiatPrecision     = 2
	quantityPrecision = 6
)

// RoundFiat rounds a fiat value to display precision (2 decimal places).
func RoundFiat(d decimal.Decimal) decimal.Decimal {
	return d.Round(fiatPrecision)
}

// FormatQuantity rounds a reward quantity to 6 decimal places and strips trailing zeros.
func FormatQuantity(d decimal.Decimal) string {
	s := d.Round(quantityPrecision).StringFixed(quantityPrecision)
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}

// FormatFiat renders a fiat value with its currency symbol, e.g. "€60.00".
func FormatFiat(d decimal.Decimal, fiat Fiat) string {
	cents := RoundFiat(d).Shift(fiatPrecision).IntPart()
	return money.New(cents, string(fiat)).Display()
}
