package models

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Round2 rounds a monetary value to 2 decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FormatCurrency renders d as "$" followed by exactly two decimals.
func FormatCurrency(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// FormatAmount renders a float amount; NaN and infinities render as $0.00.
func FormatAmount(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return FormatCurrency(decimal.Zero)
	}
	return FormatCurrency(decimal.NewFromFloat(v))
}

// FormatText renders user-entered text as currency; anything that does not
// parse as a number renders as $0.00.
func FormatText(s string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return FormatCurrency(decimal.Zero)
	}
	return FormatCurrency(d)
}
