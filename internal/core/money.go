// Package core provides the bill and suggestion domain types.
//
// Amounts are decimal.Decimal throughout; this file holds the parsing and
// display helpers shared by the views and the export pipeline.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the symbol prefixed to every displayed amount.
const DefaultCurrency Currency = "Rs"

type Currency string

func (c Currency) symbol() string {
	if s := strings.TrimSpace(string(c)); s != "" {
		return s
	}
	return string(DefaultCurrency)
}

// Format renders d without forcing decimals, e.g. "Rs 1200" or "Rs 99.5".
func (c Currency) Format(d decimal.Decimal) string {
	return c.symbol() + " " + d.String()
}

// FormatFixed renders d with two decimals, e.g. "Rs 10000.00".
func (c Currency) FormatFixed(d decimal.Decimal) string {
	return c.symbol() + " " + d.StringFixed(2)
}

// ParseAmount parses user input such as "1200", "1200.50" or "1200,50".
// Negative values are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
