// Package core holds the transaction model shared by every layer.
//
// This file contains amount parsing and display formatting helpers used
// by the interaction boundary.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencySymbols gives the display prefix for each supported currency.
var CurrencySymbols = map[string]string{
	"MMK": "K",
	"THB": "฿",
	"USD": "$",
	"EUR": "€",
	"SGD": "S$",
}

// ParseAmount converts a user-entered amount string into a decimal.
//
// Both dot (12.34) and comma (12,34) separators are accepted. Signs are
// rejected: only strictly positive amounts are valid ledger input.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders an amount with its currency symbol, rounded to
// two decimal places for display.
func FormatAmount(d decimal.Decimal, currency string) string {
	sym, ok := CurrencySymbols[currency]
	if !ok {
		sym = currency + " "
	}
	return sym + d.Round(2).String()
}
