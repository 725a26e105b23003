// Package core provides amount parsing and formatting.
//
// Amounts are currency-agnostic decimals. Input coming from the form may
// use either a dot or a comma as decimal separator.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-entered decimal string to a non-negative decimal.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Signs, exponents, thousands separators and more than one separator are rejected,
// as are amounts with more significant digits than a float64 cell keeps.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("0")     -> 0, nil
//	ParseAmount("-1")    -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	digits := 0
	for _, r := range s {
		if r == '.' {
			continue
		}
		if !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
		digits++
	}
	if digits == 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	d, err := decimal.NewFromString(strings.TrimSuffix(s, "."))
	if err != nil || d.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	if !AmountFitsCell(d) {
		return decimal.Zero, ErrAmountPrecision
	}
	return d, nil
}

// AmountFitsCell reports whether d survives a round trip through a
// spreadsheet number cell, which holds a float64.
func AmountFitsCell(d decimal.Decimal) bool {
	return d.Equal(decimal.NewFromFloat(d.InexactFloat64()))
}

// FormatAmount renders an amount with two decimals for display.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
