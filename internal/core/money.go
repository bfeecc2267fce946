// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts typed by users
// (with or without currency symbol and thousands separators) and for
// formatting decimals as currency strings for the UI.
package core

import (
	"errors"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// CurrencyPlaces is the number of decimals used when presenting money.
const CurrencyPlaces = 2

// ParseCurrency converts a user-entered amount into a decimal.
//
// It accepts an optional leading "$", dot or comma as decimal separator and
// dot, comma or space as thousands separator. When both separators appear the
// last one is the decimal separator. A single separator followed by exactly
// three digits is read as a thousands separator. Negative values are rejected.
//
// Examples:
//   ParseCurrency("$20.000.000") -> 20000000
//   ParseCurrency("1.234,56")    -> 1234.56
//   ParseCurrency("1,234.56")    -> 1234.56
//   ParseCurrency("12,5")        -> 12.5
//   ParseCurrency("20.000")      -> 20000
func ParseCurrency(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		s = normalizeSingleSeparator(s, ".")
	case lastComma >= 0:
		s = normalizeSingleSeparator(s, ",")
	}

	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	if s == "." || strings.HasSuffix(s, ".") {
		return decimal.Zero, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// normalizeSingleSeparator handles amounts that use only one kind of separator.
func normalizeSingleSeparator(s, sep string) string {
	if strings.Count(s, sep) > 1 {
		return strings.ReplaceAll(s, sep, "")
	}
	idx := strings.Index(s, sep)
	// "0.875" is never a grouped thousand.
	if len(s)-idx-1 == 3 && idx > 0 && strings.Trim(s[:idx], "0") != "" {
		return strings.Replace(s, sep, "", 1)
	}
	return strings.Replace(s, sep, ".", 1)
}

// ParsePercent converts a user-entered percentage such as "1,5", "0.875" or
// "33.333%". Dot and comma are only ever decimal separators, so at most one
// may appear. Negative values are rejected.
func ParsePercent(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" || strings.Count(s, ".") > 1 || strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// RoundCurrency rounds half-up to two decimals. Only call it when presenting
// a value, never between calculation steps.
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPlaces)
}

// FormatCurrency formats a decimal as "$1.234.567,89".
func FormatCurrency(d decimal.Decimal) string {
	neg := d.IsNegative()
	if neg {
		d = d.Neg()
	}
	fixed := d.StringFixed(CurrencyPlaces)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	s := "$" + b.String() + "," + frac
	if neg {
		return "-" + s
	}
	return s
}
