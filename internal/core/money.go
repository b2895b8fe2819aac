// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings and
// JSON, and converting between cents and decimal representations.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// maxCents bounds amounts well below int64 overflow when summing a user's records.
const maxCents = int64(1_000_000_000_00)

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. The result is always positive cents.
// Returns an error for invalid formats, negative values, or zero amounts.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil (rounds up)
//	ParseDecimalToCents("12.344") -> 1234, nil (rounds down)
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	m, err := MoneyFromDecimal(d)
	if err != nil {
		return 0, err
	}
	return m.Cents, nil
}

// MoneyFromDecimal rounds d to cents. Only positive amounts are accepted.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Round(2).Shift(2)
	if !cents.IsPositive() || cents.GreaterThan(decimal.NewFromInt(maxCents)) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Decimal returns the amount as a two-place decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) Validate() error {
	if m.Cents <= 0 || m.Cents > maxCents {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// String formats the amount as dollars, e.g. "$12.34" or "-$3.00".
func (m Money) String() string {
	if m.Cents < 0 {
		return "-$" + Money{Cents: -m.Cents}.Decimal().StringFixed(2)
	}
	return "$" + m.Decimal().StringFixed(2)
}

// MarshalJSON writes the amount as a plain JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().StringFixed(2)), nil
}

// UnmarshalJSON accepts numbers and numeric strings. The sign is checked by
// Validate; magnitudes above the maximum amount are rejected here.
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return ErrInvalidAmount
	}
	cents := d.Round(2).Shift(2)
	if cents.Abs().GreaterThan(decimal.NewFromInt(maxCents)) {
		return ErrInvalidAmount
	}
	m.Cents = cents.IntPart()
	return nil
}
