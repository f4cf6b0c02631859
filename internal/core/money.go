// Package core defines the domain model shared by the ingestion,
// categorization and budgeting components.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a fixed-point monetary amount stored as integer cents.
// All arithmetic happens on cents; decimal conversion is confined to
// parsing and presentation.
type Money struct {
	Cents int64
}

// ParseMoney parses a decimal amount string into Money. It accepts dot or
// comma decimal separators and tolerates apostrophe or space thousands
// grouping as found in Swiss bank exports ("1'234.56"). The third decimal
// place rounds half-up. The sign is preserved.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, " ", "")
	// A comma is a decimal separator only when no dot is present.
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	s = strings.ReplaceAll(s, ",", "")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return FromDecimal(d), nil
}

// FromDecimal converts a decimal amount to Money, rounding half-up to cents.
func FromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Shift(2).Round(0).IntPart()}
}

// Decimal returns the amount as a two-decimal value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Abs returns the unsigned magnitude.
func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

func (m Money) IsZero() bool     { return m.Cents == 0 }
func (m Money) IsNegative() bool { return m.Cents < 0 }

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// String formats the amount with two decimals, e.g. "42.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Float returns the amount as float64 for presentation only.
func (m Money) Float() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

// MarshalJSON renders the amount as a plain two-decimal JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().StringFixed(2)), nil
}

// UnmarshalJSON accepts both numbers and quoted decimal strings.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		m.Cents = 0
		return nil
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	m.Cents = parsed.Cents
	return nil
}
