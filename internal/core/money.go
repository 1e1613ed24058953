// Package core provides money parsing and handling utilities.
//
// Amounts are integer cents everywhere; decimal text is only accepted and
// produced at the edges through ParseAmount and FormatCents.
package core

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrencyMarker is appended by FormatCents.
const DefaultCurrencyMarker = "€"

// MaxAmountCents bounds every amount accepted from a user, in either
// direction. It leaves int64 headroom for sums of many amounts.
const MaxAmountCents int64 = 1_000_000_000_000_000

// Decimal exponents outside this window are rejected before any rescaling.
const (
	minExponent = -20
	maxExponent = 20
)

var (
	hundred  = decimal.NewFromInt(100)
	maxCents = decimal.NewFromInt(MaxAmountCents)
	minCents = decimal.NewFromInt(-MaxAmountCents)
)

// ParseAmount converts human-entered decimal text to cents.
//
// Both dot (12.34) and comma (12,34) separators are accepted, surrounding
// whitespace is ignored and an optional sign is allowed. The value is
// multiplied by 100 and rounded half away from zero to the nearest cent.
// Results beyond ±MaxAmountCents are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234, nil
//	ParseAmount("12,34")  -> 1234, nil
//	ParseAmount("-5")     -> -500, nil
//	ParseAmount("12.345") -> 1235, nil
//	ParseAmount("abc")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if exp := d.Exponent(); exp < minExponent || exp > maxExponent {
		return 0, ErrInvalidAmount
	}
	cents := d.Mul(hundred).Round(0)
	if cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// ParseMoney is ParseAmount for amounts that must not be negative.
func ParseMoney(s string) (Money, error) {
	cents, err := ParseAmount(s)
	if err != nil {
		return Money{}, err
	}
	m := Money{Cents: cents}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// FormatCents renders cents as "12.34€"; negative values get a leading minus.
func FormatCents(cents int64) string {
	return FormatCentsWith(cents, DefaultCurrencyMarker)
}

// FormatCentsWith renders cents followed by the given currency marker.
func FormatCentsWith(cents int64, marker string) string {
	var b strings.Builder
	abs := uint64(cents)
	if cents < 0 {
		b.WriteByte('-')
		abs = uint64(^cents) + 1
	}
	b.WriteString(strconv.FormatUint(abs/100, 10))
	b.WriteByte('.')
	frac := abs % 100
	if frac < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatUint(frac, 10))
	b.WriteString(marker)
	return b.String()
}

// AddCents returns a+b, or ErrAmountOverflow when the sum does not fit in
// an int64.
func AddCents(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, ErrAmountOverflow
	}
	return sum, nil
}

func (m Money) String() string {
	return FormatCents(m.Cents)
}
