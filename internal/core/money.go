// Package core provides money parsing and handling utilities.
//
// Money is backed by an arbitrary-precision decimal so that sums of shares
// never drift the way float64 accumulation does. Externally visible values
// are rounded to cents.
package core

import (
	"errors"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// CentPlaces is the number of fractional digits every visible amount is rounded to.
const CentPlaces = 2

var hundred = decimal.NewFromInt(100)

// Money is a signed decimal amount.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{d: decimal.Zero}

// NewMoney converts a float64 into Money using its shortest decimal representation.
func NewMoney(f float64) Money {
	return Money{d: decimal.NewFromFloat(f)}
}

// MoneyFromCents builds Money from an integer number of cents.
func MoneyFromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -CentPlaces)}
}

// ParseMoney converts a decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional leading sign. No rounding happens here; callers round when they
// need a visible value.
//
// Examples:
//
//	ParseMoney("12.34")  -> 12.34
//	ParseMoney("12,345") -> 12.345
//	ParseMoney("-5")     -> -5
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	body := strings.TrimLeft(s, "+-")
	if len(s)-len(body) > 1 || body == "" {
		return Zero, ErrInvalidAmount
	}
	if strings.Count(body, ".") > 1 {
		return Zero, ErrInvalidAmount
	}
	for _, r := range body {
		if r != '.' && !unicode.IsDigit(r) {
			return Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, ErrInvalidAmount
	}
	return Money{d: d}, nil
}

// MustParseMoney is ParseMoney for literals known to be valid.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic("core: invalid money literal " + s)
	}
	return m
}

// Round returns the amount rounded to cents, half away from zero.
func (m Money) Round() Money {
	return Money{d: m.d.Round(CentPlaces)}
}

// Cents returns the amount in cents after rounding.
func (m Money) Cents() int64 {
	return m.d.Round(CentPlaces).Shift(CentPlaces).IntPart()
}

// Decimal exposes the underlying decimal value.
func (m Money) Decimal() decimal.Decimal {
	return m.d
}

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }
func (m Money) Neg() Money        { return Money{d: m.d.Neg()} }
func (m Money) Sign() int         { return m.d.Sign() }
func (m Money) IsZero() bool      { return m.d.IsZero() }
func (m Money) Cmp(o Money) int   { return m.d.Cmp(o.d) }

// Equal compares the exact values, not the rounded ones.
func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

// String renders the amount with exactly two fractional digits.
func (m Money) String() string {
	return m.d.StringFixed(CentPlaces)
}

// Exact renders the amount without rounding; used for persistence.
func (m Money) Exact() string {
	return m.d.String()
}

// MarshalJSON emits the rounded amount as a quoted string ("33.34").
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted decimal strings.
func (m *Money) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return errors.New("money: null amount")
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return ErrInvalidAmount
	}
	m.d = d
	return nil
}

// Validate checks that the amount is usable as an expense total.
func (m Money) Validate() error {
	if m.d.Round(CentPlaces).Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
