package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a signed amount in minor units (paise). JSON carries the raw
// integer; a quoted decimal such as "1250.50" is accepted on input.
type Money int64

// minorDigits is the number of decimal places held by one Money unit.
const minorDigits = 2

// ParseMoney parses a decimal string such as "1250.50" into minor units.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	shifted := d.Shift(minorDigits)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", s, minorDigits)
	}
	return Money(shifted.IntPart()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	if bytes.HasPrefix(b, []byte(`"`)) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := ParseMoney(s)
		if err != nil {
			return err
		}
		*m = v
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be an integer number of paise or a decimal string: %w", err)
	}
	*m = Money(n)
	return nil
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -minorDigits)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(minorDigits)
}

// Positive clamps negative amounts to zero.
func (m Money) Positive() Money {
	if m < 0 {
		return 0
	}
	return m
}

// MinMoney returns the smaller of a and b.
func MinMoney(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}
