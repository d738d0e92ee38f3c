package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is an amount in minor units (cents).
//
// It marshals to JSON as a plain number with two decimals so cached and
// returned snapshots never carry a database-specific decimal type.
type Money int64

// NewMoney converts a decimal amount into Money, rounding half away from zero.
func NewMoney(amount float64) Money {
	return Money(math.Round(amount * 100))
}

// maxWholeUnits keeps whole*100+99 inside int64.
const maxWholeUnits = (math.MaxInt64 - 99) / 100

// ParseMoney parses a decimal string such as "14.50" or "-1.5". At most one
// leading sign and two fraction digits are accepted.
func ParseMoney(s string) (Money, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, fmt.Errorf("invalid money value %q", s)
	}

	body := raw
	neg := false
	switch body[0] {
	case '-':
		neg = true
		body = body[1:]
	case '+':
		body = body[1:]
	}

	whole, frac, hasDot := strings.Cut(body, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("invalid money value %q", raw)
	}
	if hasDot && frac == "" {
		return 0, fmt.Errorf("invalid money value %q: missing decimal digits", raw)
	}
	if !isDigits(whole) || !isDigits(frac) {
		return 0, fmt.Errorf("invalid money value %q: unexpected character", raw)
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("invalid money value %q: more than two decimal places", raw)
	}
	if whole == "" {
		whole = "0"
	}
	for len(frac) < 2 {
		frac += "0"
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w > maxWholeUnits {
		return 0, fmt.Errorf("invalid money value %q: out of range", raw)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid money value %q: %w", raw, err)
	}

	cents := w*100 + f
	if neg {
		cents = -cents
	}
	return Money(cents), nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Float64 returns the amount in major units.
func (m Money) Float64() float64 {
	return float64(m) / 100
}

// Mul multiplies the amount by a quantity.
func (m Money) Mul(qty int) Money {
	return m * Money(qty)
}

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		*m = 0
		return nil
	}
	v, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// UnmarshalYAML accepts plain scalars such as 5 or 4.50 in fixture files.
func (m *Money) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
