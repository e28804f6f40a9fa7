// Package core provides money parsing and handling utilities.
//
// Amounts are kept as signed integer cents: positive values are credits,
// negative values are debits.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

var ErrInvalidAmount = errors.New("invalid amount")

type Money struct {
	Cents int64
}

// ParseAmount converts a signed decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, an
// optional leading sign, and performs half-up rounding on the third decimal.
//
// Examples:
//
//	ParseAmount("12.34")   -> 1234
//	ParseAmount("-12,34")  -> -1234
//	ParseAmount("12.345")  -> 1235 (rounds up)
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")

	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Money{}, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" && fracPart == "" {
		return Money{}, ErrInvalidAmount
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return Money{}, ErrInvalidAmount
		}
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64-1 {
		return Money{}, ErrInvalidAmount
	}

	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}

	cents := iv*100 + fracCents
	if negative {
		cents = -cents
	}
	return Money{Cents: cents}, nil
}

// MustParseAmount is ParseAmount for literals known to be valid.
func MustParseAmount(s string) Money {
	m, err := ParseAmount(s)
	if err != nil {
		panic(fmt.Sprintf("core: invalid amount literal %q", s))
	}
	return m
}

func (m Money) IsZero() bool { return m.Cents == 0 }

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

// Float64 returns the amount in currency units, for display only.
func (m Money) Float64() float64 {
	return float64(m.Cents) / 100.0
}

// String renders the amount with two decimals, e.g. "-12.30".
func (m Money) String() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// Average divides total by count rounding half away from zero.
// A zero count yields zero.
func Average(total Money, count int) Money {
	if count <= 0 {
		return Money{}
	}
	n := int64(count)
	q, r := total.Cents/n, total.Cents%n
	if r < 0 {
		r = -r
	}
	if 2*r >= n {
		if total.Cents < 0 {
			q--
		} else {
			q++
		}
	}
	return Money{Cents: q}
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var raw json.Number
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = json.Number(s)
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseAmount(raw.String())
	if err != nil {
		return fmt.Errorf("amount %q: %w", raw, err)
	}
	*m = parsed
	return nil
}
