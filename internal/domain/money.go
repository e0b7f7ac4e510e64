package domain

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is a monetary amount in minor units with two fraction digits.
// All arithmetic is integer-only; 25000.00 is stored as 2500000.
type Money int64

const moneyScale = 100

// MaxMoney is the largest amount a NUMERIC(14,2) column holds.
const MaxMoney Money = 99999999999999

var (
	// ErrInvalidMoney is returned when a decimal string cannot be parsed as Money.
	ErrInvalidMoney = errors.New("invalid money amount")

	// ErrMoneyOverflow is returned when arithmetic leaves the storable range.
	ErrMoneyOverflow = errors.New("money amount out of range")
)

// NewMoney creates Money from a whole number of major units.
func NewMoney(major int64) Money { return Money(major * moneyScale) }

// ParseMoney parses a decimal string such as "250", "250.5" or "250.50".
// More than two fraction digits is rejected rather than rounded.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidMoney
	}

	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" || !isDigits(whole) || (hasFrac && (frac == "" || !isDigits(frac))) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("%w: %q has more than two fraction digits", ErrInvalidMoney, s)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	major, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || major > math.MaxInt64/moneyScale-1 {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidMoney, s)
	}
	minor, _ := strconv.ParseInt(frac, 10, 64)

	amount := major*moneyScale + minor
	if negative {
		amount = -amount
	}
	return Money(amount), nil
}

// MustParseMoney is ParseMoney for constants and tests. It panics on bad input.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Mul multiplies the amount by an integer quantity. Results outside
// ±MaxMoney fail with ErrMoneyOverflow.
func (m Money) Mul(qty int) (Money, error) {
	a, q := abs64(int64(m)), abs64(int64(qty))
	if a < 0 || q < 0 || a > int64(MaxMoney) || (q != 0 && a > int64(MaxMoney)/q) {
		return 0, fmt.Errorf("%w: %s x %d", ErrMoneyOverflow, m, qty)
	}
	return m * Money(qty), nil
}

// Add returns m + o, failing with ErrMoneyOverflow outside ±MaxMoney.
func (m Money) Add(o Money) (Money, error) {
	if !m.InRange() || !o.InRange() || !(m + o).InRange() {
		return 0, fmt.Errorf("%w: %s + %s", ErrMoneyOverflow, m, o)
	}
	return m + o, nil
}

// InRange reports whether the amount fits a NUMERIC(14,2) column.
func (m Money) InRange() bool { return m >= -MaxMoney && m <= MaxMoney }

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// IsPositive reports whether the amount is greater than zero.
func (m Money) IsPositive() bool { return m > 0 }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m < 0 }

// String formats the amount with exactly two fraction digits, e.g. "250.00".
func (m Money) String() string {
	amount := int64(m)
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/moneyScale, amount%moneyScale)
}

// MarshalJSON renders the amount as a decimal string to avoid float rounding in clients.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(m.String())), nil
}

// UnmarshalJSON accepts either a decimal string or a bare JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer; amounts are stored as NUMERIC(14,2).
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner for NUMERIC columns.
func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return m.scanString(string(v))
	case string:
		return m.scanString(v)
	case int64:
		*m = NewMoney(v)
		return nil
	case nil:
		*m = 0
		return nil
	default:
		return fmt.Errorf("money: cannot scan %T", src)
	}
}

func (m *Money) scanString(s string) error {
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Sum adds up amounts.
func Sum(values ...Money) Money {
	var total Money
	for _, v := range values {
		total += v
	}
	return total
}
