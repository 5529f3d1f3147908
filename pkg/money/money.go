// Package money holds integer minor-unit amounts. No floating point is used
// anywhere in price arithmetic.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrInvalidAmount is returned when a decimal amount cannot be parsed.
	ErrInvalidAmount = errors.New("money: invalid amount")
	// ErrOverflow is returned when arithmetic leaves the int64 range.
	ErrOverflow = errors.New("money: amount overflows")
)

// Money is an amount in the smallest unit of Currency (paise, cents).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// New returns Money with a normalised currency code.
func New(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: normaliseCurrency(currency)}
}

// ParseMajor parses a decimal major-unit string ("1.00", "12.5", "7") into
// minor units. More fractional digits than the currency supports is an error.
func ParseMajor(value, currency string) (Money, error) {
	currency = normaliseCurrency(currency)
	value = strings.TrimSpace(value)
	if value == "" {
		return Money{}, ErrInvalidAmount
	}

	negative := strings.HasPrefix(value, "-")
	value = strings.TrimPrefix(value, "-")

	whole, frac, _ := strings.Cut(value, ".")
	decimals := Decimals(currency)
	if len(frac) > decimals {
		return Money{}, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, value, decimals)
	}
	if whole == "" {
		whole = "0"
	}
	frac += strings.Repeat("0", decimals-len(frac))

	digits := whole + frac
	for _, r := range digits {
		if r < '0' || r > '9' {
			return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
		}
	}
	amount, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if negative {
		amount = -amount
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// Multiply scales the amount by qty, failing with ErrOverflow instead of wrapping.
func (m Money) Multiply(qty int64) (Money, error) {
	if m.Amount != 0 && qty != 0 {
		if (m.Amount == -1 && qty == math.MinInt64) || (qty == -1 && m.Amount == math.MinInt64) {
			return Money{}, ErrOverflow
		}
		product := m.Amount * qty
		if product/qty != m.Amount {
			return Money{}, ErrOverflow
		}
		return Money{Amount: product, Currency: m.Currency}, nil
	}
	return Money{Amount: 0, Currency: m.Currency}, nil
}

// Add sums two amounts of the same currency.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("money: currency mismatch: %s != %s", m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Discount removes percent from the amount, rounding half-up to the minor unit.
// Positive amounts never drop below one minor unit.
func (m Money) Discount(percent int) Money {
	if percent <= 0 {
		return m
	}
	if percent > 100 {
		percent = 100
	}
	scaled := m.Amount * int64(100-percent)
	amount := (scaled + 50) / 100
	if m.Amount > 0 && amount < 1 {
		amount = 1
	}
	return Money{Amount: amount, Currency: m.Currency}
}

// IsPositive reports whether the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// FormatMajor renders the amount in major units without a symbol, e.g. "7.50".
func (m Money) FormatMajor() string {
	decimals := Decimals(m.Currency)
	if decimals == 0 {
		return strconv.FormatInt(m.Amount, 10)
	}

	divisor := int64(1)
	for range decimals {
		divisor *= 10
	}

	abs := m.Amount
	sign := ""
	if abs < 0 {
		abs = -abs
		sign = "-"
	}
	return fmt.Sprintf("%s%d.%0*d", sign, abs/divisor, decimals, abs%divisor)
}

func (m Money) String() string {
	return strings.ToUpper(m.Currency) + " " + m.FormatMajor()
}

// MarshalJSON adds a display field next to the raw minor-unit amount.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.FormatMajor(),
	})
}

// Decimals returns the number of minor-unit digits for currency.
func Decimals(currency string) int {
	switch normaliseCurrency(currency) {
	case "jpy", "krw", "vnd", "clp", "pyg", "idr":
		return 0
	default:
		return 2
	}
}

func normaliseCurrency(currency string) string {
	return strings.ToLower(strings.TrimSpace(currency))
}
