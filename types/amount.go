package types

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// Amount is a non-negative fixed-decimal money scalar. It is never a binary
// float: all construction paths go through decimal parsing or integer minor
// units, and all arithmetic is checked.
type Amount struct {
	value decimal.Decimal
}

// ZeroAmount is the additive identity.
var ZeroAmount = Amount{value: decimal.Zero}

// NewAmount wraps a decimal as an Amount, rejecting negatives.
func NewAmount(d decimal.Decimal) (Amount, error) {
	if d.IsNegative() {
		return Amount{}, &KitError{
			Code:    ErrInvalidAmount,
			Message: fmt.Sprintf("amount cannot be negative: %s", d),
		}
	}
	return Amount{value: d}, nil
}

// AmountFromString parses a decimal string into an Amount.
func AmountFromString(s string) (Amount, error) {
	if s == "" {
		return Amount{}, &KitError{
			Code:    ErrInvalidAmount,
			Message: "amount cannot be empty",
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, &KitError{
			Code:    ErrInvalidAmount,
			Message: fmt.Sprintf("invalid amount format: %v", err),
		}
	}
	return NewAmount(d)
}

// AmountFromMinorUnits builds an Amount from integer minor units, e.g.
// 1,000,000 USDC minor units (6 decimals) = 1 USDC.
func AmountFromMinorUnits(n int64, decimals int32) (Amount, error) {
	if n < 0 {
		return Amount{}, &KitError{
			Code:    ErrInvalidAmount,
			Message: fmt.Sprintf("minor units cannot be negative: %d", n),
		}
	}
	return Amount{value: decimal.New(n, -decimals)}, nil
}

// MustAmount parses a decimal string and panics on failure. For fixtures and
// tests only.
func MustAmount(s string) Amount {
	a, err := AmountFromString(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Add returns a+b.
func (a Amount) Add(b Amount) (Amount, error) {
	return NewAmount(a.value.Add(b.value))
}

// Sub returns a-b, failing if the result would be negative.
func (a Amount) Sub(b Amount) (Amount, error) {
	r := a.value.Sub(b.value)
	if r.IsNegative() {
		return Amount{}, &KitError{
			Code:    ErrArithmetic,
			Message: fmt.Sprintf("amount underflow: %s - %s", a.value, b.value),
		}
	}
	return Amount{value: r}, nil
}

// Mul returns a*b.
func (a Amount) Mul(b Amount) (Amount, error) {
	return NewAmount(a.value.Mul(b.value))
}

// Div returns a/b, failing on division by zero.
func (a Amount) Div(b Amount) (Amount, error) {
	if b.value.IsZero() {
		return Amount{}, &KitError{
			Code:    ErrArithmetic,
			Message: "division by zero",
		}
	}
	return NewAmount(a.value.Div(b.value))
}

// MinorUnits converts the amount to integer minor units at the given decimal
// precision, truncating any excess fractional digits. Fails if the result
// does not fit in an int64.
func (a Amount) MinorUnits(decimals int32) (int64, error) {
	shifted := a.value.Shift(decimals).Truncate(0)
	bi := shifted.BigInt()
	if bi.Cmp(big.NewInt(math.MaxInt64)) > 0 {
		return 0, &KitError{
			Code:    ErrArithmetic,
			Message: fmt.Sprintf("amount overflows minor units: %s", a.value),
		}
	}
	return bi.Int64(), nil
}

// Cmp compares two amounts: -1 if a<b, 0 if equal, 1 if a>b.
func (a Amount) Cmp(b Amount) int {
	return a.value.Cmp(b.value)
}

// Equal reports exact equality.
func (a Amount) Equal(b Amount) bool {
	return a.value.Equal(b.value)
}

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool {
	return a.value.IsZero()
}

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool {
	return a.value.IsPositive()
}

// Decimal returns the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal {
	return a.value
}

// String renders the canonical decimal-string form.
func (a Amount) String() string {
	return a.value.String()
}

// MarshalJSON serializes through the decimal-string form.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.value.String())
}

// UnmarshalJSON accepts either a JSON string or a bare number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Bare numeric form.
		s = string(data)
	}
	parsed, err := AmountFromString(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
