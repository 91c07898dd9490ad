package types

import (
	"fmt"
	"strings"
)

// Currency is the closed set of currencies the toolkit understands.
type Currency string

const (
	CurrencyUSDC Currency = "USDC"
	CurrencySOL  Currency = "SOL"
)

// Decimals returns the number of minor-unit decimal places for the currency
// (6 for USDC, 9 for SOL).
func (c Currency) Decimals() int32 {
	switch c {
	case CurrencyUSDC:
		return 6
	case CurrencySOL:
		return 9
	default:
		return 0
	}
}

func (c Currency) String() string {
	return string(c)
}

// ParseCurrency parses a currency tag case-insensitively.
func ParseCurrency(s string) (Currency, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "USDC":
		return CurrencyUSDC, nil
	case "SOL":
		return CurrencySOL, nil
	default:
		return "", &KitError{
			Code:    ErrInvalidCurrency,
			Message: fmt.Sprintf("unsupported currency: %s", s),
		}
	}
}
