package invoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/x402dev/x402kit/types"
)

// Render encodes an invoice into the WWW-Authenticate challenge line:
//
//	x402-solana recipient=<addr> amount=<dec> currency=<cur> memo=<memo> network=<net>
//
// Field order is fixed, values are unquoted and whitespace-free.
func Render(inv *types.Invoice) string {
	return fmt.Sprintf("%s recipient=%s amount=%s currency=%s memo=%s network=%s",
		types.Scheme,
		inv.Recipient,
		inv.Amount,
		inv.Currency,
		inv.Memo,
		inv.Network,
	)
}

// Parse decodes a WWW-Authenticate challenge back into an invoice. Unknown
// trailing key=value pairs are tolerated for forward compatibility. The
// returned invoice carries the parse time as its creation timestamp; callers
// needing wire-level round-trips should compare rendered forms.
func Parse(header string, now time.Time) (*types.Invoice, error) {
	fields := strings.Fields(header)
	if len(fields) == 0 {
		return nil, &types.KitError{
			Code:    types.ErrProtocol,
			Message: "empty WWW-Authenticate header",
		}
	}
	if fields[0] != types.Scheme {
		return nil, &types.KitError{
			Code:    types.ErrProtocol,
			Message: fmt.Sprintf("unexpected scheme %q, want %q", fields[0], types.Scheme),
		}
	}

	kv := make(map[string]string, len(fields)-1)
	for _, f := range fields[1:] {
		key, value, ok := strings.Cut(f, "=")
		if !ok || key == "" {
			return nil, &types.KitError{
				Code:    types.ErrProtocol,
				Message: fmt.Sprintf("malformed key=value pair: %q", f),
			}
		}
		kv[key] = value
	}

	for _, required := range []string{"recipient", "amount", "currency", "memo", "network"} {
		if _, ok := kv[required]; !ok {
			return nil, &types.KitError{
				Code:    types.ErrProtocol,
				Message: fmt.Sprintf("missing required invoice field: %s", required),
			}
		}
	}

	recipient, err := types.NewSolanaAddress(kv["recipient"])
	if err != nil {
		return nil, err
	}
	amount, err := types.AmountFromString(kv["amount"])
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, &types.KitError{
			Code:    types.ErrInvalidAmount,
			Message: fmt.Sprintf("invoice amount must be positive, got %s", amount),
		}
	}
	currency, err := types.ParseCurrency(kv["currency"])
	if err != nil {
		return nil, err
	}
	memo, err := types.ParseInvoiceMemo(kv["memo"])
	if err != nil {
		return nil, err
	}
	network, err := types.ParseNetwork(kv["network"])
	if err != nil {
		return nil, err
	}

	return &types.Invoice{
		Recipient: recipient,
		Amount:    amount,
		Currency:  currency,
		Memo:      memo,
		Network:   network,
		CreatedAt: now,
		ExpiresAt: now.Add(types.InvoiceTTL),
	}, nil
}
