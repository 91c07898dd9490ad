// Package invoice constructs payment invoices and encodes them into the
// x402-solana WWW-Authenticate challenge form.
package invoice

import (
	"sync/atomic"
	"time"

	"github.com/x402dev/x402kit/types"
)

// testRecipients is the fixed table of devnet recipient addresses. The
// generator hands them out round-robin so test traffic fans out across
// distinct accounts.
var testRecipients = []types.SolanaAddress{
	"uY7miTSLcWTdShkhvoB1rXguXBmCqmHY7uArfX1AhKVH",
	"kQae8fp2dMKykbQcFLigjErBUpdtuEuUFAWFEQ4F9hpe",
	"RmMov9wWCj7C6DSasZwnhmvQfP9z49sAniUc2eWqn8fj",
	"nRAbU1BSTvCPpkBGZDQ22SdRKWajnvLVAHzta9vmb8x5",
	"45C2wJ2HcWorAh9eNiu1pZWP7eCqFsK3MbSCJsuT1GtB",
	"NGHmSGjRFxgpQApTg4ZcsiMWmNomptK7ihGGZWtoGMrc",
	"WWPYmyFF88vL5YphbMdh7zRn5XxJFUk9RLXwikKjRfYh",
	"smg4MfYqfbLdLWNYBwWJe1cdYoHkQj5UqgFdKNMRqtQ2",
	"yD5qgkveZ5kSdRH7voJMaDtuXbfqSbyHiRBQwyL7ZiTm",
	"nqyWJnsnUrsuG6FmWo9hLif5hjw1kDAHufjZEUmvqLHj",
	"P7dCoWAzgydfqDVTZouMYYMk4oPKmZ62TBtL5mgXoAnY",
	"isA4xCCYfK1RJxMNyCcnPU3pkmx4e3godPxGA5w44FzJ",
	"W3LPhCYxJG6bNn1KF673XwaDwpoBeXziWkLtdv6n4G15",
	"1TzFeZnSrQJVVTzK2FN96nD38vbzeMUZQrA4oGmtdDG3",
	"F12bAu4CqKZcrJGM1gXnxZLQZzue9aRSZ8RAkkEN5pD8",
	"EQ5RYiVdiDWC7isbUcPwjcafU2DkzSkKrmnaQUTdfpQm",
	"hwwn7dS3ftYVo2QMC1oVQLH66HNLgosznZMT69MNR1ZU",
	"5n4tpLjTN5hm2p2apPqNGRQHHUurErbQCSi1Xg5S9xLQ",
	"mGNdpSpABMAbGNUA8keC9cQWto5U7xAb7T3sR3WmtsfZ",
	"6MqWv9GRkbAujbWMxw66cg3JrJzGMXGXYAKSmHFWT1Rg",
}

// TestRecipients exposes a copy of the fixture table for assertions.
func TestRecipients() []types.SolanaAddress {
	out := make([]types.SolanaAddress, len(testRecipients))
	copy(out, testRecipients)
	return out
}

// Generator mints invoices against the fixture recipient table. Safe for
// concurrent use: the round-robin index advances with an atomic
// fetch-and-increment.
type Generator struct {
	currency types.Currency
	network  types.Network
	next     atomic.Uint64
}

// NewGenerator creates a generator for the given currency and network.
func NewGenerator(currency types.Currency, network types.Network) *Generator {
	return &Generator{
		currency: currency,
		network:  network,
	}
}

// Generate mints a fresh invoice for the given amount and resource path.
// Expiry is creation plus five minutes; the caller supplies creation time.
func (g *Generator) Generate(amount types.Amount, path types.ResourcePath, now time.Time) *types.Invoice {
	idx := g.next.Add(1) - 1
	recipient := testRecipients[idx%uint64(len(testRecipients))]

	return &types.Invoice{
		Recipient: recipient,
		Amount:    amount,
		Currency:  g.currency,
		Memo:      types.NewInvoiceMemo(),
		Network:   g.network,
		CreatedAt: now,
		Resource:  path,
		ExpiresAt: now.Add(types.InvoiceTTL),
	}
}
