// Package pricing maps resource paths to payment amounts.
package pricing

import (
	"sort"
	"strings"

	"github.com/x402dev/x402kit/types"
)

// Resolver answers "what does this path cost". Lookup never fails: unknown
// paths price at the default.
type Resolver struct {
	defaultAmount types.Amount
	currency      types.Currency
	memoPrefix    string
	perResource   map[string]types.Amount

	// wildcard prefixes sorted longest-first, ties lexicographic, derived
	// from perResource keys of the form "<prefix>/*"
	wildcards []wildcardEntry
}

type wildcardEntry struct {
	prefix string
	amount types.Amount
}

// Config drives resolver construction.
type Config struct {
	Default     types.Amount
	Currency    types.Currency
	MemoPrefix  string
	PerResource map[string]types.Amount
}

// NewResolver compiles a pricing configuration.
func NewResolver(cfg Config) *Resolver {
	r := &Resolver{
		defaultAmount: cfg.Default,
		currency:      cfg.Currency,
		memoPrefix:    cfg.MemoPrefix,
		perResource:   make(map[string]types.Amount, len(cfg.PerResource)),
	}
	if r.currency == "" {
		r.currency = types.CurrencyUSDC
	}

	for key, amount := range cfg.PerResource {
		r.perResource[key] = amount
		if prefix, ok := strings.CutSuffix(key, "/*"); ok {
			r.wildcards = append(r.wildcards, wildcardEntry{prefix: prefix, amount: amount})
		}
	}

	// Longest prefix first; equal lengths resolve lexicographically so
	// lookup is deterministic regardless of map iteration order.
	sort.Slice(r.wildcards, func(i, j int) bool {
		a, b := r.wildcards[i], r.wildcards[j]
		if len(a.prefix) != len(b.prefix) {
			return len(a.prefix) > len(b.prefix)
		}
		return a.prefix < b.prefix
	})

	return r
}

// PriceFor resolves the amount for a path: exact key match, else the longest
// matching "<prefix>/*" wildcard, else the default.
func (r *Resolver) PriceFor(path string) types.Amount {
	if amount, ok := r.perResource[path]; ok {
		return amount
	}
	for _, w := range r.wildcards {
		if strings.HasPrefix(path, w.prefix) {
			return w.amount
		}
	}
	return r.defaultAmount
}

// Currency returns the configured billing currency.
func (r *Resolver) Currency() types.Currency {
	return r.currency
}

// MemoPrefix returns the optional memo prefix string from the config.
func (r *Resolver) MemoPrefix() string {
	return r.memoPrefix
}
