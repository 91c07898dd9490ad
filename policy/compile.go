package policy

import (
	"fmt"
	"time"

	"github.com/x402dev/x402kit/types"
)

// Compile priorities. Denylists sit above allowlists so an explicit deny
// always wins, and the catch-all sits below everything.
const (
	priorityDenylist  = 100
	priorityAllowlist = 50
	priorityCatchAll  = 10
)

// FieldAgentID and FieldEndpoint are the list-rule fields the compiler
// understands.
const (
	FieldAgentID  = "agent_id"
	FieldEndpoint = "endpoint"
)

// Compile lowers a validated rule set into runtime policies.
//
// Denylists become high-priority Deny policies and allowlists become Allow
// policies. Every rate_limit and spending_cap rule attaches to every Allow
// policy produced; when the set has no allowlist at all, a catch-all Allow
// carries them so limits still bind. Rules must already have passed
// ValidateRules.
func Compile(rules []types.PolicyRule) ([]types.Policy, error) {
	var rate *types.RateLimitConfig
	var cap_ *types.SpendingCapConfig

	for i := range rules {
		r := &rules[i]
		if err := r.Validate(); err != nil {
			return nil, err
		}
		switch r.Type {
		case types.RuleRateLimit:
			// The strictest of several rate limits binds.
			cfg := &types.RateLimitConfig{
				MaxRequests: r.MaxRequests,
				Window:      time.Duration(r.WindowSeconds) * time.Second,
			}
			if rate == nil || stricterRate(cfg, rate) {
				rate = cfg
			}
		case types.RuleSpendingCap:
			amount, err := types.AmountFromString(r.MaxAmount)
			if err != nil {
				return nil, err
			}
			currency, err := types.ParseCurrency(r.Currency)
			if err != nil {
				return nil, err
			}
			cfg := &types.SpendingCapConfig{
				MaxAmount: amount,
				Currency:  currency,
				Window:    time.Duration(r.WindowSeconds) * time.Second,
			}
			if cap_ == nil || stricterCap(cfg, cap_) {
				cap_ = cfg
			}
		}
	}

	var policies []types.Policy
	hasAllowlist := false

	for i := range rules {
		r := &rules[i]
		switch r.Type {
		case types.RuleDenylist:
			p := types.Policy{
				ID:          fmt.Sprintf("denylist-%d", i),
				Description: fmt.Sprintf("denylist on %s", r.Field),
				Priority:    priorityDenylist,
				Action:      types.Deny(fmt.Sprintf("Denied by %s denylist", r.Field)),
			}
			applyField(&p, r.Field, r.Values)
			policies = append(policies, p)
		case types.RuleAllowlist:
			hasAllowlist = true
			p := types.Policy{
				ID:          fmt.Sprintf("allowlist-%d", i),
				Description: fmt.Sprintf("allowlist on %s", r.Field),
				Priority:    priorityAllowlist,
				Action:      types.Allow(),
				RateLimit:   rate,
				SpendingCap: cap_,
			}
			applyField(&p, r.Field, r.Values)
			policies = append(policies, p)
		}
	}

	if !hasAllowlist {
		policies = append(policies, types.Policy{
			ID:          "default-allow",
			Description: "catch-all admission carrying the configured limits",
			Priority:    priorityCatchAll,
			Action:      types.Allow(),
			RateLimit:   rate,
			SpendingCap: cap_,
		})
	}

	return policies, nil
}

func applyField(p *types.Policy, field string, values []string) {
	switch field {
	case FieldEndpoint:
		p.EndpointPatterns = values
	default:
		// agent_id and any principal-like field key on the agent.
		p.AgentPatterns = values
	}
}

func stricterRate(a, b *types.RateLimitConfig) bool {
	// Compare max/window without floats: a.Max*b.Window < b.Max*a.Window.
	return int64(a.MaxRequests)*int64(b.Window) < int64(b.MaxRequests)*int64(a.Window)
}

func stricterCap(a, b *types.SpendingCapConfig) bool {
	am, err := a.MaxAmount.MinorUnits(a.Currency.Decimals())
	if err != nil {
		return false
	}
	bm, err := b.MaxAmount.MinorUnits(b.Currency.Decimals())
	if err != nil {
		return true
	}
	return am*int64(b.Window/time.Second) < bm*int64(a.Window/time.Second)
}
