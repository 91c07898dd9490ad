package types

import (
	"fmt"
	"time"
)

// RuleType tags the policy rule union.
type RuleType string

const (
	RuleAllowlist   RuleType = "allowlist"
	RuleDenylist    RuleType = "denylist"
	RuleRateLimit   RuleType = "rate_limit"
	RuleSpendingCap RuleType = "spending_cap"
)

// PolicyRule is one entry of a policy file. Exactly the fields for its type
// are populated; Validate enforces that.
type PolicyRule struct {
	Type RuleType `json:"type" yaml:"type"`

	// Allowlist / denylist
	Field  string   `json:"field,omitempty" yaml:"field,omitempty"`
	Values []string `json:"values,omitempty" yaml:"values,omitempty"`

	// Rate limit
	MaxRequests int `json:"max_requests,omitempty" yaml:"max_requests,omitempty"`

	// Spending cap
	MaxAmount string `json:"max_amount,omitempty" yaml:"max_amount,omitempty"`
	Currency  string `json:"currency,omitempty" yaml:"currency,omitempty"`

	// Shared by rate limit and spending cap
	WindowSeconds int `json:"window_seconds,omitempty" yaml:"window_seconds,omitempty"`
}

// Validate checks the rule's internal validity.
func (r *PolicyRule) Validate() error {
	switch r.Type {
	case RuleAllowlist, RuleDenylist:
		if r.Field == "" {
			return &KitError{
				Code:    ErrInvalidPolicy,
				Message: fmt.Sprintf("%s rule requires a non-empty field", r.Type),
			}
		}
		if len(r.Values) == 0 {
			return &KitError{
				Code:    ErrInvalidPolicy,
				Message: fmt.Sprintf("%s rule requires at least one value", r.Type),
			}
		}
	case RuleRateLimit:
		if r.MaxRequests <= 0 {
			return &KitError{
				Code:    ErrInvalidPolicy,
				Message: fmt.Sprintf("rate_limit max_requests must be positive, got %d", r.MaxRequests),
			}
		}
		if r.WindowSeconds <= 0 {
			return &KitError{
				Code:    ErrInvalidPolicy,
				Message: fmt.Sprintf("rate_limit window_seconds must be positive, got %d", r.WindowSeconds),
			}
		}
	case RuleSpendingCap:
		amt, err := AmountFromString(r.MaxAmount)
		if err != nil {
			return &KitError{
				Code:    ErrInvalidPolicy,
				Message: fmt.Sprintf("spending_cap max_amount is invalid: %v", err),
			}
		}
		if !amt.IsPositive() {
			return &KitError{
				Code:    ErrInvalidPolicy,
				Message: fmt.Sprintf("spending_cap max_amount must be positive, got %s", r.MaxAmount),
			}
		}
		if r.Currency == "" {
			return &KitError{
				Code:    ErrInvalidPolicy,
				Message: "spending_cap currency must not be empty",
			}
		}
		if r.WindowSeconds <= 0 {
			return &KitError{
				Code:    ErrInvalidPolicy,
				Message: fmt.Sprintf("spending_cap window_seconds must be positive, got %d", r.WindowSeconds),
			}
		}
	default:
		return &KitError{
			Code:    ErrInvalidPolicy,
			Message: fmt.Sprintf("unknown rule type: %s", r.Type),
		}
	}
	return nil
}

// ActionKind tags a runtime policy action.
type ActionKind string

const (
	ActionAllow ActionKind = "allow"
	ActionDeny  ActionKind = "deny"
)

// Action is what a matching policy does: admit, or reject with a reason.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Reason string     `json:"reason,omitempty"`
}

// Allow is the admit action.
func Allow() Action {
	return Action{Kind: ActionAllow}
}

// Deny builds a reject action with a reason.
func Deny(reason string) Action {
	return Action{Kind: ActionDeny, Reason: reason}
}

// RateLimitConfig bounds request count inside a sliding window.
type RateLimitConfig struct {
	MaxRequests int           `json:"maxRequests"`
	Window      time.Duration `json:"window"`
}

// SpendingCapConfig bounds accumulated spend inside a sliding window.
type SpendingCapConfig struct {
	MaxAmount Amount        `json:"maxAmount"`
	Currency  Currency      `json:"currency"`
	Window    time.Duration `json:"window"`
}

// Policy is the compiled runtime form of a rule set. The engine stores
// policies sorted by descending priority; ties keep insertion order.
type Policy struct {
	ID               string             `json:"id"`
	Description      string             `json:"description,omitempty"`
	Priority         int                `json:"priority"`
	AgentPatterns    []string           `json:"agentPatterns,omitempty"`
	EndpointPatterns []string           `json:"endpointPatterns,omitempty"`
	Action           Action             `json:"action"`
	RateLimit        *RateLimitConfig   `json:"rateLimit,omitempty"`
	SpendingCap      *SpendingCapConfig `json:"spendingCap,omitempty"`
}
