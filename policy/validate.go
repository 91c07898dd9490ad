package policy

import (
	"fmt"

	"github.com/x402dev/x402kit/types"
)

// Severity ranks a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is one finding of the static validator.
type Issue struct {
	Severity      Severity `json:"severity"`
	Message       string   `json:"message"`
	Details       string   `json:"details,omitempty"`
	Suggestions   []string `json:"suggestions,omitempty"`
	PolicyIndices []int    `json:"policyIndices,omitempty"`
}

// Report is the ordered result of validating a policy set.
type Report struct {
	Issues      []Issue `json:"issues"`
	HasErrors   bool    `json:"hasErrors"`
	HasWarnings bool    `json:"hasWarnings"`
}

func (r *Report) add(issue Issue) {
	r.Issues = append(r.Issues, issue)
	switch issue.Severity {
	case SeverityError:
		r.HasErrors = true
	case SeverityWarning:
		r.HasWarnings = true
	}
}

// ValidateRules statically checks a policy rule set for internal validity
// and cross-rule conflicts. It is a pure function of its input: it consults
// no runtime state and same input yields an identical report.
func ValidateRules(rules []types.PolicyRule) Report {
	var report Report

	if len(rules) == 0 {
		report.add(Issue{
			Severity: SeverityInfo,
			Message:  "policy set is empty; every request will fall through to the default deny",
		})
		return report
	}

	for i := range rules {
		if err := rules[i].Validate(); err != nil {
			report.add(Issue{
				Severity:      SeverityError,
				Message:       fmt.Sprintf("policy %d is invalid", i),
				Details:       err.Error(),
				PolicyIndices: []int{i},
			})
		}
	}

	checkListConflicts(rules, &report)
	checkDuplicateRateLimits(rules, &report)
	checkDuplicateSpendingCaps(rules, &report)

	return report
}

// checkListConflicts flags every (field, value) present in both an allowlist
// and a denylist over the same field.
func checkListConflicts(rules []types.PolicyRule, report *Report) {
	for i, allow := range rules {
		if allow.Type != types.RuleAllowlist {
			continue
		}
		for j, deny := range rules {
			if deny.Type != types.RuleDenylist || deny.Field != allow.Field {
				continue
			}
			for _, v := range allow.Values {
				if !contains(deny.Values, v) {
					continue
				}
				report.add(Issue{
					Severity: SeverityError,
					Message: fmt.Sprintf("value %q on field %q is both allowlisted and denylisted",
						v, allow.Field),
					Details: fmt.Sprintf("policy %d allows it, policy %d denies it; at runtime deny wins", i, j),
					Suggestions: []string{
						fmt.Sprintf("remove %q from the denylist in policy %d", v, j),
						fmt.Sprintf("remove %q from the allowlist in policy %d", v, i),
						"keep both and document that deny takes precedence",
					},
					PolicyIndices: []int{i, j},
				})
			}
		}
	}
}

// checkDuplicateRateLimits warns when several rate limits apply; the most
// restrictive (lowest max/window ratio) should stand alone.
func checkDuplicateRateLimits(rules []types.PolicyRule, report *Report) {
	var indices []int
	for i, r := range rules {
		if r.Type == types.RuleRateLimit && r.Validate() == nil {
			indices = append(indices, i)
		}
	}
	if len(indices) < 2 {
		return
	}

	strictest := indices[0]
	for _, i := range indices[1:] {
		if ratePerSecond(rules[i]) < ratePerSecond(rules[strictest]) {
			strictest = i
		}
	}

	report.add(Issue{
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("%d rate_limit rules defined; only the most restrictive has effect in practice", len(indices)),
		Details: fmt.Sprintf("policy %d (%d per %ds) is the most restrictive",
			strictest, rules[strictest].MaxRequests, rules[strictest].WindowSeconds),
		Suggestions: []string{
			fmt.Sprintf("keep only policy %d and remove the others", strictest),
		},
		PolicyIndices: indices,
	})
}

// checkDuplicateSpendingCaps mirrors the rate-limit check for spending caps.
func checkDuplicateSpendingCaps(rules []types.PolicyRule, report *Report) {
	var indices []int
	for i, r := range rules {
		if r.Type == types.RuleSpendingCap && r.Validate() == nil {
			indices = append(indices, i)
		}
	}
	if len(indices) < 2 {
		return
	}

	strictest := indices[0]
	for _, i := range indices[1:] {
		if capPerSecond(rules[i]).Cmp(capPerSecond(rules[strictest])) < 0 {
			strictest = i
		}
	}

	report.add(Issue{
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("%d spending_cap rules defined; only the most restrictive has effect in practice", len(indices)),
		Details: fmt.Sprintf("policy %d (%s per %ds) is the most restrictive",
			strictest, rules[strictest].MaxAmount, rules[strictest].WindowSeconds),
		Suggestions: []string{
			fmt.Sprintf("keep only policy %d and remove the others", strictest),
		},
		PolicyIndices: indices,
	})
}

func ratePerSecond(r types.PolicyRule) float64 {
	return float64(r.MaxRequests) / float64(r.WindowSeconds)
}

func capPerSecond(r types.PolicyRule) types.Amount {
	amt, err := types.AmountFromString(r.MaxAmount)
	if err != nil {
		return types.ZeroAmount
	}
	window, err := types.AmountFromString(fmt.Sprintf("%d", r.WindowSeconds))
	if err != nil {
		return types.ZeroAmount
	}
	out, err := amt.Div(window)
	if err != nil {
		return types.ZeroAmount
	}
	return out
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
