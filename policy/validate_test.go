package policy

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x402dev/x402kit/types"
)

func TestValidateRulesEmptySetIsInfo(t *testing.T) {
	report := ValidateRules(nil)

	require.Len(t, report.Issues, 1)
	assert.Equal(t, SeverityInfo, report.Issues[0].Severity)
	assert.False(t, report.HasErrors)
	assert.False(t, report.HasWarnings)
}

func TestValidateRulesConflictSoundness(t *testing.T) {
	rules := []types.PolicyRule{
		{Type: types.RuleAllowlist, Field: "agent_id", Values: []string{"agent-a", "agent-b"}},
		{Type: types.RuleDenylist, Field: "agent_id", Values: []string{"agent-b"}},
	}

	report := ValidateRules(rules)
	require.True(t, report.HasErrors)

	var found *Issue
	for i := range report.Issues {
		if report.Issues[i].Severity == SeverityError {
			found = &report.Issues[i]
			break
		}
	}
	require.NotNil(t, found)
	assert.Contains(t, found.Message, "agent-b")
	assert.ElementsMatch(t, []int{0, 1}, found.PolicyIndices)
	assert.Len(t, found.Suggestions, 3)
}

func TestValidateRulesNoConflictAcrossFields(t *testing.T) {
	// Same value on different fields is not a conflict.
	rules := []types.PolicyRule{
		{Type: types.RuleAllowlist, Field: "agent_id", Values: []string{"x"}},
		{Type: types.RuleDenylist, Field: "endpoint", Values: []string{"x"}},
	}
	report := ValidateRules(rules)
	assert.False(t, report.HasErrors)
}

func TestValidateRulesMultipleRateLimits(t *testing.T) {
	rules := []types.PolicyRule{
		{Type: types.RuleRateLimit, MaxRequests: 100, WindowSeconds: 60},
		{Type: types.RuleRateLimit, MaxRequests: 10, WindowSeconds: 60},
	}

	report := ValidateRules(rules)
	require.True(t, report.HasWarnings)

	var warning *Issue
	for i := range report.Issues {
		if report.Issues[i].Severity == SeverityWarning {
			warning = &report.Issues[i]
			break
		}
	}
	require.NotNil(t, warning)
	// Policy 1 is 10/60s, the most restrictive.
	assert.Contains(t, warning.Details, "policy 1")
	assert.ElementsMatch(t, []int{0, 1}, warning.PolicyIndices)
}

func TestValidateRulesMultipleSpendingCaps(t *testing.T) {
	rules := []types.PolicyRule{
		{Type: types.RuleSpendingCap, MaxAmount: "10.00", Currency: "USDC", WindowSeconds: 3600},
		{Type: types.RuleSpendingCap, MaxAmount: "1.00", Currency: "USDC", WindowSeconds: 3600},
	}

	report := ValidateRules(rules)
	require.True(t, report.HasWarnings)
	assert.Contains(t, report.Issues[len(report.Issues)-1].Details, "policy 1")
}

func TestValidateRulesInvalidRuleIsError(t *testing.T) {
	rules := []types.PolicyRule{
		{Type: types.RuleRateLimit, MaxRequests: 0, WindowSeconds: 60},
	}
	report := ValidateRules(rules)
	require.True(t, report.HasErrors)
	assert.Equal(t, []int{0}, report.Issues[0].PolicyIndices)
}

func TestValidateRulesIsPure(t *testing.T) {
	rules := []types.PolicyRule{
		{Type: types.RuleAllowlist, Field: "agent_id", Values: []string{"a"}},
		{Type: types.RuleDenylist, Field: "agent_id", Values: []string{"a"}},
		{Type: types.RuleRateLimit, MaxRequests: 5, WindowSeconds: 60},
		{Type: types.RuleRateLimit, MaxRequests: 1, WindowSeconds: 60},
	}

	first := ValidateRules(rules)
	for i := 0; i < 5; i++ {
		assert.True(t, reflect.DeepEqual(first, ValidateRules(rules)))
	}
}
