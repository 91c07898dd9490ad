package policy

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x402dev/x402kit/types"
)

var engineNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func request(agent, endpoint, amount string, at time.Time) types.Request {
	return types.Request{
		AgentID:   agent,
		Endpoint:  endpoint,
		Amount:    types.MustAmount(amount),
		Timestamp: at,
	}
}

func allowAll(id string, priority int) types.Policy {
	return types.Policy{
		ID:            id,
		Priority:      priority,
		AgentPatterns: []string{"*"},
		Action:        types.Allow(),
	}
}

func TestEvaluateRateLimit(t *testing.T) {
	// Scenario: one allow policy, 3 requests per 60s.
	p := allowAll("rate-policy", 10)
	p.RateLimit = &types.RateLimitConfig{MaxRequests: 3, Window: 60 * time.Second}
	e := NewEngine([]types.Policy{p})

	for i := 0; i < 3; i++ {
		d, err := e.Evaluate(request("agent-X", "/api/data", "0.01", engineNow))
		require.NoError(t, err)
		assert.True(t, d.IsAllow(), "request %d", i+1)
		assert.Equal(t, "rate-policy", d.PolicyID)
	}

	d, err := e.Evaluate(request("agent-X", "/api/data", "0.01", engineNow))
	require.NoError(t, err)
	require.True(t, d.IsDeny())
	assert.Contains(t, d.Reason, "Rate limit exceeded")
	assert.Equal(t, "rate-policy", d.PolicyID)

	// After the window slides past, admission resumes.
	d, err = e.Evaluate(request("agent-X", "/api/data", "0.01", engineNow.Add(61*time.Second)))
	require.NoError(t, err)
	assert.True(t, d.IsAllow())
}

func TestEvaluateSpendingCap(t *testing.T) {
	// Scenario: cap 5.00 USDC per hour; 2+2 admitted, third 2.00 denied,
	// then 0.50 fits (total 4.50).
	p := allowAll("cap-policy", 10)
	p.SpendingCap = &types.SpendingCapConfig{
		MaxAmount: types.MustAmount("5.00"),
		Currency:  types.CurrencyUSDC,
		Window:    time.Hour,
	}
	e := NewEngine([]types.Policy{p})

	for i := 0; i < 2; i++ {
		d, err := e.Evaluate(request("agent-X", "/api/data", "2.00", engineNow))
		require.NoError(t, err)
		assert.True(t, d.IsAllow(), "request %d", i+1)
	}

	d, err := e.Evaluate(request("agent-X", "/api/data", "2.00", engineNow))
	require.NoError(t, err)
	require.True(t, d.IsDeny())
	assert.Contains(t, d.Reason, "Spending cap exceeded")

	d, err = e.Evaluate(request("agent-X", "/api/data", "0.50", engineNow))
	require.NoError(t, err)
	assert.True(t, d.IsAllow())
}

func TestEvaluateDenyPrecedenceByPriority(t *testing.T) {
	policies := []types.Policy{
		// Allow listed first textually; the higher-priority deny still wins.
		{ID: "allow-everyone", Priority: 1, AgentPatterns: []string{"*"}, Action: types.Allow()},
		{ID: "block-bad", Priority: 10, AgentPatterns: []string{"agent-bad"}, Action: types.Deny("Blocked agent")},
	}
	e := NewEngine(policies)

	d, err := e.Evaluate(request("agent-bad", "/api/data", "0.01", engineNow))
	require.NoError(t, err)
	assert.True(t, d.IsDeny())
	assert.Equal(t, "block-bad", d.PolicyID)

	d, err = e.Evaluate(request("agent-ok", "/api/data", "0.01", engineNow))
	require.NoError(t, err)
	assert.True(t, d.IsAllow())
	assert.Equal(t, "allow-everyone", d.PolicyID)
}

func TestEvaluateDefaultDeny(t *testing.T) {
	e := NewEngine([]types.Policy{
		{ID: "narrow", Priority: 5, AgentPatterns: []string{"agent-a"}, Action: types.Allow()},
	})

	d, err := e.Evaluate(request("agent-b", "/api/data", "0.01", engineNow))
	require.NoError(t, err)
	require.True(t, d.IsDeny())
	assert.Equal(t, DefaultPolicyID, d.PolicyID)
	assert.Equal(t, "No matching allow policy", d.Reason)
}

func TestEvaluateEndpointPatterns(t *testing.T) {
	e := NewEngine([]types.Policy{
		{ID: "api-only", Priority: 5, EndpointPatterns: []string{"/api/*"}, Action: types.Allow()},
	})

	d, err := e.Evaluate(request("a", "/api/data", "0.01", engineNow))
	require.NoError(t, err)
	assert.True(t, d.IsAllow())

	d, err = e.Evaluate(request("a", "/other", "0.01", engineNow))
	require.NoError(t, err)
	assert.True(t, d.IsDeny())
}

func TestEvaluateFutureTimestampBypass(t *testing.T) {
	// Scenario G: future-dated admissions must never consume the window.
	p := allowAll("rate-policy", 10)
	p.RateLimit = &types.RateLimitConfig{MaxRequests: 2, Window: 60 * time.Second}
	e := NewEngine([]types.Policy{p})

	d, err := e.Evaluate(request("agent-X", "/x", "0.01", engineNow))
	require.NoError(t, err)
	require.True(t, d.IsAllow())

	// Stuff the ledger with far-future timestamps directly.
	key := RateKey("rate-policy", "agent-X")
	ledger := e.Registry().GetRate(key)
	for i := 0; i < 1000; i++ {
		ledger.Record(engineNow.Add(100 * time.Second))
	}
	e.Registry().PutRate(key, ledger)

	// A legitimate request at now still fits: only 1 counted so far.
	d, err = e.Evaluate(request("agent-X", "/x", "0.01", engineNow))
	require.NoError(t, err)
	require.True(t, d.IsAllow())

	// Now 2 in-window; the next is denied.
	d, err = e.Evaluate(request("agent-X", "/x", "0.01", engineNow))
	require.NoError(t, err)
	require.True(t, d.IsDeny())

	count := e.Registry().GetRate(key).CountInWindow(60*time.Second, engineNow)
	assert.Equal(t, 2, count)
}

func TestEvaluateDenyDoesNotConsumeState(t *testing.T) {
	deny := types.Policy{
		ID:            "block",
		Priority:      10,
		AgentPatterns: []string{"agent-bad"},
		Action:        types.Deny("blocked"),
		RateLimit:     &types.RateLimitConfig{MaxRequests: 5, Window: time.Minute},
	}
	e := NewEngine([]types.Policy{deny})

	key := RateKey("block", "agent-bad")
	before := e.Registry().GetRate(key).Len()

	d, err := e.Evaluate(request("agent-bad", "/x", "0.01", engineNow))
	require.NoError(t, err)
	require.True(t, d.IsDeny())

	assert.Equal(t, before, e.Registry().GetRate(key).Len())
}

func TestEvaluatePriorityTiesKeepInsertionOrder(t *testing.T) {
	e := NewEngine([]types.Policy{
		{ID: "first", Priority: 5, AgentPatterns: []string{"*"}, Action: types.Allow()},
		{ID: "second", Priority: 5, AgentPatterns: []string{"*"}, Action: types.Deny("later twin")},
	})

	d, err := e.Evaluate(request("a", "/x", "0.01", engineNow))
	require.NoError(t, err)
	assert.Equal(t, "first", d.PolicyID)
}

func TestEvaluatePerPrincipalIsolation(t *testing.T) {
	p := allowAll("rate-policy", 10)
	p.RateLimit = &types.RateLimitConfig{MaxRequests: 1, Window: time.Minute}
	e := NewEngine([]types.Policy{p})

	d, err := e.Evaluate(request("agent-a", "/x", "0.01", engineNow))
	require.NoError(t, err)
	require.True(t, d.IsAllow())

	// A different principal does not share the budget.
	d, err = e.Evaluate(request("agent-b", "/x", "0.01", engineNow))
	require.NoError(t, err)
	assert.True(t, d.IsAllow())

	d, err = e.Evaluate(request("agent-a", "/x", "0.01", engineNow))
	require.NoError(t, err)
	assert.True(t, d.IsDeny())
}

func TestEvaluateConcurrentSafety(t *testing.T) {
	p := allowAll("rate-policy", 10)
	p.RateLimit = &types.RateLimitConfig{MaxRequests: 50, Window: time.Minute}
	e := NewEngine([]types.Policy{p})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			agent := fmt.Sprintf("agent-%d", i%4)
			_, err := e.Evaluate(request(agent, "/x", "0.01", engineNow))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
}

func TestStartReaperDrainsIdleState(t *testing.T) {
	p := allowAll("rate-policy", 10)
	p.RateLimit = &types.RateLimitConfig{MaxRequests: 3, Window: 60 * time.Second}
	e := NewEngine([]types.Policy{p})

	_, err := e.Evaluate(request("agent-X", "/api/data", "0.01", engineNow))
	require.NoError(t, err)
	require.NotZero(t, e.Registry().Size())

	// Age the ledger contents out so the entry is empty and reapable.
	e.Registry().Cleanup(engineNow.Add(2 * time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.StartReaper(ctx, 5*time.Millisecond, 0)

	assert.Eventually(t, func() bool {
		return e.Registry().Size() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
