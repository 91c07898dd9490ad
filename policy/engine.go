package policy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/x402dev/x402kit/logger"
	"github.com/x402dev/x402kit/metrics"
	"github.com/x402dev/x402kit/types"
)

// DefaultPolicyID is attributed to the implicit default deny when no policy
// matches a request.
const DefaultPolicyID = "default"

// Engine evaluates requests against a priority-ordered policy set. Policies
// are sorted by descending priority at construction; ties keep insertion
// order. The engine owns its state registry for as long as it lives.
type Engine struct {
	policies []types.Policy
	registry *Registry
	log      logger.Logger
	rec      metrics.Recorder
}

// EngineOption customizes engine construction.
type EngineOption func(*Engine)

// WithLogger attaches a logger to the engine.
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// WithMetrics attaches a metrics recorder to the engine.
func WithMetrics(r metrics.Recorder) EngineOption {
	return func(e *Engine) { e.rec = r }
}

// NewEngine compiles a policy set into an engine with a fresh registry.
func NewEngine(policies []types.Policy, opts ...EngineOption) *Engine {
	sorted := make([]types.Policy, len(policies))
	copy(sorted, policies)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	e := &Engine{
		policies: sorted,
		registry: NewRegistry(),
		log:      logger.NoopLogger{},
		rec:      metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry exposes the engine's state registry, mainly for tests and for the
// host's reaper task.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// StartReaper removes idle empty ledger entries every interval until the
// context ends. Correctness does not depend on it; it keeps a long-lived
// process from accumulating one registry entry per principal ever seen.
func (e *Engine) StartReaper(ctx context.Context, interval, idleFor time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if removed := e.registry.Reap(now, idleFor); removed > 0 {
					e.log.Debug("reaped idle policy state", map[string]any{
						"removed": removed,
					})
				}
			}
		}
	}()
}

// Policies returns the evaluation order.
func (e *Engine) Policies() []types.Policy {
	out := make([]types.Policy, len(e.policies))
	copy(out, e.policies)
	return out
}

// Evaluate walks policies in priority order and returns the first matching
// decision. Rate and cap pre-checks deny without consuming state; state is
// advanced only on admit. No matching policy means default deny. The request
// timestamp is the only clock consulted, so evaluation is deterministic
// under test.
func (e *Engine) Evaluate(req types.Request) (types.Decision, error) {
	start := time.Now()
	e.registry.Cleanup(req.Timestamp)

	for _, p := range e.policies {
		if !MatchAny(p.AgentPatterns, req.AgentID) {
			continue
		}
		if !MatchAny(p.EndpointPatterns, req.Endpoint) {
			continue
		}

		if p.RateLimit != nil {
			ledger := e.registry.GetRate(RateKey(p.ID, req.AgentID))
			if !ledger.Admitted(p.RateLimit.Window, p.RateLimit.MaxRequests, req.Timestamp) {
				return e.deny(p.ID, fmt.Sprintf("Rate limit exceeded: %d per %ds",
					p.RateLimit.MaxRequests, int(p.RateLimit.Window.Seconds()))), nil
			}
		}

		var pendingMinor, capMinor int64
		if p.SpendingCap != nil {
			var err error
			capMinor, err = p.SpendingCap.MaxAmount.MinorUnits(p.SpendingCap.Currency.Decimals())
			if err != nil {
				return types.Decision{}, err
			}
			pendingMinor, err = req.Amount.MinorUnits(p.SpendingCap.Currency.Decimals())
			if err != nil {
				return types.Decision{}, err
			}

			ledger := e.registry.GetSpend(SpendKey(p.ID, req.AgentID))
			ok, err := ledger.Allows(p.SpendingCap.Window, capMinor, pendingMinor, req.Timestamp)
			if err != nil {
				return types.Decision{}, err
			}
			if !ok {
				return e.deny(p.ID, fmt.Sprintf("Spending cap exceeded: %s per %ds",
					p.SpendingCap.MaxAmount, int(p.SpendingCap.Window.Seconds()))), nil
			}
		}

		switch p.Action.Kind {
		case types.ActionDeny:
			return e.deny(p.ID, p.Action.Reason), nil
		case types.ActionAllow:
			e.admit(p, req, pendingMinor)
			e.rec.IncCounter("policy_allow", map[string]string{"policy": p.ID})
			e.rec.ObserveLatency("evaluate", time.Since(start), nil)
			e.log.Debug("request admitted", map[string]any{
				"policy":   p.ID,
				"agent":    req.AgentID,
				"endpoint": req.Endpoint,
			})
			return types.AllowDecision(p.ID), nil
		}
	}

	return e.deny(DefaultPolicyID, "No matching allow policy"), nil
}

// admit advances only the ledgers the policy actually carries.
func (e *Engine) admit(p types.Policy, req types.Request, pendingMinor int64) {
	if p.RateLimit != nil {
		key := RateKey(p.ID, req.AgentID)
		ledger := e.registry.GetRate(key)
		ledger.Record(req.Timestamp)
		e.registry.PutRate(key, ledger)
	}
	if p.SpendingCap != nil {
		key := SpendKey(p.ID, req.AgentID)
		ledger := e.registry.GetSpend(key)
		ledger.Record(req.Timestamp, pendingMinor)
		e.registry.PutSpend(key, ledger)
	}
}

func (e *Engine) deny(policyID, reason string) types.Decision {
	e.rec.IncCounter("policy_deny", map[string]string{"policy": policyID})
	e.log.Debug("request denied", map[string]any{
		"policy": policyID,
		"reason": reason,
	})
	return types.DenyDecision(policyID, reason)
}
