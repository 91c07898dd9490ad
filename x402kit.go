// Package x402kit is a developer toolkit for the x402 HTTP payment
// protocol: a mock facilitator server, a policy enforcement engine with
// sliding-window rate limits and spending caps, protocol compliance
// checkers, and a YAML scenario harness.
package x402kit

import (
	"net/http"
	"time"

	"github.com/x402dev/x402kit/audit"
	"github.com/x402dev/x402kit/config"
	"github.com/x402dev/x402kit/logger"
	"github.com/x402dev/x402kit/metrics"
	"github.com/x402dev/x402kit/policy"
	"github.com/x402dev/x402kit/pricing"
	"github.com/x402dev/x402kit/server"
	"github.com/x402dev/x402kit/types"
)

// Config assembles a Toolkit. A zero Config is usable: default pricing,
// catch-all admission, devnet, success simulation.
type Config struct {
	// Rules is the declarative policy set; it is compiled into runtime
	// policies at construction.
	Rules []types.PolicyRule

	Pricing *pricing.Resolver
	Network types.Network
	Trail   *audit.Trail
}

// Toolkit is the top-level entry point. It owns the compiled policies and
// the mock facilitator built over them.
type Toolkit struct {
	rules    []types.PolicyRule
	policies []types.Policy
	srv      *server.Server

	log     logger.Logger
	rec     metrics.Recorder
	clock   func() time.Time
	mode    types.SimulationMode
	delay   time.Duration
	network types.Network
}

// New compiles the rule set and builds the mock facilitator.
func New(cfg Config, opts ...Option) (*Toolkit, error) {
	t := &Toolkit{
		rules: cfg.Rules,
		log:   logger.NoopLogger{},
		rec:   metrics.NoopRecorder{},
		clock: time.Now,
		mode:  types.SimulationSuccess,
	}
	for _, opt := range opts {
		opt(t)
	}
	if cfg.Network == "" {
		cfg.Network = t.network
	}

	if report := policy.ValidateRules(cfg.Rules); report.HasErrors {
		return nil, &types.KitError{
			Code:    types.ErrInvalidPolicy,
			Message: "policy set has conflicts",
			Data:    report,
		}
	}
	policies, err := policy.Compile(cfg.Rules)
	if err != nil {
		return nil, err
	}
	t.policies = policies

	t.srv = server.New(server.Config{
		Pricing:      cfg.Pricing,
		Policies:     policies,
		Network:      cfg.Network,
		Simulation:   t.mode,
		TimeoutDelay: t.delay,
		Logger:       t.log,
		Metrics:      t.rec,
		Trail:        cfg.Trail,
		Clock:        t.clock,
	})
	return t, nil
}

// FromFile loads a policy YAML file and builds a Toolkit from it.
func FromFile(path string, opts ...Option) (*Toolkit, error) {
	file, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg := Config{Rules: file.Policies}

	if file.Pricing != nil {
		resolver, err := file.Pricing.Resolver()
		if err != nil {
			return nil, err
		}
		cfg.Pricing = resolver
	}
	if file.Audit != nil && file.Audit.Enabled {
		trail, err := file.Audit.Trail()
		if err != nil {
			return nil, err
		}
		cfg.Trail = trail
	}
	return New(cfg, opts...)
}

// Handler returns the mock facilitator's HTTP handler.
func (t *Toolkit) Handler() http.Handler {
	return t.srv.Handler()
}

// Engine exposes the live policy engine.
func (t *Toolkit) Engine() *policy.Engine {
	return t.srv.Engine()
}

// Policies returns the compiled runtime policies, priority-ordered.
func (t *Toolkit) Policies() []types.Policy {
	out := make([]types.Policy, len(t.policies))
	copy(out, t.policies)
	return out
}

// Validate re-runs the static validator over the toolkit's rule set.
func (t *Toolkit) Validate() policy.Report {
	return policy.ValidateRules(t.rules)
}

// Version information.
const (
	Version         = "0.3.0"
	ProtocolVersion = 1
)

// GetVersion returns version and capability information.
func GetVersion() map[string]interface{} {
	return map[string]interface{}{
		"library_version":  Version,
		"protocol_version": ProtocolVersion,
		"scheme":           types.Scheme,
		"networks": []string{
			string(types.NetworkDevnet),
			string(types.NetworkTestnet),
			string(types.NetworkMainnetBeta),
			string(types.NetworkMainnet),
		},
		"currencies": []string{
			types.CurrencyUSDC.String(),
			types.CurrencySOL.String(),
		},
	}
}
