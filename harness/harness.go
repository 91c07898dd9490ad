// Package harness runs YAML-described scenarios against an in-process mock
// facilitator and reports per-step pass/fail results.
package harness

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/x402dev/x402kit/compliance"
	"github.com/x402dev/x402kit/config"
	"github.com/x402dev/x402kit/logger"
	"github.com/x402dev/x402kit/policy"
	"github.com/x402dev/x402kit/server"
	"github.com/x402dev/x402kit/types"
)

// Scenario is a parsed scenario file: how to configure the server and the
// ordered steps to run against it.
type Scenario struct {
	Name   string       `yaml:"name"`
	Server ServerConfig `yaml:"server"`
	Steps  []Step       `yaml:"steps"`
}

// ServerConfig selects the mock server's behavior for the run.
type ServerConfig struct {
	// PolicyFile points at a policy YAML, resolved relative to the
	// scenario file when not absolute.
	PolicyFile string `yaml:"policy_file,omitempty"`
	Simulation string `yaml:"simulation,omitempty"`
	Network    string `yaml:"network,omitempty"`

	// TimeoutDelayMS shortens the simulated settlement stall; tests use
	// small values so a timeout scenario finishes quickly.
	TimeoutDelayMS int `yaml:"timeout_delay_ms,omitempty"`
}

// Step is one HTTP exchange plus its expectations.
type Step struct {
	Name    string            `yaml:"name"`
	Method  string            `yaml:"method,omitempty"`
	Path    string            `yaml:"path"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Expect  Expectation       `yaml:"expect"`
}

// Expectation describes what the response must look like. Zero fields are
// not checked.
type Expectation struct {
	Status       int               `yaml:"status,omitempty"`
	HeaderPrefix map[string]string `yaml:"header_prefix,omitempty"`
	BodyContains []string          `yaml:"body_contains,omitempty"`

	// Compliant additionally runs the full 402 protocol compliance check
	// against the response.
	Compliant bool `yaml:"compliant,omitempty"`
}

// StepResult records one executed step.
type StepResult struct {
	Name     string
	Status   int
	Passed   bool
	Failures []string
	Err      error
}

// RunReport aggregates a scenario run.
type RunReport struct {
	Scenario string
	Results  []StepResult
}

// Passed reports whether every step passed.
func (r *RunReport) Passed() bool {
	for _, res := range r.Results {
		if !res.Passed {
			return false
		}
	}
	return true
}

// Failed counts failing steps.
func (r *RunReport) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.Passed {
			n++
		}
	}
	return n
}

// LoadScenario parses a scenario file. Relative policy paths are anchored at
// the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.KitError{
			Code:    types.ErrConfig,
			Message: fmt.Sprintf("read scenario file: %v", err),
		}
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if sc.Server.PolicyFile != "" && !filepath.IsAbs(sc.Server.PolicyFile) {
		sc.Server.PolicyFile = filepath.Join(filepath.Dir(path), sc.Server.PolicyFile)
	}
	return sc, nil
}

// ParseScenario parses and sanity-checks scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, &types.KitError{
			Code:    types.ErrConfig,
			Message: fmt.Sprintf("parse scenario YAML: %v", err),
		}
	}
	if len(sc.Steps) == 0 {
		return nil, &types.KitError{
			Code:    types.ErrConfig,
			Message: "scenario has no steps",
		}
	}
	for i := range sc.Steps {
		st := &sc.Steps[i]
		if st.Path == "" {
			return nil, &types.KitError{
				Code:    types.ErrConfig,
				Message: fmt.Sprintf("step %d: path is required", i),
			}
		}
		if st.Method == "" {
			st.Method = http.MethodGet
		}
		if st.Name == "" {
			st.Name = fmt.Sprintf("step-%d", i+1)
		}
	}
	return &sc, nil
}

// Runner executes scenarios.
type Runner struct {
	log logger.Logger

	// client is shared across steps; no timeout so a simulated stall is
	// observed as the 408 rather than a client-side abort.
	client *http.Client
}

// NewRunner builds a runner. A nil logger is replaced by a noop.
func NewRunner(log logger.Logger) *Runner {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Runner{
		log:    log,
		client: &http.Client{},
	}
}

// Run spins the configured mock server on a loopback port, executes the
// steps in order, and shuts the server down.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*RunReport, error) {
	srvCfg, err := buildServerConfig(sc.Server, r.log)
	if err != nil {
		return nil, err
	}
	srv := server.New(srvCfg)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("bind loopback: %w", err)
	}
	httpSrv := &http.Server{Handler: srv.Handler()}
	go func() { _ = httpSrv.Serve(ln) }()
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutCtx)
	}()

	base := "http://" + ln.Addr().String()
	report := &RunReport{Scenario: sc.Name}
	for _, step := range sc.Steps {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Results = append(report.Results, r.runStep(ctx, base, step))
	}
	return report, nil
}

func (r *Runner) runStep(ctx context.Context, base string, step Step) StepResult {
	res := StepResult{Name: step.Name}

	req, err := http.NewRequestWithContext(ctx, step.Method, base+step.Path, nil)
	if err != nil {
		res.Err = err
		return res
	}
	for k, v := range step.Headers {
		req.Header.Set(k, v)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		res.Err = err
		return res
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		res.Err = err
		return res
	}

	res.Status = resp.StatusCode
	res.Failures = checkExpectation(step.Expect, resp, string(body))
	res.Passed = len(res.Failures) == 0

	r.log.Debug("harness step", map[string]any{
		"step":   step.Name,
		"status": resp.StatusCode,
		"passed": res.Passed,
	})
	return res
}

// checkExpectation compares a response against a step's expectations and
// returns one message per mismatch.
func checkExpectation(exp Expectation, resp *http.Response, body string) []string {
	var failures []string

	if exp.Status != 0 && resp.StatusCode != exp.Status {
		failures = append(failures,
			fmt.Sprintf("status: want %d, got %d", exp.Status, resp.StatusCode))
	}
	for name, prefix := range exp.HeaderPrefix {
		got := resp.Header.Get(name)
		if got == "" {
			failures = append(failures, fmt.Sprintf("header %s: missing", name))
			continue
		}
		if !strings.HasPrefix(got, prefix) {
			failures = append(failures,
				fmt.Sprintf("header %s: want prefix %q, got %q", name, prefix, got))
		}
	}
	for _, want := range exp.BodyContains {
		if !strings.Contains(body, want) {
			failures = append(failures, fmt.Sprintf("body: missing %q", want))
		}
	}
	if exp.Compliant {
		for _, f := range compliance.CheckResponse(resp.StatusCode, resp.Header, []byte(body)) {
			failures = append(failures, fmt.Sprintf("compliance %s: %s", f.Field, f.Message))
		}
	}
	return failures
}

// buildServerConfig translates the scenario's server section into a server
// configuration, loading the policy file when one is named.
func buildServerConfig(sc ServerConfig, log logger.Logger) (server.Config, error) {
	cfg := server.Config{Logger: log}

	if sc.Simulation != "" {
		mode, err := types.ParseSimulationMode(sc.Simulation)
		if err != nil {
			return cfg, err
		}
		cfg.Simulation = mode
	}
	if sc.Network != "" {
		nw, err := types.ParseNetwork(sc.Network)
		if err != nil {
			return cfg, err
		}
		cfg.Network = nw
	}
	if sc.TimeoutDelayMS > 0 {
		cfg.TimeoutDelay = time.Duration(sc.TimeoutDelayMS) * time.Millisecond
	}

	if sc.PolicyFile != "" {
		file, err := config.Load(sc.PolicyFile)
		if err != nil {
			return cfg, err
		}
		policies, err := policy.Compile(file.Policies)
		if err != nil {
			return cfg, err
		}
		cfg.Policies = policies

		if file.Pricing != nil {
			resolver, err := file.Pricing.Resolver()
			if err != nil {
				return cfg, err
			}
			cfg.Pricing = resolver
		}
		if file.Audit != nil && file.Audit.Enabled {
			trail, err := file.Audit.Trail()
			if err != nil {
				return cfg, err
			}
			cfg.Trail = trail
		}
	}
	return cfg, nil
}
