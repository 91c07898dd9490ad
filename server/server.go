// Package server implements the mock x402 facilitator: an HTTP server that
// drives the invoice / 402 handshake over the policy engine.
package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/x402dev/x402kit/audit"
	"github.com/x402dev/x402kit/invoice"
	"github.com/x402dev/x402kit/logger"
	"github.com/x402dev/x402kit/metrics"
	"github.com/x402dev/x402kit/policy"
	"github.com/x402dev/x402kit/pricing"
	"github.com/x402dev/x402kit/types"
)

// ProofHeader carries the client's payment proof.
const ProofHeader = "x-payment-proof"

// AgentHeader identifies the requesting agent; absent, the peer IP stands in.
const AgentHeader = "x-agent-id"

// proofPrefix marks a proof the mock treats as well-formed.
const proofPrefix = "tx_"

// Config assembles a mock facilitator.
type Config struct {
	Pricing    *pricing.Resolver
	Policies   []types.Policy
	Network    types.Network
	Simulation types.SimulationMode

	// TimeoutDelay is how long SimulationTimeout stalls before the 408.
	TimeoutDelay time.Duration

	Logger  logger.Logger
	Metrics metrics.Recorder
	Trail   *audit.Trail

	// Clock supplies request timestamps; defaults to time.Now.
	Clock func() time.Time
}

// Server is the mock facilitator.
type Server struct {
	engine     *invoiceEngine
	router     chi.Router
	log        logger.Logger
	rec        metrics.Recorder
	trail      *audit.Trail
	simulation types.SimulationMode
	delay      time.Duration
	clock      func() time.Time
}

// invoiceEngine pairs the policy engine with pricing and invoice generation.
type invoiceEngine struct {
	policies *policy.Engine
	pricing  *pricing.Resolver
	gen      *invoice.Generator
}

// New builds the server and its routes.
func New(cfg Config) *Server {
	if cfg.Pricing == nil {
		cfg.Pricing = pricing.NewResolver(pricing.Config{
			Default:  types.MustAmount("0.01"),
			Currency: types.CurrencyUSDC,
		})
	}
	if cfg.Network == "" {
		cfg.Network = types.NetworkDevnet
	}
	if cfg.Simulation == "" {
		cfg.Simulation = types.SimulationSuccess
	}
	if cfg.TimeoutDelay == 0 {
		cfg.TimeoutDelay = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NoopLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NoopRecorder{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Policies == nil {
		// No policy file: admit everything, the protocol still demands
		// payment.
		cfg.Policies, _ = policy.Compile(nil)
	}

	s := &Server{
		engine: &invoiceEngine{
			policies: policy.NewEngine(cfg.Policies,
				policy.WithLogger(cfg.Logger),
				policy.WithMetrics(cfg.Metrics)),
			pricing: cfg.Pricing,
			gen:     invoice.NewGenerator(cfg.Pricing.Currency(), cfg.Network),
		},
		log:        cfg.Logger,
		rec:        cfg.Metrics,
		trail:      cfg.Trail,
		simulation: cfg.Simulation,
		delay:      cfg.TimeoutDelay,
		clock:      cfg.Clock,
	}

	r := chi.NewRouter()
	r.Use(corsMiddleware)
	r.Use(recoverMiddleware(cfg.Logger))
	r.Handle("/*", http.HandlerFunc(s.handle))
	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Engine exposes the policy engine, mainly for tests and the host's reaper.
func (s *Server) Engine() *policy.Engine {
	return s.engine.policies
}

// handle runs the per-request handshake state machine.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	proof := r.Header.Get(ProofHeader)
	if proof == "" {
		s.handleUnpaid(w, r)
		return
	}
	s.handleProof(w, r, proof)
}

// handleUnpaid evaluates policy and answers 402 with a fresh invoice. An
// admitted request is still invoiced: policy admission does not substitute
// for payment.
func (s *Server) handleUnpaid(w http.ResponseWriter, r *http.Request) {
	now := s.clock()
	amount := s.engine.pricing.PriceFor(r.URL.Path)

	req := types.Request{
		AgentID:   agentID(r),
		PeerIP:    peerIP(r),
		Endpoint:  r.URL.Path,
		Amount:    amount,
		Timestamp: now,
	}

	decision, err := s.engine.policies.Evaluate(req)
	if err != nil {
		s.log.Error("policy evaluation failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal evaluation error",
		})
		return
	}
	s.audit(req, decision)

	path, pathErr := types.NewResourcePath(r.URL.Path)
	if pathErr != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid resource path",
		})
		return
	}

	inv := s.engine.gen.Generate(amount, path, now)
	w.Header().Set("WWW-Authenticate", invoice.Render(inv))

	body := types.PaymentRequired{
		Error:    "Payment required",
		Message:  "submit payment and retry with the " + ProofHeader + " header",
		Amount:   amount,
		Currency: inv.Currency.String(),
	}
	if decision.IsDeny() {
		body.Error = decision.Reason
		body.Message = "request denied by policy " + decision.PolicyID
	}
	writeJSON(w, http.StatusPaymentRequired, body)
}

// handleProof inspects a submitted proof under the configured simulation
// mode. A proof without the tx_ prefix is malformed and fails regardless of
// mode.
func (s *Server) handleProof(w http.ResponseWriter, r *http.Request, proof string) {
	if !strings.HasPrefix(proof, proofPrefix) {
		s.rec.IncCounter("proof_malformed", nil)
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "invalid payment proof",
			"detail": "proof must begin with " + proofPrefix,
		})
		return
	}

	switch s.simulation {
	case types.SimulationFailure:
		s.rec.IncCounter("proof_rejected", nil)
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "payment verification failed",
			"detail": "simulated settlement failure",
		})
	case types.SimulationTimeout:
		time.Sleep(s.delay)
		s.rec.IncCounter("proof_timeout", nil)
		writeJSON(w, http.StatusRequestTimeout, map[string]string{
			"error": "payment verification timed out",
		})
	default:
		s.rec.IncCounter("proof_accepted", nil)
		writeJSON(w, http.StatusOK, map[string]any{
			"data":     "protected resource payload",
			"resource": r.URL.Path,
			"paid":     true,
		})
	}
}

func (s *Server) audit(req types.Request, decision types.Decision) {
	if s.trail == nil {
		return
	}
	if err := s.trail.Record(req, decision); err != nil {
		s.log.Warn("audit write failed", map[string]any{"error": err.Error()})
	}
}

func agentID(r *http.Request) string {
	if id := r.Header.Get(AgentHeader); id != "" {
		return id
	}
	return peerIP(r)
}

func peerIP(r *http.Request) string {
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx >= 0 {
		host = host[:idx]
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// corsMiddleware stamps the permissive CORS triple on every response.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		next.ServeHTTP(w, r)
	})
}

// recoverMiddleware converts panics into 500s so a poisoned request cannot
// take the process down mid-response.
func recoverMiddleware(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("handler panic", map[string]any{"panic": rec})
					writeJSON(w, http.StatusInternalServerError, map[string]string{
						"error": "internal server error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
