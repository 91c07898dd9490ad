package types

import (
	"fmt"
	"time"
)

// X402Version represents the version of the x402 protocol.
type X402Version int

const (
	X402Version1 X402Version = 1
)

// Scheme is the leading token of the WWW-Authenticate challenge.
const Scheme = "x402-solana"

// InvoiceTTL is how long an issued invoice stays valid.
const InvoiceTTL = 5 * time.Minute

// Invoice is a serialized payment demand embedded in a WWW-Authenticate
// header. Expiry is always strictly after creation and the amount strictly
// positive.
type Invoice struct {
	Recipient SolanaAddress `json:"recipient"`
	Amount    Amount        `json:"amount"`
	Currency  Currency      `json:"currency"`
	Memo      InvoiceMemo   `json:"memo"`
	Network   Network       `json:"network"`
	CreatedAt time.Time     `json:"createdAt"`
	Resource  ResourcePath  `json:"resource"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

// Validate checks the invoice invariants.
func (inv *Invoice) Validate() error {
	if err := inv.Recipient.Validate(); err != nil {
		return err
	}
	if !inv.Amount.IsPositive() {
		return &KitError{
			Code:    ErrInvalidAmount,
			Message: fmt.Sprintf("invoice amount must be positive, got %s", inv.Amount),
		}
	}
	if _, err := ParseCurrency(inv.Currency.String()); err != nil {
		return err
	}
	if err := inv.Memo.Validate(); err != nil {
		return err
	}
	if _, err := ParseNetwork(inv.Network.String()); err != nil {
		return err
	}
	if !inv.ExpiresAt.After(inv.CreatedAt) {
		return &KitError{
			Code:    ErrInvalidInvoice,
			Message: "invoice expiry must be after creation",
		}
	}
	return nil
}

// Expired reports whether the invoice has passed its expiry at the given time.
func (inv *Invoice) Expired(now time.Time) bool {
	return now.After(inv.ExpiresAt)
}

// Request is the input to policy evaluation. The timestamp is supplied by the
// caller so evaluation is deterministic under test.
type Request struct {
	AgentID   string    `json:"agentId"`
	Wallet    string    `json:"wallet,omitempty"`
	PeerIP    string    `json:"peerIp,omitempty"`
	Endpoint  string    `json:"endpoint"`
	Amount    Amount    `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// Decision is the outcome of evaluating a Request against the policy set.
type Decision struct {
	Allowed  bool   `json:"allowed"`
	PolicyID string `json:"policyId"`
	Reason   string `json:"reason,omitempty"`
}

// AllowDecision builds an allow decision attributed to a policy.
func AllowDecision(policyID string) Decision {
	return Decision{Allowed: true, PolicyID: policyID}
}

// DenyDecision builds a deny decision with a human-readable reason.
func DenyDecision(policyID, reason string) Decision {
	return Decision{Allowed: false, PolicyID: policyID, Reason: reason}
}

// IsAllow reports whether the decision admits the request.
func (d Decision) IsAllow() bool { return d.Allowed }

// IsDeny reports whether the decision rejects the request.
func (d Decision) IsDeny() bool { return !d.Allowed }

// SimulationMode selects the mock facilitator's response to a payment proof.
type SimulationMode string

const (
	SimulationSuccess SimulationMode = "success"
	SimulationFailure SimulationMode = "failure"
	SimulationTimeout SimulationMode = "timeout"
)

// ParseSimulationMode parses a simulation mode tag.
func ParseSimulationMode(s string) (SimulationMode, error) {
	switch SimulationMode(s) {
	case SimulationSuccess, SimulationFailure, SimulationTimeout:
		return SimulationMode(s), nil
	default:
		return "", &KitError{
			Code:    ErrConfig,
			Message: fmt.Sprintf("unsupported simulation mode: %s", s),
		}
	}
}

// PaymentRequired is the JSON body of a 402 response.
type PaymentRequired struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	Amount   Amount `json:"amount"`
	Currency string `json:"currency"`
}

// KitError is the toolkit's structured error type.
type KitError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e KitError) Error() string {
	return e.Message
}

// Common error codes
const (
	ErrInvalidAmount   = "INVALID_AMOUNT"
	ErrInvalidCurrency = "INVALID_CURRENCY"
	ErrInvalidNetwork  = "INVALID_NETWORK"
	ErrInvalidAddress  = "INVALID_ADDRESS"
	ErrInvalidMemo     = "INVALID_MEMO"
	ErrInvalidPort     = "INVALID_PORT"
	ErrInvalidResource = "INVALID_RESOURCE"
	ErrInvalidInvoice  = "INVALID_INVOICE"
	ErrInvalidPolicy   = "INVALID_POLICY"
	ErrArithmetic      = "ARITHMETIC_ERROR"
	ErrConfig          = "CONFIG_ERROR"
	ErrProtocol        = "PROTOCOL_ERROR"
	ErrResource        = "RESOURCE_ERROR"
)
