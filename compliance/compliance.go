// Package compliance checks x402 protocol surfaces for conformance:
// the WWW-Authenticate challenge, the 402 response shape, and the CORS
// contract. Each finding names the failing field so fixes are mechanical.
package compliance

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/x402dev/x402kit/types"
)

// Finding is one compliance violation.
type Finding struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s", f.Field, f.Message)
}

// CheckHeader validates a WWW-Authenticate challenge line. A nil result
// means fully conformant.
func CheckHeader(header string) []Finding {
	var findings []Finding

	fields := strings.Fields(header)
	if len(fields) == 0 {
		return []Finding{{Field: "header", Message: "empty WWW-Authenticate header"}}
	}
	if fields[0] != types.Scheme {
		findings = append(findings, Finding{
			Field:   "scheme",
			Message: fmt.Sprintf("got %q, want %q", fields[0], types.Scheme),
		})
	}

	kv := make(map[string]string)
	for _, f := range fields[1:] {
		key, value, ok := strings.Cut(f, "=")
		if !ok || key == "" {
			findings = append(findings, Finding{
				Field:   "pairs",
				Message: fmt.Sprintf("malformed key=value token %q", f),
			})
			continue
		}
		kv[key] = value
	}

	check := func(field string, fn func(string) error) {
		value, ok := kv[field]
		if !ok {
			findings = append(findings, Finding{Field: field, Message: "required field missing"})
			return
		}
		if err := fn(value); err != nil {
			findings = append(findings, Finding{Field: field, Message: err.Error()})
		}
	}

	check("recipient", func(v string) error {
		_, err := types.NewSolanaAddress(v)
		return err
	})
	check("amount", func(v string) error {
		a, err := types.AmountFromString(v)
		if err != nil {
			return err
		}
		if !a.IsPositive() {
			return fmt.Errorf("amount must be positive, got %s", v)
		}
		return nil
	})
	check("currency", func(v string) error {
		if v != strings.ToUpper(v) {
			return fmt.Errorf("currency must be uppercase on the wire, got %s", v)
		}
		_, err := types.ParseCurrency(v)
		return err
	})
	check("memo", func(v string) error {
		_, err := types.ParseInvoiceMemo(v)
		return err
	})
	check("network", func(v string) error {
		_, err := types.ParseNetwork(v)
		return err
	})

	return findings
}

// CheckResponse validates a full 402 response: status, challenge header,
// JSON body shape, and the CORS triple.
func CheckResponse(status int, headers http.Header, body []byte) []Finding {
	var findings []Finding

	if status != http.StatusPaymentRequired {
		findings = append(findings, Finding{
			Field:   "status",
			Message: fmt.Sprintf("got %d, want 402", status),
		})
	}

	challenge := headers.Get("WWW-Authenticate")
	if challenge == "" {
		findings = append(findings, Finding{Field: "WWW-Authenticate", Message: "header missing"})
	} else {
		findings = append(findings, CheckHeader(challenge)...)
	}

	findings = append(findings, checkCORS(headers)...)

	// amount may arrive as a JSON string or a bare number; both are accepted.
	var parsed struct {
		Error    *string     `json:"error"`
		Amount   interface{} `json:"amount"`
		Currency *string     `json:"currency"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		findings = append(findings, Finding{
			Field:   "body",
			Message: fmt.Sprintf("not valid JSON: %v", err),
		})
		return findings
	}
	if parsed.Error == nil {
		findings = append(findings, Finding{Field: "body.error", Message: "required field missing"})
	}
	if parsed.Amount == nil {
		findings = append(findings, Finding{Field: "body.amount", Message: "required field missing"})
	}
	if parsed.Currency == nil {
		findings = append(findings, Finding{Field: "body.currency", Message: "required field missing"})
	}

	return findings
}

func checkCORS(headers http.Header) []Finding {
	var findings []Finding
	expected := map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
		"Access-Control-Allow-Headers": "*",
	}
	for name, want := range expected {
		if got := headers.Get(name); got != want {
			findings = append(findings, Finding{
				Field:   name,
				Message: fmt.Sprintf("got %q, want %q", got, want),
			})
		}
	}
	return findings
}
