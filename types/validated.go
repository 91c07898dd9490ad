package types

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// base58Pattern matches the Base58 alphabet: digits and ASCII letters minus
// 0, O, I and l.
var base58Pattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)

// SolanaAddress is an opaque Base58 recipient address, 32 to 44 characters.
// The content is not otherwise interpreted.
type SolanaAddress string

// NewSolanaAddress validates and wraps a recipient address.
func NewSolanaAddress(s string) (SolanaAddress, error) {
	addr := SolanaAddress(s)
	if err := addr.Validate(); err != nil {
		return "", err
	}
	return addr, nil
}

// Validate checks length and alphabet.
func (a SolanaAddress) Validate() error {
	if len(a) < 32 || len(a) > 44 {
		return &KitError{
			Code:    ErrInvalidAddress,
			Message: fmt.Sprintf("recipient address must be 32-44 characters, got %d", len(a)),
		}
	}
	if !base58Pattern.MatchString(string(a)) {
		return &KitError{
			Code:    ErrInvalidAddress,
			Message: "recipient address must be valid base58",
		}
	}
	return nil
}

func (a SolanaAddress) String() string {
	return string(a)
}

// InvoiceMemo is a UUID-based request correlation token. Its wire form is
// "req-<uuid>".
type InvoiceMemo struct {
	id uuid.UUID
}

// NewInvoiceMemo generates a fresh memo.
func NewInvoiceMemo() InvoiceMemo {
	return InvoiceMemo{id: uuid.New()}
}

// ParseInvoiceMemo parses the wire form, requiring the "req-" prefix and a
// canonical UUID.
func ParseInvoiceMemo(s string) (InvoiceMemo, error) {
	raw, ok := strings.CutPrefix(s, "req-")
	if !ok {
		return InvoiceMemo{}, &KitError{
			Code:    ErrInvalidMemo,
			Message: fmt.Sprintf("memo must have req- prefix: %s", s),
		}
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return InvoiceMemo{}, &KitError{
			Code:    ErrInvalidMemo,
			Message: fmt.Sprintf("memo must contain a valid UUID: %v", err),
		}
	}
	return InvoiceMemo{id: id}, nil
}

// Validate checks the memo carries a non-zero UUID.
func (m InvoiceMemo) Validate() error {
	if m.id == uuid.Nil {
		return &KitError{
			Code:    ErrInvalidMemo,
			Message: "memo UUID is unset",
		}
	}
	return nil
}

// UUID returns the underlying identifier.
func (m InvoiceMemo) UUID() uuid.UUID {
	return m.id
}

// String renders the wire form.
func (m InvoiceMemo) String() string {
	return "req-" + m.id.String()
}

// MarshalJSON serializes the wire form.
func (m InvoiceMemo) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON parses the wire form.
func (m *InvoiceMemo) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseInvoiceMemo(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Port is an unprivileged TCP port (1024-65535).
type Port uint16

// NewPort validates a port number.
func NewPort(n int) (Port, error) {
	if n < 1024 || n > 65535 {
		return 0, &KitError{
			Code:    ErrInvalidPort,
			Message: fmt.Sprintf("port must be between 1024 and 65535, got %d", n),
		}
	}
	return Port(n), nil
}

func (p Port) Int() int {
	return int(p)
}

func (p Port) String() string {
	return fmt.Sprintf("%d", uint16(p))
}

// ResourcePath is a non-empty absolute HTTP path.
type ResourcePath string

// NewResourcePath validates a resource path.
func NewResourcePath(s string) (ResourcePath, error) {
	if s == "" || !strings.HasPrefix(s, "/") {
		return "", &KitError{
			Code:    ErrInvalidResource,
			Message: fmt.Sprintf("resource path must start with /: %q", s),
		}
	}
	return ResourcePath(s), nil
}

func (p ResourcePath) String() string {
	return string(p)
}
