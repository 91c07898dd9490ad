// Package audit writes an append-only trail of policy decisions in CSV or
// JSON-lines form.
package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/x402dev/x402kit/types"
)

// Format selects the trail encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Entry is one audited decision.
type Entry struct {
	Time     time.Time `json:"time"`
	AgentID  string    `json:"agentId"`
	Endpoint string    `json:"endpoint"`
	Amount   string    `json:"amount"`
	Decision string    `json:"decision"`
	PolicyID string    `json:"policyId"`
	Reason   string    `json:"reason,omitempty"`
}

// Trail serializes entries to a destination. Safe for concurrent writers.
type Trail struct {
	mu     sync.Mutex
	format Format
	out    io.Writer
	closer io.Closer
	csv    *csv.Writer
}

// Open creates a trail writing to the destination path, or stdout when the
// destination is empty or "stdout".
func Open(format Format, destination string) (*Trail, error) {
	switch format {
	case FormatCSV, FormatJSON:
	default:
		return nil, &types.KitError{
			Code:    types.ErrConfig,
			Message: fmt.Sprintf("unsupported audit format: %s", format),
		}
	}

	t := &Trail{format: format, out: os.Stdout}
	if destination != "" && destination != "stdout" {
		f, err := os.OpenFile(destination, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, &types.KitError{
				Code:    types.ErrConfig,
				Message: fmt.Sprintf("cannot open audit destination: %v", err),
			}
		}
		t.out = f
		t.closer = f
	}
	if format == FormatCSV {
		t.csv = csv.NewWriter(t.out)
	}
	return t, nil
}

// NewWriterTrail builds a trail over an arbitrary writer, mainly for tests.
func NewWriterTrail(format Format, w io.Writer) *Trail {
	t := &Trail{format: format, out: w}
	if format == FormatCSV {
		t.csv = csv.NewWriter(w)
	}
	return t
}

// Record appends a decision for a request.
func (t *Trail) Record(req types.Request, decision types.Decision) error {
	entry := Entry{
		Time:     req.Timestamp,
		AgentID:  req.AgentID,
		Endpoint: req.Endpoint,
		Amount:   req.Amount.String(),
		PolicyID: decision.PolicyID,
		Reason:   decision.Reason,
		Decision: "deny",
	}
	if decision.IsAllow() {
		entry.Decision = "allow"
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.format {
	case FormatCSV:
		err := t.csv.Write([]string{
			entry.Time.Format(time.RFC3339Nano),
			entry.AgentID,
			entry.Endpoint,
			entry.Amount,
			entry.Decision,
			entry.PolicyID,
			entry.Reason,
		})
		if err != nil {
			return err
		}
		t.csv.Flush()
		return t.csv.Error()
	default:
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		_, err = t.out.Write(append(data, '\n'))
		return err
	}
}

// Close releases the underlying file, if any.
func (t *Trail) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.csv != nil {
		t.csv.Flush()
	}
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}
