package audit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x402dev/x402kit/types"
)

func sampleRequest() types.Request {
	return types.Request{
		AgentID:   "agent-x",
		Endpoint:  "/api/data",
		Amount:    types.MustAmount("0.01"),
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestTrailCSV(t *testing.T) {
	var buf bytes.Buffer
	trail := NewWriterTrail(FormatCSV, &buf)

	require.NoError(t, trail.Record(sampleRequest(), types.AllowDecision("p1")))
	require.NoError(t, trail.Record(sampleRequest(), types.DenyDecision("p2", "Rate limit exceeded: 3 per 60s")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "agent-x,/api/data,0.01,allow,p1")
	assert.Contains(t, lines[1], "deny,p2")
}

func TestTrailJSON(t *testing.T) {
	var buf bytes.Buffer
	trail := NewWriterTrail(FormatJSON, &buf)

	require.NoError(t, trail.Record(sampleRequest(), types.DenyDecision("default", "No matching allow policy")))

	var entry Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "deny", entry.Decision)
	assert.Equal(t, "default", entry.PolicyID)
	assert.Equal(t, "0.01", entry.Amount)
}

func TestOpenRejectsUnknownFormat(t *testing.T) {
	_, err := Open("xml", "stdout")
	require.Error(t, err)
}
