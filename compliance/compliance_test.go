package compliance

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x402dev/x402kit/invoice"
	"github.com/x402dev/x402kit/types"
)

func validChallenge() string {
	g := invoice.NewGenerator(types.CurrencyUSDC, types.NetworkDevnet)
	inv := g.Generate(types.MustAmount("0.01"), "/api/data", time.Now())
	return invoice.Render(inv)
}

func TestCheckHeaderConformant(t *testing.T) {
	assert.Empty(t, CheckHeader(validChallenge()))
}

func TestCheckHeaderFindings(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantField string
	}{
		{name: "empty", header: "", wantField: "header"},
		{name: "wrong scheme", header: "basic realm=x", wantField: "scheme"},
		{
			name:      "missing recipient",
			header:    "x402-solana amount=1 currency=USDC memo=req-550e8400-e29b-41d4-a716-446655440000 network=devnet",
			wantField: "recipient",
		},
		{
			name:      "bad amount",
			header:    "x402-solana recipient=uY7miTSLcWTdShkhvoB1rXguXBmCqmHY7uArfX1AhKVH amount=0 currency=USDC memo=req-550e8400-e29b-41d4-a716-446655440000 network=devnet",
			wantField: "amount",
		},
		{
			name:      "lowercase currency",
			header:    "x402-solana recipient=uY7miTSLcWTdShkhvoB1rXguXBmCqmHY7uArfX1AhKVH amount=1 currency=usdc memo=req-550e8400-e29b-41d4-a716-446655440000 network=devnet",
			wantField: "currency",
		},
		{
			name:      "bad memo",
			header:    "x402-solana recipient=uY7miTSLcWTdShkhvoB1rXguXBmCqmHY7uArfX1AhKVH amount=1 currency=USDC memo=xyz network=devnet",
			wantField: "memo",
		},
		{
			name:      "bad network",
			header:    "x402-solana recipient=uY7miTSLcWTdShkhvoB1rXguXBmCqmHY7uArfX1AhKVH amount=1 currency=USDC memo=req-550e8400-e29b-41d4-a716-446655440000 network=moon",
			wantField: "network",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := CheckHeader(tt.header)
			require.NotEmpty(t, findings)

			fieldsSeen := make([]string, 0, len(findings))
			for _, f := range findings {
				fieldsSeen = append(fieldsSeen, f.Field)
			}
			assert.Contains(t, fieldsSeen, tt.wantField)
		})
	}
}

func TestCheckHeaderToleratesUnknownPairs(t *testing.T) {
	assert.Empty(t, CheckHeader(validChallenge()+" nonce=1 extra=ok"))
}

func TestCheckResponse(t *testing.T) {
	headers := http.Header{}
	headers.Set("WWW-Authenticate", validChallenge())
	headers.Set("Access-Control-Allow-Origin", "*")
	headers.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	headers.Set("Access-Control-Allow-Headers", "*")

	body := []byte(`{"error":"Payment required","message":"x","amount":"0.01","currency":"USDC"}`)
	assert.Empty(t, CheckResponse(402, headers, body))

	// Wrong status and missing CORS each produce a named finding.
	findings := CheckResponse(200, http.Header{}, []byte(`not json`))
	require.NotEmpty(t, findings)

	fields := make(map[string]bool)
	for _, f := range findings {
		fields[f.Field] = true
	}
	assert.True(t, fields["status"])
	assert.True(t, fields["WWW-Authenticate"])
	assert.True(t, fields["body"])
	assert.True(t, fields["Access-Control-Allow-Origin"])
}
