package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountFromString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "integer", input: "5", want: "5"},
		{name: "fractional", input: "0.01", want: "0.01"},
		{name: "zero", input: "0", want: "0"},
		{name: "negative", input: "-1", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "garbage", input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := AmountFromString(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.String())
		})
	}
}

func TestAmountExactArithmetic(t *testing.T) {
	// 0.1 + 0.2 must be exactly 0.3, never a binary-float artifact.
	a := MustAmount("0.1")
	b := MustAmount("0.2")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.True(t, sum.Equal(MustAmount("0.3")))
	assert.Equal(t, "0.3", sum.String())
}

func TestAmountSubUnderflow(t *testing.T) {
	a := MustAmount("1.00")
	b := MustAmount("2.00")

	_, err := a.Sub(b)
	require.Error(t, err)

	var kerr *KitError
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, ErrArithmetic, kerr.Code)
}

func TestAmountDivByZero(t *testing.T) {
	_, err := MustAmount("1").Div(ZeroAmount)
	require.Error(t, err)
}

func TestAmountMinorUnitsRoundTrip(t *testing.T) {
	for _, n := range []int64{0, 1, 999999, 1000000, 1<<53 - 1} {
		a, err := AmountFromMinorUnits(n, 6)
		require.NoError(t, err)

		got, err := a.MinorUnits(6)
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}
}

func TestAmountMinorUnitsTruncates(t *testing.T) {
	// USDC has 6 decimals; digits beyond that are dropped, not rounded.
	a := MustAmount("0.0000019")
	n, err := a.MinorUnits(6)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAmountJSONRoundTrip(t *testing.T) {
	a := MustAmount("12.345678")

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `"12.345678"`, string(data))

	var back Amount
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, a.Equal(back))
}

func TestAmountOrdering(t *testing.T) {
	assert.Equal(t, -1, MustAmount("1").Cmp(MustAmount("2")))
	assert.Equal(t, 0, MustAmount("1.50").Cmp(MustAmount("1.5")))
	assert.Equal(t, 1, MustAmount("2").Cmp(MustAmount("1")))
}
