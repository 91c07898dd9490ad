package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ledgerNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestRateLedgerWindowExact(t *testing.T) {
	l := NewRateLedger()
	window := 60 * time.Second

	// A timestamp exactly at now-window counts; one nanosecond older does not.
	l.Record(ledgerNow.Add(-window))
	l.Record(ledgerNow.Add(-window - time.Nanosecond))

	assert.Equal(t, 1, l.CountInWindow(window, ledgerNow))
}

func TestRateLedgerFutureTimestampsNeverCount(t *testing.T) {
	l := NewRateLedger()
	for i := 0; i < 1000; i++ {
		l.Record(ledgerNow.Add(100 * time.Second))
	}
	assert.Equal(t, 0, l.CountInWindow(60*time.Second, ledgerNow))
}

func TestRateLedgerMonotoneInCount(t *testing.T) {
	l := NewRateLedger()
	for i := 0; i < 5; i++ {
		l.Record(ledgerNow)
	}
	// Once N are recorded in-window, max=N denies.
	assert.False(t, l.Admitted(60*time.Second, 5, ledgerNow))
	assert.True(t, l.Admitted(60*time.Second, 6, ledgerNow))
}

func TestRateLedgerZeroWidthWindow(t *testing.T) {
	l := NewRateLedger()
	l.Record(ledgerNow)
	l.Record(ledgerNow.Add(-time.Nanosecond))

	// Only timestamps exactly equal to now count.
	assert.Equal(t, 1, l.CountInWindow(0, ledgerNow))
}

func TestRateLedgerCleanup(t *testing.T) {
	l := NewRateLedger()
	l.Record(ledgerNow.Add(-2 * time.Hour)) // aged out
	l.Record(ledgerNow.Add(-30 * time.Minute))
	l.Record(ledgerNow.Add(time.Minute)) // future, dropped

	l.Cleanup(ledgerNow)
	assert.Equal(t, 1, l.Len())
}

func TestSpendLedgerTotalsAndBounds(t *testing.T) {
	l := NewSpendLedger()
	window := time.Hour

	l.Record(ledgerNow.Add(-window), 2_000_000)              // boundary, counts
	l.Record(ledgerNow.Add(-window-time.Nanosecond), 9_000_000) // outside
	l.Record(ledgerNow.Add(time.Second), 9_000_000)          // future, never counts
	l.Record(ledgerNow, 2_000_000)

	total, err := l.TotalInWindow(window, ledgerNow)
	require.NoError(t, err)
	assert.Equal(t, int64(4_000_000), total)
}

func TestSpendLedgerAllows(t *testing.T) {
	l := NewSpendLedger()
	window := time.Hour
	cap := int64(5_000_000) // 5.00 USDC

	l.Record(ledgerNow, 2_000_000)
	l.Record(ledgerNow, 2_000_000)

	// 4.00 + 2.00 > 5.00
	ok, err := l.Allows(window, cap, 2_000_000, ledgerNow)
	require.NoError(t, err)
	assert.False(t, ok)

	// 4.00 + 0.50 <= 5.00
	ok, err = l.Allows(window, cap, 500_000, ledgerNow)
	require.NoError(t, err)
	assert.True(t, ok)

	// Exactly at cap is allowed.
	ok, err = l.Allows(window, cap, 1_000_000, ledgerNow)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSpendLedgerOverflow(t *testing.T) {
	l := NewSpendLedger()
	l.Record(ledgerNow, 1<<62)
	l.Record(ledgerNow, 1<<62)

	_, err := l.TotalInWindow(time.Hour, ledgerNow)
	require.Error(t, err)
}

func TestSpendLedgerCleanup(t *testing.T) {
	l := NewSpendLedger()
	l.Record(ledgerNow.Add(-2*time.Hour), 1)
	l.Record(ledgerNow, 1)
	l.Record(ledgerNow.Add(time.Hour), 1)

	l.Cleanup(ledgerNow)
	assert.Equal(t, 1, l.Len())
}
