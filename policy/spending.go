package policy

import (
	"math"
	"time"

	"github.com/x402dev/x402kit/types"
)

// SpendEntry is one admitted spend: when, and how much in minor units.
type SpendEntry struct {
	At     time.Time
	Amount int64
}

// SpendLedger is the append-only record of admitted spends under one
// (policy, principal) key. Amounts are integer minor units; accumulation is
// overflow-checked. Window semantics mirror RateLedger: inclusive bounds,
// future entries never counted.
type SpendLedger struct {
	entries []SpendEntry
}

// NewSpendLedger returns an empty ledger.
func NewSpendLedger() *SpendLedger {
	return &SpendLedger{}
}

// Clone returns an independent copy.
func (l *SpendLedger) Clone() *SpendLedger {
	out := &SpendLedger{entries: make([]SpendEntry, len(l.entries))}
	copy(out.entries, l.entries)
	return out
}

// TotalInWindow sums spends inside [now-window, now]. Overflow is an
// arithmetic error.
func (l *SpendLedger) TotalInWindow(window time.Duration, now time.Time) (int64, error) {
	lo := now.Add(-window)
	var total int64
	for _, e := range l.entries {
		if e.At.Before(lo) || e.At.After(now) {
			continue
		}
		if total > math.MaxInt64-e.Amount {
			return 0, &types.KitError{
				Code:    types.ErrArithmetic,
				Message: "spending total overflows minor units",
			}
		}
		total += e.Amount
	}
	return total, nil
}

// Allows reports whether spending pending more minor units stays at or under
// cap within the window.
func (l *SpendLedger) Allows(window time.Duration, cap, pending int64, now time.Time) (bool, error) {
	total, err := l.TotalInWindow(window, now)
	if err != nil {
		return false, err
	}
	if total > math.MaxInt64-pending {
		return false, &types.KitError{
			Code:    types.ErrArithmetic,
			Message: "pending spend overflows minor units",
		}
	}
	return total+pending <= cap, nil
}

// Record appends an admitted spend.
func (l *SpendLedger) Record(t time.Time, amount int64) {
	l.entries = append(l.entries, SpendEntry{At: t, Amount: amount})
}

// Len returns the raw entry count, windowed or not.
func (l *SpendLedger) Len() int {
	return len(l.entries)
}

// Cleanup trims the ledger to [now-cleanupMargin, now].
func (l *SpendLedger) Cleanup(now time.Time) {
	lo := now.Add(-cleanupMargin)
	kept := l.entries[:0]
	for _, e := range l.entries {
		if !e.At.Before(lo) && !e.At.After(now) {
			kept = append(kept, e)
		}
	}
	l.entries = kept
}
