package policy

import "time"

// cleanupMargin is how far back cleanup retains entries. It exceeds any
// plausible window size so cleanup never discards timestamps a live window
// still needs.
const cleanupMargin = time.Hour

// RateLedger is the append-only record of admitted request timestamps under
// one (policy, principal) key. Only timestamps t with now-window <= t <= now
// count toward the limit; the upper bound keeps attacker-supplied future
// timestamps from ever inflating the count.
type RateLedger struct {
	timestamps []time.Time
}

// NewRateLedger returns an empty ledger.
func NewRateLedger() *RateLedger {
	return &RateLedger{}
}

// Clone returns an independent copy.
func (l *RateLedger) Clone() *RateLedger {
	out := &RateLedger{timestamps: make([]time.Time, len(l.timestamps))}
	copy(out.timestamps, l.timestamps)
	return out
}

// CountInWindow counts timestamps inside [now-window, now], both bounds
// inclusive.
func (l *RateLedger) CountInWindow(window time.Duration, now time.Time) int {
	lo := now.Add(-window)
	count := 0
	for _, t := range l.timestamps {
		if !t.Before(lo) && !t.After(now) {
			count++
		}
	}
	return count
}

// Admitted reports whether one more request fits under max within the window.
func (l *RateLedger) Admitted(window time.Duration, max int, now time.Time) bool {
	return l.CountInWindow(window, now) < max
}

// Record appends an admitted request's timestamp.
func (l *RateLedger) Record(t time.Time) {
	l.timestamps = append(l.timestamps, t)
}

// Len returns the raw entry count, windowed or not.
func (l *RateLedger) Len() int {
	return len(l.timestamps)
}

// Cleanup trims the ledger to [now-cleanupMargin, now]. Future entries are
// dropped along with aged ones.
func (l *RateLedger) Cleanup(now time.Time) {
	lo := now.Add(-cleanupMargin)
	kept := l.timestamps[:0]
	for _, t := range l.timestamps {
		if !t.Before(lo) && !t.After(now) {
			kept = append(kept, t)
		}
	}
	l.timestamps = kept
}
