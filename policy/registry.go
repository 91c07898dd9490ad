package policy

import (
	"fmt"
	"sync"
	"time"
)

// Registry is the process-wide store of per-(policy, principal) ledgers. The
// rate and spend tables are guarded by separate reader-writer locks; readers
// copy a ledger under the shared lock, writers replace it under the
// exclusive lock. A read-modify-write therefore spans two lock sections and
// concurrent evaluators of the same key can transiently overshoot a limit by
// at most their number.
type Registry struct {
	rateMu sync.RWMutex
	rate   map[string]*RateLedger

	spendMu sync.RWMutex
	spend   map[string]*SpendLedger

	// lastTouch tracks per-key activity for the optional reaper.
	touchMu   sync.Mutex
	lastTouch map[string]time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rate:      make(map[string]*RateLedger),
		spend:     make(map[string]*SpendLedger),
		lastTouch: make(map[string]time.Time),
	}
}

// RateKey builds the composite key for a rate ledger.
func RateKey(policyID, principal string) string {
	return fmt.Sprintf("rate:%s:%s", policyID, principal)
}

// SpendKey builds the composite key for a spending ledger.
func SpendKey(policyID, principal string) string {
	return fmt.Sprintf("spend:%s:%s", policyID, principal)
}

// GetRate returns a snapshot of the rate ledger under key. Missing keys read
// as empty ledgers.
func (r *Registry) GetRate(key string) *RateLedger {
	r.rateMu.RLock()
	defer r.rateMu.RUnlock()
	if l, ok := r.rate[key]; ok {
		return l.Clone()
	}
	return NewRateLedger()
}

// PutRate replaces the rate ledger under key.
func (r *Registry) PutRate(key string, l *RateLedger) {
	r.rateMu.Lock()
	r.rate[key] = l
	r.rateMu.Unlock()
	r.touch(key)
}

// GetSpend returns a snapshot of the spending ledger under key.
func (r *Registry) GetSpend(key string) *SpendLedger {
	r.spendMu.RLock()
	defer r.spendMu.RUnlock()
	if l, ok := r.spend[key]; ok {
		return l.Clone()
	}
	return NewSpendLedger()
}

// PutSpend replaces the spending ledger under key.
func (r *Registry) PutSpend(key string, l *SpendLedger) {
	r.spendMu.Lock()
	r.spend[key] = l
	r.spendMu.Unlock()
	r.touch(key)
}

func (r *Registry) touch(key string) {
	r.touchMu.Lock()
	r.lastTouch[key] = time.Now()
	r.touchMu.Unlock()
}

// Size reports how many ledger entries the registry holds across both maps.
func (r *Registry) Size() int {
	r.rateMu.RLock()
	n := len(r.rate)
	r.rateMu.RUnlock()

	r.spendMu.RLock()
	n += len(r.spend)
	r.spendMu.RUnlock()
	return n
}

// Cleanup trims every ledger to the retention margin. Keys stay in place;
// only their contents decay.
func (r *Registry) Cleanup(now time.Time) {
	r.rateMu.Lock()
	for _, l := range r.rate {
		l.Cleanup(now)
	}
	r.rateMu.Unlock()

	r.spendMu.Lock()
	for _, l := range r.spend {
		l.Cleanup(now)
	}
	r.spendMu.Unlock()
}

// Reap removes keys whose ledgers are empty and whose last write is older
// than idleFor. Optional hygiene for long-running processes; correctness does
// not depend on it.
func (r *Registry) Reap(now time.Time, idleFor time.Duration) int {
	cutoff := now.Add(-idleFor)
	removed := 0

	r.touchMu.Lock()
	stale := make([]string, 0)
	for key, at := range r.lastTouch {
		if at.Before(cutoff) {
			stale = append(stale, key)
		}
	}
	r.touchMu.Unlock()

	for _, key := range stale {
		r.rateMu.Lock()
		if l, ok := r.rate[key]; ok && l.Len() == 0 {
			delete(r.rate, key)
			removed++
		}
		_, inRate := r.rate[key]
		r.rateMu.Unlock()

		r.spendMu.Lock()
		if l, ok := r.spend[key]; ok && l.Len() == 0 {
			delete(r.spend, key)
			removed++
		}
		_, inSpend := r.spend[key]
		r.spendMu.Unlock()

		if !inRate && !inSpend {
			r.touchMu.Lock()
			delete(r.lastTouch, key)
			r.touchMu.Unlock()
		}
	}
	return removed
}
