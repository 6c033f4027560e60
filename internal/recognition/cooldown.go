package recognition

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// cooldownTable tracks the last accepted recognition per identity so
// repeated frames of the same person do not produce duplicate
// attendance entries. Entries older than the prune horizon are evicted
// periodically, keeping the table bounded in long-running processes.
// Only the loop mutates it, but Len is read from other goroutines.
type cooldownTable struct {
	interval  time.Duration
	horizon   time.Duration
	mu        sync.Mutex
	entries   map[string]time.Time
	lastPrune time.Time
}

func newCooldownTable(interval, horizon time.Duration) *cooldownTable {
	if horizon < interval {
		horizon = interval
	}
	return &cooldownTable{
		interval: interval,
		horizon:  horizon,
		entries:  make(map[string]time.Time),
	}
}

// Accept reports whether a recognition of the identity at the given
// time should be accepted, and records it if so.
func (t *cooldownTable) Accept(identityCode string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.maybePrune(now)

	if last, ok := t.entries[identityCode]; ok {
		if now.Sub(last) < t.interval {
			return false
		}
	}

	t.entries[identityCode] = now
	return true
}

// Len returns the number of tracked identities.
func (t *cooldownTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// maybePrune evicts entries older than the horizon, at most once per
// horizon interval. Caller holds the lock.
func (t *cooldownTable) maybePrune(now time.Time) {
	if now.Sub(t.lastPrune) < t.horizon {
		return
	}
	t.lastPrune = now

	evicted := 0
	for code, last := range t.entries {
		if now.Sub(last) > t.horizon {
			delete(t.entries, code)
			evicted++
		}
	}
	if evicted > 0 {
		log.Debugf("Cooldown table pruned %d stale entr(ies), %d remaining", evicted, len(t.entries))
	}
}
