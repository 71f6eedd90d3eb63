package arbitrage

import (
	"sync"
	"time"
)

// DefaultCooldown is the minimum spacing between execution attempts.
const DefaultCooldown = 2 * time.Second

// CooldownGate enforces a minimum interval between execution attempts. The
// timestamp only moves when TryAcquire succeeds, so scans that are refused
// never push the next allowed attempt further out.
type CooldownGate struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     time.Time
}

// NewCooldownGate creates a gate. A non-positive cooldown uses DefaultCooldown.
func NewCooldownGate(cooldown time.Duration) *CooldownGate {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &CooldownGate{cooldown: cooldown}
}

// TryAcquire reports whether an attempt may start at now and, if so, records
// now as the last attempt.
func (g *CooldownGate) TryAcquire(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.last.IsZero() && now.Sub(g.last) < g.cooldown {
		return false
	}
	g.last = now
	return true
}

// Remaining returns how long until the next attempt is allowed.
func (g *CooldownGate) Remaining(now time.Time) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.last.IsZero() {
		return 0
	}
	if d := g.cooldown - now.Sub(g.last); d > 0 {
		return d
	}
	return 0
}

// LastAttempt returns the time of the last successful acquire.
func (g *CooldownGate) LastAttempt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}
