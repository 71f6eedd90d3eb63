package arbitrage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCooldownGate_FirstAttemptAllowed(t *testing.T) {
	g := NewCooldownGate(2 * time.Second)
	assert.True(t, g.TryAcquire(time.Unix(1000, 0)))
}

func TestCooldownGate_SpacingIsEnforced(t *testing.T) {
	g := NewCooldownGate(2 * time.Second)
	t0 := time.Unix(1000, 0)

	var attempts []time.Time
	for i := 0; i < 50; i++ {
		now := t0.Add(time.Duration(i) * 300 * time.Millisecond)
		if g.TryAcquire(now) {
			attempts = append(attempts, now)
		}
	}

	assert.Greater(t, len(attempts), 1)
	for i := 1; i < len(attempts); i++ {
		assert.GreaterOrEqual(t, attempts[i].Sub(attempts[i-1]), 2*time.Second)
	}
}

func TestCooldownGate_RefusedScansDoNotMoveTimestamp(t *testing.T) {
	g := NewCooldownGate(2 * time.Second)
	t0 := time.Unix(1000, 0)

	assert.True(t, g.TryAcquire(t0))
	assert.False(t, g.TryAcquire(t0.Add(1*time.Second)))
	assert.False(t, g.TryAcquire(t0.Add(1900*time.Millisecond)))
	assert.Equal(t, t0, g.LastAttempt())

	// Exactly at the boundary the gate opens.
	assert.True(t, g.TryAcquire(t0.Add(2*time.Second)))
}

func TestCooldownGate_Remaining(t *testing.T) {
	g := NewCooldownGate(2 * time.Second)
	t0 := time.Unix(1000, 0)

	assert.Equal(t, time.Duration(0), g.Remaining(t0))
	g.TryAcquire(t0)
	assert.Equal(t, 1500*time.Millisecond, g.Remaining(t0.Add(500*time.Millisecond)))
	assert.Equal(t, time.Duration(0), g.Remaining(t0.Add(3*time.Second)))
}

func TestCooldownGate_DefaultsWhenNonPositive(t *testing.T) {
	g := NewCooldownGate(0)
	t0 := time.Unix(1000, 0)
	g.TryAcquire(t0)
	assert.False(t, g.TryAcquire(t0.Add(DefaultCooldown-time.Millisecond)))
	assert.True(t, g.TryAcquire(t0.Add(DefaultCooldown)))
}
