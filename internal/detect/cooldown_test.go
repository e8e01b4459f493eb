package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestCooldown_BoundaryAt30Seconds covers invariant 10: after firing at
// t=0, no second alert fires for the same key before t=30s; at t=30.001s
// it fires again.
func TestCooldown_BoundaryAt30Seconds(t *testing.T) {
	c := NewCooldown(30 * time.Second)
	t0 := time.Unix(1_700_000_000, 0)
	c.Fire("k", t0)

	assert.True(t, c.InCooldown("k", t0.Add(29*time.Second)))
	assert.True(t, c.InCooldown("k", t0.Add(30*time.Second)), "exactly 30s is still within cooldown")
	assert.False(t, c.InCooldown("k", t0.Add(30*time.Second+time.Millisecond)))
}

func TestCooldown_UnknownKeyIsNotInCooldown(t *testing.T) {
	c := NewCooldown(30 * time.Second)
	assert.False(t, c.InCooldown("never-fired", time.Now()))
}

func TestCooldown_RefiringResetsWindow(t *testing.T) {
	c := NewCooldown(30 * time.Second)
	t0 := time.Unix(1_700_000_000, 0)
	c.Fire("k", t0)
	c.Fire("k", t0.Add(40*time.Second))
	assert.True(t, c.InCooldown("k", t0.Add(50*time.Second)))
}
