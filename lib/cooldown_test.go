package lib

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCooldownSuppressesWithinWindow(t *testing.T) {
	c := NewCooldown(5 * time.Minute)
	base := time.Now()

	assert.True(t, c.TryAcquire("cpu", base))
	assert.False(t, c.TryAcquire("cpu", base.Add(4*time.Minute)))
	assert.True(t, c.TryAcquire("cpu", base.Add(6*time.Minute)))
}

func TestCooldownDeniedAttemptDoesNotResetClock(t *testing.T) {
	c := NewCooldown(5 * time.Minute)
	base := time.Now()

	assert.True(t, c.TryAcquire("cpu", base))
	// Rapid-fire triggers inside the window must not extend it.
	assert.False(t, c.TryAcquire("cpu", base.Add(4*time.Minute)))
	assert.True(t, c.TryAcquire("cpu", base.Add(5*time.Minute+time.Second)))
}

func TestCooldownKeysAreIndependent(t *testing.T) {
	c := NewCooldown(5 * time.Minute)
	now := time.Now()

	assert.True(t, c.TryAcquire("cpu", now))
	assert.True(t, c.TryAcquire("memory", now))
	assert.False(t, c.TryAcquire("cpu", now.Add(time.Second)))
	assert.False(t, c.TryAcquire("memory", now.Add(time.Second)))
}

func TestCooldownSingleWinnerUnderConcurrency(t *testing.T) {
	c := NewCooldown(5 * time.Minute)
	now := time.Now()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.TryAcquire("disk", now) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
