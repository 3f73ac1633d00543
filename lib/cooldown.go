package lib

import (
	"sync"
	"time"
)

// Cooldown suppresses repeat alerts for the same key inside a time window.
// State lives in process memory only; a restart clears every window.
type Cooldown struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
}

func NewCooldown(window time.Duration) *Cooldown {
	return &Cooldown{
		window: window,
		last:   make(map[string]time.Time),
	}
}

// TryAcquire grants permission to fire for key and records now as the new
// last-fired time, unless key already fired within the window. A denied
// attempt must not touch the stored timestamp, otherwise rapid-fire triggers
// would keep the window open forever. Exactly one of N concurrent callers
// for the same key wins.
func (c *Cooldown) TryAcquire(key string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.last[key]; ok && now.Sub(prev) <= c.window {
		return false
	}
	c.last[key] = now
	return true
}
