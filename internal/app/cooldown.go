package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/dkeye/LuckyClick/internal/domain"
)

type Action string

const (
	ActionDepositCheck Action = "deposit_check"
	ActionWithdraw     Action = "withdraw"
)

// RateLimitError is returned when an action is refused inside its window.
type RateLimitError struct {
	Action     Action
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: %s, retry in %s", domain.ErrRateLimited, e.Action, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return domain.ErrRateLimited }

type cooldownKey struct {
	user   domain.UserID
	action Action
}

// CooldownTracker enforces a refractory window per user and action. Actions
// without a configured window are never limited.
type CooldownTracker struct {
	mu      sync.Mutex
	clock   quartz.Clock
	windows map[Action]time.Duration
	last    map[cooldownKey]time.Time
}

func NewCooldownTracker(clock quartz.Clock, windows map[Action]time.Duration) *CooldownTracker {
	w := make(map[Action]time.Duration, len(windows))
	for a, d := range windows {
		w[a] = d
	}
	return &CooldownTracker{
		clock:   clock,
		windows: w,
		last:    make(map[cooldownKey]time.Time),
	}
}

// Allow reports whether user may perform action now and, if so, starts a new
// window.
func (c *CooldownTracker) Allow(user domain.UserID, action Action) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	window := c.windows[action]
	if window <= 0 {
		return true
	}
	now := c.clock.Now()
	key := cooldownKey{user, action}
	if last, ok := c.last[key]; ok && now.Sub(last) < window {
		return false
	}
	c.last[key] = now
	return true
}

// Remaining returns how long user still has to wait before action is allowed.
func (c *CooldownTracker) Remaining(user domain.UserID, action Action) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.last[cooldownKey{user, action}]
	if !ok {
		return 0
	}
	return max(c.windows[action]-c.clock.Now().Sub(last), 0)
}

// Sweep drops records whose window has passed.
func (c *CooldownTracker) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	n := 0
	for k, last := range c.last {
		if now.Sub(last) >= c.windows[k.action] {
			delete(c.last, k)
			n++
		}
	}
	return n
}
