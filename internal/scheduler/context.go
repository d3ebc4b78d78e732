package scheduler

import (
	"sync"
	"time"

	"voyant/internal/logger"
)

// EscalateFunc is called when consecutive decision-cycle failures reach the
// configured ceiling. The process keeps running either way; escalation is an
// alert, not a shutdown.
type EscalateFunc func(consecutive int, lastErr error)

// Context holds the mutable scheduling state that would otherwise live in
// package globals: the cycle lock serializing decision and reflection runs,
// last-run timestamps, and the consecutive-failure counter. Keeping it in a
// value lets paper-trading and live instances coexist in one process.
type Context struct {
	mu sync.Mutex

	maxFails int
	escalate EscalateFunc
	nowFn    func() time.Time

	stateMu        sync.Mutex
	lastDecision   time.Time
	lastReflection time.Time
	failStreak     int
}

func NewContext(maxConsecutiveFails int, escalate EscalateFunc) *Context {
	if maxConsecutiveFails <= 0 {
		maxConsecutiveFails = 5
	}
	return &Context{
		maxFails: maxConsecutiveFails,
		escalate: escalate,
		nowFn:    time.Now,
	}
}

// RunDecision executes one decision cycle under the shared lock. A non-nil
// error counts toward the failure streak; reaching the ceiling fires the
// escalation hook and resets the streak so alerts don't repeat every cycle.
func (c *Context) RunDecision(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := fn()
	c.stateMu.Lock()
	c.lastDecision = c.nowFn().UTC()
	if err != nil {
		c.failStreak++
		streak := c.failStreak
		if streak >= c.maxFails {
			c.failStreak = 0
			c.stateMu.Unlock()
			logger.Errorf("scheduler: %d consecutive decision-cycle failures, escalating (last: %v)", streak, err)
			if c.escalate != nil {
				c.escalate(streak, err)
			}
			return err
		}
		c.stateMu.Unlock()
		return err
	}
	c.failStreak = 0
	c.stateMu.Unlock()
	return nil
}

// RunReflection executes one reflection cycle under the same lock, so it can
// never interleave with a decision cycle's ledger access.
func (c *Context) RunReflection(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := fn()
	c.stateMu.Lock()
	c.lastReflection = c.nowFn().UTC()
	c.stateMu.Unlock()
	return err
}

// LastRuns reports the most recent cycle completion times (zero if never run).
func (c *Context) LastRuns() (decision, reflection time.Time) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.lastDecision, c.lastReflection
}

// FailStreak reports the current consecutive decision-failure count.
func (c *Context) FailStreak() int {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.failStreak
}
