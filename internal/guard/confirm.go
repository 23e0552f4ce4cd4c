package guard

import (
	"sync"
	"time"

	"github.com/kverlaine/opsdeck/internal/clock"
)

// DefaultConfirmWindow is how long an armed confirmation stays valid.
// Eight seconds is the compromise between safety and friction: long enough
// to read the prompt, short enough that a forgotten arm cannot fire later.
const DefaultConfirmWindow = 8 * time.Second

// Confirm is the danger-confirmation state machine. The first press of a
// destructive action arms it for a specific (action, target) pair; only a
// second press with the same pair inside the window executes. Navigation
// away from the target invalidates immediately, expiry is checked lazily
// on read.
type Confirm struct {
	mu     sync.Mutex
	clk    clock.Clock
	window time.Duration

	action    string
	target    string
	expiresAt time.Time
	armed     bool
}

// NewConfirm creates an unarmed Confirm. If window is zero,
// DefaultConfirmWindow is used.
func NewConfirm(clk clock.Clock, window time.Duration) *Confirm {
	if window <= 0 {
		window = DefaultConfirmWindow
	}
	return &Confirm{clk: clk, window: window}
}

// Arm records a pending destructive action against a target. Arming
// replaces any previous record.
func (c *Confirm) Arm(action, target string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.action = action
	c.target = target
	c.expiresAt = c.clk.Now().Add(c.window)
	c.armed = true
}

// Consume reports whether (action, target) is currently armed, and if so
// clears the record. One-shot: a consumed confirmation never re-arms
// automatically.
func (c *Confirm) Consume(action, target string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.validLocked(action, target) {
		return false
	}
	c.clearLocked()
	return true
}

// Armed reports whether (action, target) is armed and unexpired, clearing
// the record lazily when the window has passed.
func (c *Confirm) Armed(action, target string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validLocked(action, target)
}

// Remaining returns how much of the window is left for the armed record,
// or zero when nothing is armed.
func (c *Confirm) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.armed {
		return 0
	}
	d := c.expiresAt.Sub(c.clk.Now())
	if d < 0 {
		return 0
	}
	return d
}

// OnTargetChanged invalidates the armed record when the selected object
// changes. Selection-change always wins over expiry timing: re-selecting
// the same target after navigating away must not find the record armed,
// so any change clears it immediately.
func (c *Confirm) OnTargetChanged(newTarget string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.armed && c.target != newTarget {
		c.clearLocked()
	}
}

// OnViewChanged invalidates the armed record on any tab switch.
func (c *Confirm) OnViewChanged() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

// OnAdvancedModeDisabled invalidates the armed record when advanced mode,
// which gates visibility of destructive actions, is turned off.
func (c *Confirm) OnAdvancedModeDisabled() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *Confirm) validLocked(action, target string) bool {
	if !c.armed {
		return false
	}
	if c.clk.Now().After(c.expiresAt) || c.clk.Now().Equal(c.expiresAt) {
		// Lazy expiry.
		c.clearLocked()
		return false
	}
	return c.action == action && c.target == target
}

func (c *Confirm) clearLocked() {
	c.armed = false
	c.action = ""
	c.target = ""
	c.expiresAt = time.Time{}
}
