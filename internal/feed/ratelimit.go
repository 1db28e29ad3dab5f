package feed

import (
	"sync"
	"time"
)

// Gate blocks refresh and load-more actions while a server-imposed
// rate-limit window is open. It is a two-state machine: idle (not
// blocking) and counting (blocking, with a live countdown). Arming an
// already-counting gate replaces the countdown rather than stacking a
// second one.
type Gate struct {
	mu        sync.Mutex
	countdown *Countdown
	remaining int
	interval  time.Duration
	onChange  func()
}

// NewGate creates an idle gate. interval is the tick cadence
// (time.Second in production); onChange fires after every state change
// and must not call back into the gate synchronously while holding
// locks the gate's owner also takes during Arm/Clear.
func NewGate(interval time.Duration, onChange func()) *Gate {
	if onChange == nil {
		onChange = func() {}
	}
	return &Gate{interval: interval, onChange: onChange}
}

// Arm starts (or restarts) the countdown at seconds. Arm with a
// non-positive value is ignored: a rate-limit error without a usable
// retry-after never blocks the user from trying again.
func (g *Gate) Arm(seconds int) {
	if seconds <= 0 {
		return
	}
	g.mu.Lock()
	if g.countdown != nil {
		g.countdown.Stop()
	}
	g.remaining = seconds
	g.countdown = NewCountdown(seconds, g.interval, g.tick)
	g.mu.Unlock()
	g.onChange()
}

// tick ignores callbacks from a countdown that has been replaced or
// cleared since it fired.
func (g *Gate) tick(from *Countdown, remaining int) {
	g.mu.Lock()
	if g.countdown == nil || g.countdown != from {
		g.mu.Unlock()
		return
	}
	g.remaining = remaining
	if remaining == 0 {
		g.countdown = nil
	}
	g.mu.Unlock()
	g.onChange()
}

// Clear stops any active countdown and unblocks immediately. Called on
// a successful fetch and on teardown.
func (g *Gate) Clear() {
	g.mu.Lock()
	if g.countdown == nil {
		g.mu.Unlock()
		return
	}
	g.countdown.Stop()
	g.countdown = nil
	g.remaining = 0
	g.mu.Unlock()
	g.onChange()
}

// Blocked reports whether the gate is currently counting.
func (g *Gate) Blocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.countdown != nil && g.remaining > 0
}

// Remaining returns the seconds left on the countdown, 0 when idle.
func (g *Gate) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.countdown == nil {
		return 0
	}
	return g.remaining
}
