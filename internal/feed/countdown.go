package feed

import (
	"sync"
	"time"
)

// Countdown ticks a counter down to zero on a fixed cadence and reports
// each step through a callback. It stops itself at zero; Stop may be
// called at any time and is idempotent, so owners can always stop it on
// teardown without tracking whether it already finished.
type Countdown struct {
	mu        sync.Mutex
	remaining int
	stopped   bool
	stop      chan struct{}
}

// NewCountdown starts a countdown from seconds, ticking every interval.
// onTick is called after each decrement with the countdown itself and
// the remaining count; the final call reports 0. Callers pass
// time.Second outside of tests.
func NewCountdown(seconds int, interval time.Duration, onTick func(c *Countdown, remaining int)) *Countdown {
	c := &Countdown{
		remaining: seconds,
		stop:      make(chan struct{}),
	}
	go c.run(interval, onTick)
	return c
}

func (c *Countdown) run(interval time.Duration, onTick func(*Countdown, int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.stopped {
				c.mu.Unlock()
				return
			}
			if c.remaining > 0 {
				c.remaining--
			}
			rem := c.remaining
			c.mu.Unlock()
			onTick(c, rem)
			if rem == 0 {
				c.Stop()
				return
			}
		}
	}
}

// Remaining returns the seconds left, or 0 once the countdown has been
// stopped.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return 0
	}
	return c.remaining
}

// Stop halts the countdown. A tick already in flight may still deliver
// its callback; consumers check their own state on each tick.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.stop)
}
