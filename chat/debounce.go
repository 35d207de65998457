package chat

import (
	"sync"
	"time"
)

// debouncer owns at most one pending timer fire. Reset replaces any pending
// fire, so callers get classic trailing-edge debounce without leaking timers
// across conversation switches.
type debouncer struct {
	mu    sync.Mutex
	timer *time.Timer
}

// Reset cancels any pending fire and schedules fn after delay.
func (d *debouncer) Reset(delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(delay, fn)
}

// Stop cancels the pending fire, if any.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
