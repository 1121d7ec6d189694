package watch

import (
	"sync"
	"time"
)

// DefaultWindow is the debounce window used when none is configured.
const DefaultWindow = 100 * time.Millisecond

// Debouncer coalesces bursts of notifications. The first call in a burst
// notifies listeners immediately; further calls inside the window are
// absorbed. With Trailing set, one more notification fires at the end of a
// window that absorbed calls.
type Debouncer struct {
	window   time.Duration
	Trailing bool

	mu        sync.Mutex
	last      time.Time
	pending   bool
	timer     *time.Timer
	listeners []func()
}

// NewDebouncer creates a debouncer. A non-positive window uses DefaultWindow.
func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Debouncer{window: window}
}

// Subscribe registers fn to run on every notification.
func (d *Debouncer) Subscribe(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// Trigger records a change. It reports whether listeners were notified.
func (d *Debouncer) Trigger() bool {
	d.mu.Lock()
	if !d.last.IsZero() && time.Since(d.last) < d.window {
		if d.Trailing && !d.pending {
			d.pending = true
			d.timer = time.AfterFunc(d.window-time.Since(d.last), d.flush)
		}
		d.mu.Unlock()
		return false
	}
	d.last = time.Now()
	listeners := append([]func(){}, d.listeners...)
	d.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
	return true
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.last = time.Now()
	listeners := append([]func(){}, d.listeners...)
	d.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// Stop cancels a pending trailing notification.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = false
}
