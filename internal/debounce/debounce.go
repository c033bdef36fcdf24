// Package debounce coalesces bursts of events into a single callback fired
// after a quiet window.
package debounce

import (
	"sync"
	"time"
)

// Batch summarizes the events coalesced into one fire.
type Batch struct {
	// Last is the key passed to the most recent Schedule.
	Last string
	// Count is how many Schedule calls the batch absorbed.
	Count int
}

// Debouncer fires its callback once per burst, window after the last
// Schedule. Callbacks run on a timer goroutine, or on the caller's goroutine
// for Flush.
type Debouncer struct {
	window time.Duration
	fire   func(Batch)

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending bool
	batch   Batch
	closed  bool
}

// New returns a Debouncer with the given quiet window.
func New(window time.Duration, fire func(Batch)) *Debouncer {
	return &Debouncer{window: window, fire: fire}
}

// Schedule records an event and restarts the quiet window.
func (d *Debouncer) Schedule(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.pending = true
	d.batch.Last = key
	d.batch.Count++
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, func() { d.fireIfCurrent(gen) })
}

// fireIfCurrent fires only if no Schedule, Cancel or Flush happened since
// the timer for gen was armed.
func (d *Debouncer) fireIfCurrent(gen uint64) {
	d.mu.Lock()
	if !d.pending || gen != d.gen {
		d.mu.Unlock()
		return
	}
	b := d.take()
	d.mu.Unlock()
	d.fire(b)
}

// take resets pending state and returns the batch. Callers hold mu.
func (d *Debouncer) take() Batch {
	b := d.batch
	d.batch = Batch{}
	d.pending = false
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	return b
}

// Flush fires a pending batch immediately. It reports whether anything fired.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return false
	}
	b := d.take()
	d.mu.Unlock()
	d.fire(b)
	return true
}

// Cancel drops a pending batch without firing.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.take()
}

// Pending reports whether a batch is waiting to fire.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Close cancels any pending batch and ignores later Schedule calls.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.take()
	d.closed = true
}
