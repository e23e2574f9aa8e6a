// Package autosave turns file edits into document saves: a Watcher follows
// one file and hands its settled content to a Sink after a quiet period.
package autosave

import (
	"sync"
	"time"
)

// Debouncer delays a call until no new call arrived for the debounce
// duration. Only the most recent function runs.
type Debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	pending  func()
	gen      uint64
	duration time.Duration
	inflight sync.WaitGroup
}

// NewDebouncer creates a new debouncer with the specified duration
func NewDebouncer(duration time.Duration) *Debouncer {
	return &Debouncer{
		duration: duration,
	}
}

// Debounce executes the function after the debounce duration has elapsed
// without any new calls. Rapid successive calls reset the timer.
func (d *Debouncer) Debounce(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.gen++
	gen := d.gen

	d.pending = fn
	d.inflight.Add(1)
	d.timer = time.AfterFunc(d.duration, func() {
		defer d.inflight.Done()
		d.mu.Lock()
		if d.gen != gen {
			// superseded or cancelled after firing
			d.mu.Unlock()
			return
		}
		d.pending, d.timer = nil, nil
		d.mu.Unlock()
		fn()
	})
}

// stopLocked stops the timer and reports whether it had not fired yet.
func (d *Debouncer) stopLocked() bool {
	if d.timer == nil {
		return false
	}
	stopped := d.timer.Stop()
	if stopped {
		// The timer func never ran, so release its slot here.
		d.inflight.Done()
	}
	d.timer = nil
	return stopped
}

// Cancel cancels any pending debounced function call
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.gen++
	d.pending = nil
}

// Immediate executes the function immediately and cancels any pending call
func (d *Debouncer) Immediate(fn func()) {
	d.Cancel()
	fn()
}

// Flush runs the pending call now, if its timer has not fired yet, and
// reports whether it did.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	run := d.pending
	if run == nil || !d.stopLocked() {
		d.mu.Unlock()
		return false
	}
	d.gen++
	d.pending = nil
	d.mu.Unlock()

	run()
	return true
}

// Wait blocks until every fired call has returned.
func (d *Debouncer) Wait() {
	d.inflight.Wait()
}
