package editor

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiescence window after the last source edit before
// a render is issued.
const DefaultDebounce = 1500 * time.Millisecond

// DebounceState is the state of a Debouncer.
type DebounceState int

const (
	// DebounceIdle means nothing is scheduled.
	DebounceIdle DebounceState = iota
	// DebouncePending means the callback runs at the deadline unless the
	// debouncer is triggered again or cancelled first.
	DebouncePending
	// DebounceFired means the last scheduled callback has started.
	DebounceFired
)

func (s DebounceState) String() string {
	switch s {
	case DebounceIdle:
		return "idle"
	case DebouncePending:
		return "pending"
	case DebounceFired:
		return "fired"
	default:
		return "unknown"
	}
}

// Debouncer runs fn once delay has passed without a new Trigger.
//
//	idle --Trigger--> pending(deadline) --deadline--> fired
//	pending --Trigger--> pending(new deadline)
//	pending --Cancel--> idle
//	fired --Trigger--> pending(deadline)
type Debouncer struct {
	delay time.Duration
	fn    func()

	mu       sync.Mutex
	state    DebounceState
	deadline time.Time
	timer    *time.Timer
	gen      uint64
	stopped  bool
}

// NewDebouncer creates a debouncer. A non-positive delay uses DefaultDebounce.
func NewDebouncer(delay time.Duration, fn func()) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger schedules fn at now+delay, replacing any pending deadline.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.state = DebouncePending
	d.deadline = time.Now().Add(d.delay)
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen || d.state != DebouncePending {
		d.mu.Unlock()
		return
	}
	d.state = DebounceFired
	d.timer = nil
	d.mu.Unlock()

	d.fn()
}

// Cancel drops a pending deadline and reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != DebouncePending {
		return false
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	d.state = DebounceIdle
	d.deadline = time.Time{}
	return true
}

// Stop cancels any pending deadline; later Triggers are ignored.
func (d *Debouncer) Stop() {
	d.Cancel()
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
}

// State returns the current state.
func (d *Debouncer) State() DebounceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Deadline returns the pending deadline, or the zero time.
func (d *Debouncer) Deadline() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != DebouncePending {
		return time.Time{}
	}
	return d.deadline
}
