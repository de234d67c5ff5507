package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock is the source of "now" and of timers for everything that reasons about deadlines
// or undo windows. Nothing in the sync layer calls time.Now directly.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable pending callback
type Timer interface {
	// Stop prevents the callback from firing. It returns false if the callback
	// already fired or the timer was already stopped.
	Stop() bool
}

type realClock struct{}

// Real returns a Clock backed by the time package
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Fake is a manually driven clock for tests. Timers fire synchronously from
// Advance and Set, in deadline order.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *Fake
	at    time.Time
	fn    func()
	done  bool
}

// NewFake creates a fake clock frozen at start
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake current time
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// AfterFunc schedules fn to run once the fake time reaches now+d
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := &fakeTimer{clock: f, at: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves the clock forward and fires every timer that became due
func (f *Fake) Advance(d time.Duration) {
	f.Set(f.Now().Add(d))
}

// Set moves the clock to t and fires every timer that became due
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t

	var due []*fakeTimer
	remaining := f.timers[:0]
	for _, ft := range f.timers {
		if ft.done {
			continue
		}
		if !ft.at.After(t) {
			ft.done = true
			due = append(due, ft)
			continue
		}
		remaining = append(remaining, ft)
	}
	f.timers = remaining
	f.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, ft := range due {
		ft.fn()
	}
}

// Pending returns the number of armed timers
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, ft := range f.timers {
		if !ft.done {
			n++
		}
	}
	return n
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.done {
		return false
	}
	t.done = true
	return true
}
