// SPDX-License-Identifier: MPL-2.0

// Package clock abstracts the timer operations used by the change watcher so
// that debounce windows can be driven deterministically in tests.
package clock

import (
	"sort"
	"sync"
	"time"
)

type (
	// Clock schedules callbacks after a delay.
	// Production code uses Real; tests use Fake.
	Clock interface {
		// Now returns the current time.
		Now() time.Time

		// AfterFunc calls f in its own goroutine once d has elapsed and
		// returns a Timer that can cancel the call.
		AfterFunc(d time.Duration, f func()) Timer
	}

	// Timer is a single-shot scheduled call.
	Timer interface {
		// Stop prevents the call from firing. It reports whether the call was
		// still pending.
		Stop() bool
	}

	// Real implements Clock using the runtime timers.
	Real struct{}

	// Fake implements Clock with manually controlled time. Scheduled calls run
	// synchronously from Advance, in deadline order.
	Fake struct {
		mu      sync.Mutex
		current time.Time
		nextID  uint64
		pending map[uint64]*fakeTimer
	}

	fakeTimer struct {
		clock    *Fake
		id       uint64
		deadline time.Time
		fn       func()
	}
)

// Now returns the current system time.
func (Real) Now() time.Time {
	return time.Now()
}

// AfterFunc wraps time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// NewFake creates a Fake clock set to initial. A zero initial time is
// replaced with a fixed reference time for reproducibility.
func NewFake(initial time.Time) *Fake {
	if initial.IsZero() {
		initial = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &Fake{
		current: initial,
		pending: make(map[uint64]*fakeTimer),
	}
}

// Now returns the current fake time.
func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// AfterFunc registers f to run when the fake time reaches now+d.
func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	t := &fakeTimer{
		clock:    c,
		id:       c.nextID,
		deadline: c.current.Add(d),
		fn:       f,
	}
	c.pending[t.id] = t
	return t
}

// Pending returns the number of scheduled calls that have not fired or been
// stopped.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Advance moves the fake time forward by d and runs every call whose deadline
// has been reached. Calls run outside the clock lock so they may schedule
// further timers.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	due := make([]*fakeTimer, 0, len(c.pending))
	for id, t := range c.pending {
		if !c.current.Before(t.deadline) {
			due = append(due, t)
			delete(c.pending, id)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline.Equal(due[j].deadline) {
			return due[i].id < due[j].id
		}
		return due[i].deadline.Before(due[j].deadline)
	})
	for _, t := range due {
		t.fn()
	}
}

// Stop cancels the scheduled call.
func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if _, ok := t.clock.pending[t.id]; !ok {
		return false
	}
	delete(t.clock.pending, t.id)
	return true
}
