// SPDX-License-Identifier: MPL-2.0

package livereload

import (
	"time"

	"simwatch/internal/clock"
)

type (
	// suppressor holds the per-key suppression flags and the timers that
	// clear them. It is owned by the watcher loop and is not locked.
	suppressor struct {
		window time.Duration
		clock  clock.Clock
		// flags grows for the lifetime of the watcher; entries are flipped,
		// never removed.
		flags   map[string]bool
		pending map[string]pendingEmit
		seq     uint64
	}

	pendingEmit struct {
		seq   uint64
		timer clock.Timer
		event Event
	}
)

func newSuppressor(window time.Duration, c clock.Clock) *suppressor {
	return &suppressor{
		window:  window,
		clock:   c,
		flags:   make(map[string]bool),
		pending: make(map[string]pendingEmit),
	}
}

func (s *suppressor) suppressed(key string) bool {
	return s.flags[key]
}

// arm marks key suppressed and schedules fire with a sequence number that
// release must be given back.
func (s *suppressor) arm(key string, event Event, fire func(seq uint64)) {
	s.seq++
	seq := s.seq
	s.flags[key] = true
	s.pending[key] = pendingEmit{
		seq:   seq,
		event: event,
		timer: s.clock.AfterFunc(s.window, func() { fire(seq) }),
	}
}

// release clears the suppression for key and returns the event captured when
// it was armed. Expiries from a cancelled or superseded timer are ignored.
func (s *suppressor) release(key string, seq uint64) (Event, bool) {
	entry, ok := s.pending[key]
	if !ok || entry.seq != seq {
		return Event{}, false
	}
	delete(s.pending, key)
	s.flags[key] = false
	return entry.event, true
}

// cancelAll stops every pending timer and clears its key. It returns the
// number of events that will no longer be emitted.
func (s *suppressor) cancelAll() int {
	n := len(s.pending)
	for key, entry := range s.pending {
		entry.timer.Stop()
		s.flags[key] = false
		delete(s.pending, key)
	}
	return n
}

func (s *suppressor) open() int {
	return len(s.pending)
}
