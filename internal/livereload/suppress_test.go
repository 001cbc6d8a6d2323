// SPDX-License-Identifier: MPL-2.0

package livereload

import (
	"testing"
	"time"

	"simwatch/internal/clock"
)

func TestSuppressorStaleExpiry(t *testing.T) {
	t.Parallel()

	fc := clock.NewFake(time.Time{})
	s := newSuppressor(SuppressionWindow, fc)

	var fired []uint64
	fire := func(seq uint64) { fired = append(fired, seq) }

	s.arm("index.html", Event{Path: "index.html", Root: RootAssets}, fire)
	if !s.suppressed("index.html") || s.open() != 1 {
		t.Fatal("arm did not open a window")
	}

	if n := s.cancelAll(); n != 1 {
		t.Fatalf("cancelAll() = %d, want 1", n)
	}
	if s.suppressed("index.html") {
		t.Error("cancelAll left the key suppressed")
	}

	s.arm("index.html", Event{Path: "index.html", Root: RootOverrides}, fire)
	fc.Advance(SuppressionWindow)
	if len(fired) != 1 {
		t.Fatalf("fired %d times, want 1 (the cancelled timer must not fire)", len(fired))
	}

	if _, ok := s.release("index.html", fired[0]-1); ok {
		t.Error("release accepted a stale sequence number")
	}
	ev, ok := s.release("index.html", fired[0])
	if !ok || ev.Root != RootOverrides {
		t.Fatalf("release() = %+v, %v", ev, ok)
	}
	if s.suppressed("index.html") || s.open() != 0 {
		t.Error("release left the window open")
	}
	if _, ok := s.release("index.html", fired[0]); ok {
		t.Error("second release succeeded")
	}
}
