// SPDX-License-Identifier: MPL-2.0

package livereload

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"simwatch/internal/clock"

	"github.com/charmbracelet/log"
)

const missingPathWarning = "did not report which file changed"

type (
	fakeNotifier struct {
		mu      sync.Mutex
		subs    map[string]*fakeSubscription
		fail    map[string]error
		watched []string
	}

	fakeSubscription struct {
		mu     sync.Mutex
		fn     func(Notification)
		closes int
	}

	lockedBuffer struct {
		mu  sync.Mutex
		buf bytes.Buffer
	}

	harness struct {
		t        *testing.T
		root     string
		notifier *fakeNotifier
		clock    *clock.Fake
		logs     *lockedBuffer
		watcher  *ChangeWatcher
		events   <-chan Event
	}
)

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		subs: make(map[string]*fakeSubscription),
		fail: make(map[string]error),
	}
}

func (f *fakeNotifier) Watch(root string, fn func(Notification)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[root]; err != nil {
		return nil, err
	}
	sub := &fakeSubscription{fn: fn}
	f.subs[root] = sub
	f.watched = append(f.watched, root)
	return sub, nil
}

func (f *fakeNotifier) subscription(root string) *fakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[root]
}

func (s *fakeSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeSubscription) closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes > 0
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// newProject creates a project tree. Entries ending in "/" are directories,
// everything else is an empty file.
func newProject(t *testing.T, entries ...string) string {
	t.Helper()

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, AssetsDirName), 0o755); err != nil {
		t.Fatalf("create www: %v", err)
	}
	for _, entry := range entries {
		path := filepath.Join(root, filepath.FromSlash(entry))
		if strings.HasSuffix(entry, "/") {
			if err := os.MkdirAll(path, 0o755); err != nil {
				t.Fatalf("mkdir %s: %v", entry, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", entry, err)
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatalf("write %s: %v", entry, err)
		}
	}
	return root
}

func newHarness(t *testing.T, platform string, entries ...string) *harness {
	t.Helper()

	h := &harness{
		t:        t,
		root:     newProject(t, entries...),
		notifier: newFakeNotifier(),
		clock:    clock.NewFake(time.Time{}),
		logs:     &lockedBuffer{},
	}
	h.watcher = New(h.root, platform,
		WithNotifier(h.notifier),
		WithClock(h.clock),
		WithLogger(log.New(h.logs)),
	)
	events, cancel := h.watcher.Subscribe()
	h.events = events
	t.Cleanup(func() {
		h.watcher.Stop()
		cancel()
	})
	return h
}

func (h *harness) start() {
	h.t.Helper()
	if err := h.watcher.Start(); err != nil {
		h.t.Fatalf("Start() error: %v", err)
	}
}

func (h *harness) notify(root RootKind, path string) {
	h.t.Helper()
	dir := h.watcher.AssetsDir()
	if root == RootOverrides {
		dir = h.watcher.OverrideDir()
	}
	sub := h.notifier.subscription(dir)
	if sub == nil {
		h.t.Fatalf("no subscription for %s", dir)
	}
	sub.fn(Notification{Kind: "change", Path: path})
}

// advance waits until the loop has armed the windows for every notification
// sent so far, moves the clock, and waits again for the resulting expiries to
// be published.
func (h *harness) advance(d time.Duration) {
	h.watcher.Pending()
	h.clock.Advance(d)
	h.watcher.Pending()
}

func (h *harness) drain() []Event {
	var out []Event
	for {
		select {
		case ev := <-h.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestBurstCollapsesToSingleEvent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "ios", "www/index.html")
	h.start()

	for range 3 {
		h.notify(RootAssets, "index.html")
	}
	if got := h.watcher.Pending(); got != 1 {
		t.Fatalf("expected 1 open window, got %d", got)
	}

	h.advance(SuppressionWindow - time.Millisecond)
	if got := h.drain(); len(got) != 0 {
		t.Fatalf("event emitted before the window closed: %v", got)
	}

	h.advance(time.Millisecond)
	got := h.drain()
	want := Event{Path: "index.html", Root: RootAssets}
	if len(got) != 1 || got[0] != want {
		t.Fatalf("expected [%v], got %v", want, got)
	}

	h.advance(time.Second)
	if extra := h.drain(); len(extra) != 0 {
		t.Errorf("unexpected trailing events: %v", extra)
	}
}

func TestBurstKeepsFirstNotification(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "android", "www/app.css", "merges/android/")
	h.start()

	h.notify(RootAssets, "app.css")
	h.notify(RootOverrides, "app.css")
	h.advance(SuppressionWindow)

	got := h.drain()
	want := Event{Path: "app.css", Root: RootAssets}
	if len(got) != 1 || got[0] != want {
		t.Fatalf("expected [%v], got %v", want, got)
	}
}

func TestTemporaryFilesNeverEmit(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "ios")
	h.start()

	for _, path := range []string{"foo~.tmp", "bar.tm~p", filepath.Join("css", "site~1.TMP"), "index.htm~l"} {
		for range 3 {
			h.notify(RootAssets, path)
		}
	}
	if got := h.watcher.Pending(); got != 0 {
		t.Fatalf("expected no open windows, got %d", got)
	}
	h.advance(time.Second)
	if got := h.drain(); len(got) != 0 {
		t.Fatalf("temporary files produced events: %v", got)
	}
}

func TestDirectoryNotificationsNeverEmit(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "ios", "www/css/", "merges/ios/img/")
	h.start()

	h.notify(RootAssets, "css")
	h.notify(RootOverrides, "img")
	h.advance(time.Second)

	if got := h.drain(); len(got) != 0 {
		t.Fatalf("directories produced events: %v", got)
	}
}

func TestOverrideShadowsAssetFile(t *testing.T) {
	t.Parallel()

	logo := filepath.Join("images", "logo.png")
	h := newHarness(t, "ios", "www/images/logo.png", "merges/ios/images/logo.png")
	if !h.watcher.OverrideTreeExists() {
		t.Fatal("expected override tree to exist")
	}
	h.start()

	h.notify(RootAssets, logo)
	h.advance(SuppressionWindow)
	if got := h.drain(); len(got) != 0 {
		t.Fatalf("shadowed www file produced events: %v", got)
	}

	h.notify(RootOverrides, logo)
	h.advance(SuppressionWindow)
	got := h.drain()
	want := Event{Path: logo, Root: RootOverrides}
	if len(got) != 1 || got[0] != want {
		t.Fatalf("expected [%v], got %v", want, got)
	}
}

func TestAssetWithoutOverrideEmits(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "ios", "www/js/app.js", "merges/ios/js/other.js")
	h.start()

	rel := filepath.Join("js", "app.js")
	h.notify(RootAssets, rel)
	h.advance(SuppressionWindow)

	got := h.drain()
	if len(got) != 1 || got[0].Path != rel || got[0].Root != RootAssets {
		t.Fatalf("expected one www event for %s, got %v", rel, got)
	}
}

func TestDeletedFileStillEmits(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "ios")
	h.start()

	h.notify(RootAssets, "removed.html")
	h.advance(SuppressionWindow)

	if got := h.drain(); len(got) != 1 || got[0].Path != "removed.html" {
		t.Fatalf("expected one event for removed.html, got %v", got)
	}
}

func TestMissingPathWarnsWithoutEvent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "ios")
	h.start()

	h.notify(RootAssets, "")
	h.advance(time.Second)

	if got := h.drain(); len(got) != 0 {
		t.Fatalf("path-less notification produced events: %v", got)
	}
	if n := strings.Count(h.logs.String(), missingPathWarning); n != 1 {
		t.Fatalf("expected exactly 1 warning, got %d\n%s", n, h.logs.String())
	}

	h.notify(RootAssets, "")
	h.watcher.Pending()
	if n := strings.Count(h.logs.String(), missingPathWarning); n != 2 {
		t.Errorf("expected a warning per path-less notification, got %d", n)
	}
}

func TestKeyRearmsAfterWindow(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "ios", "www/index.html")
	h.start()

	h.notify(RootAssets, "index.html")
	h.advance(SuppressionWindow)
	h.notify(RootAssets, "index.html")
	h.advance(SuppressionWindow)

	if got := h.drain(); len(got) != 2 {
		t.Fatalf("expected 2 events, got %v", got)
	}
}

func TestDistinctPathsHaveIndependentWindows(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "ios")
	h.start()

	h.notify(RootAssets, "a.html")
	h.advance(100 * time.Millisecond)
	h.notify(RootAssets, "b.html")
	h.advance(50 * time.Millisecond)

	got := h.drain()
	if len(got) != 1 || got[0].Path != "a.html" {
		t.Fatalf("expected only a.html after 150ms, got %v", got)
	}

	h.advance(100 * time.Millisecond)
	got = h.drain()
	if len(got) != 1 || got[0].Path != "b.html" {
		t.Fatalf("expected b.html after its own window, got %v", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "ios", "merges/ios/")
	h.watcher.Stop()

	h.start()
	h.watcher.Stop()
	h.watcher.Stop()

	if h.watcher.Running() {
		t.Fatal("watcher still running after Stop")
	}
	for _, dir := range []string{h.watcher.AssetsDir(), h.watcher.OverrideDir()} {
		sub := h.notifier.subscription(dir)
		if sub == nil || !sub.closed() {
			t.Errorf("subscription for %s not closed", dir)
		}
	}
}

func TestStopCancelsPendingEvents(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "ios")
	h.start()

	h.notify(RootAssets, "index.html")
	h.watcher.Pending()
	h.watcher.Stop()

	h.clock.Advance(time.Second)
	if got := h.drain(); len(got) != 0 {
		t.Fatalf("event emitted after Stop: %v", got)
	}
	if n := h.clock.Pending(); n != 0 {
		t.Errorf("expected no scheduled timers after Stop, got %d", n)
	}

	// The cancelled key must not stay suppressed across a restart.
	h.start()
	h.notify(RootAssets, "index.html")
	h.advance(SuppressionWindow)
	if got := h.drain(); len(got) != 1 {
		t.Fatalf("expected 1 event after restart, got %v", got)
	}
}

func TestStartTwiceFails(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "ios")
	h.start()

	if err := h.watcher.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestStartWatchesOverrideOnlyWhenPresent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		platform string
		entries  []string
		want     int
	}{
		{name: "no merges", platform: "ios", want: 1},
		{name: "other platform", platform: "ios", entries: []string{"merges/android/"}, want: 1},
		{name: "merges is a file", platform: "ios", entries: []string{"merges/ios"}, want: 1},
		{name: "empty platform", platform: "", entries: []string{"merges/"}, want: 1},
		{name: "platform present", platform: "ios", entries: []string{"merges/ios/"}, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, tt.platform, tt.entries...)
			h.start()

			h.notifier.mu.Lock()
			watched := append([]string(nil), h.notifier.watched...)
			h.notifier.mu.Unlock()

			if len(watched) != tt.want {
				t.Fatalf("expected %d watches, got %v", tt.want, watched)
			}
			if watched[0] != filepath.Join(h.root, "www") {
				t.Errorf("expected www to be watched first, got %s", watched[0])
			}
		})
	}
}

func TestStartFailurePropagates(t *testing.T) {
	t.Parallel()

	cause := errors.New("no such directory")

	t.Run("www", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, "ios")
		h.notifier.fail[h.watcher.AssetsDir()] = cause

		err := h.watcher.Start()
		if !errors.Is(err, ErrWatchFailed) || !errors.Is(err, cause) {
			t.Fatalf("expected ErrWatchFailed wrapping cause, got %v", err)
		}
		if h.watcher.Running() {
			t.Error("watcher running after failed Start")
		}
	})

	t.Run("merges", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, "ios", "merges/ios/")
		h.notifier.fail[h.watcher.OverrideDir()] = cause

		if err := h.watcher.Start(); !errors.Is(err, cause) {
			t.Fatalf("expected cause, got %v", err)
		}
		if sub := h.notifier.subscription(h.watcher.AssetsDir()); sub == nil || !sub.closed() {
			t.Error("www subscription left open after failed Start")
		}

		delete(h.notifier.fail, h.watcher.OverrideDir())
		if err := h.watcher.Start(); err != nil {
			t.Fatalf("Start() after failure: %v", err)
		}
	})

	t.Run("no notifier", func(t *testing.T) {
		t.Parallel()

		w := New(t.TempDir(), "ios", WithLogger(log.New(&lockedBuffer{})))
		if err := w.Start(); !errors.Is(err, ErrWatchFailed) {
			t.Fatalf("expected ErrWatchFailed, got %v", err)
		}
	})
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "ios")
	events, cancel := h.watcher.Subscribe()
	cancel()
	cancel()

	if _, ok := <-events; ok {
		t.Fatal("expected closed channel after cancel")
	}

	h.start()
	h.notify(RootAssets, "index.html")
	h.advance(SuppressionWindow)
	if got := h.drain(); len(got) != 1 {
		t.Fatalf("remaining subscriber should still receive events, got %v", got)
	}
}

func TestRealClockEmitsAfterWindow(t *testing.T) {
	t.Parallel()

	root := newProject(t, "www/index.html")
	notifier := newFakeNotifier()
	w := New(root, "ios", WithNotifier(notifier), WithLogger(log.New(&lockedBuffer{})))
	events, cancel := w.Subscribe()
	defer cancel()

	if err := w.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer w.Stop()

	sub := notifier.subscription(w.AssetsDir())
	started := time.Now()
	for range 3 {
		sub.fn(Notification{Kind: "rename", Path: "index.html"})
	}

	select {
	case ev := <-events:
		if ev.Path != "index.html" || ev.Root != RootAssets {
			t.Fatalf("unexpected event %v", ev)
		}
		if elapsed := time.Since(started); elapsed < SuppressionWindow {
			t.Errorf("event emitted after %s, before the window closed", elapsed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case ev := <-events:
		t.Fatalf("unexpected second event %v", ev)
	case <-time.After(3 * SuppressionWindow):
	}
}
