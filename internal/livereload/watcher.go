// SPDX-License-Identifier: MPL-2.0

package livereload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"simwatch/internal/clock"

	"github.com/charmbracelet/log"
)

type (
	// ChangeWatcher observes the www tree and the merges/<platform> tree of a
	// project and publishes coalesced file-changed events.
	//
	// Start and Stop may be called repeatedly from any goroutine. The
	// suppression state is kept across restarts.
	ChangeWatcher struct {
		projectRoot    string
		platform       string
		assetsDir      string
		overrideDir    string
		overrideExists bool

		notifier Notifier
		clock    clock.Clock
		logger   *log.Logger
		suppress *suppressor

		// lifecycle serializes Start and Stop.
		lifecycle sync.Mutex
		wg        sync.WaitGroup

		// mu guards the fields below.
		mu          sync.Mutex
		run         *run
		handles     []Subscription
		subscribers map[uint64]chan Event
		nextSubID   uint64
	}

	// Option configures a ChangeWatcher.
	Option func(*ChangeWatcher)

	// run is the state of one Start/Stop cycle.
	run struct {
		inbox chan message
		done  chan struct{}
	}

	message interface{ isMessage() }

	notification struct {
		root RootKind
		note Notification
	}

	expiry struct {
		key string
		seq uint64
	}

	query struct {
		reply chan<- int
	}
)

func (notification) isMessage() {}
func (expiry) isMessage()       {}
func (query) isMessage()        {}

// WithNotifier sets the recursive watch capability. There is no default; a
// watcher without a notifier fails to start.
func WithNotifier(n Notifier) Option {
	return func(w *ChangeWatcher) {
		w.notifier = n
	}
}

// WithLogger sets the logger used for the missing-path warning and debug
// tracing of dropped notifications.
func WithLogger(l *log.Logger) Option {
	return func(w *ChangeWatcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithClock replaces the clock that schedules suppression timers.
func WithClock(c clock.Clock) Option {
	return func(w *ChangeWatcher) {
		if c != nil {
			w.clock = c
		}
	}
}

// New creates a ChangeWatcher for projectRoot. The only I/O is a single stat
// of merges/<platform>; if it fails or is not a directory, override handling
// is disabled for the lifetime of the watcher. An empty platform disables it
// as well.
func New(projectRoot, platform string, opts ...Option) *ChangeWatcher {
	w := &ChangeWatcher{
		projectRoot: projectRoot,
		platform:    platform,
		assetsDir:   filepath.Join(projectRoot, AssetsDirName),
		overrideDir: filepath.Join(projectRoot, OverridesDirName, platform),
		clock:       clock.Real{},
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "livereload",
		}),
		subscribers: make(map[uint64]chan Event),
	}
	for _, opt := range opts {
		opt(w)
	}

	if platform != "" {
		if info, err := os.Stat(w.overrideDir); err == nil && info.IsDir() {
			w.overrideExists = true
		}
	}
	w.suppress = newSuppressor(SuppressionWindow, w.clock)

	return w
}

// ProjectRoot returns the project directory given to New.
func (w *ChangeWatcher) ProjectRoot() string {
	return w.projectRoot
}

// Platform returns the platform given to New.
func (w *ChangeWatcher) Platform() string {
	return w.platform
}

// AssetsDir returns the absolute www directory.
func (w *ChangeWatcher) AssetsDir() string {
	return w.assetsDir
}

// OverrideDir returns the merges/<platform> directory, whether or not it exists.
func (w *ChangeWatcher) OverrideDir() string {
	return w.overrideDir
}

// OverrideTreeExists reports whether merges/<platform> existed at construction.
func (w *ChangeWatcher) OverrideTreeExists() bool {
	return w.overrideExists
}

// Running reports whether Start has succeeded without a matching Stop.
func (w *ChangeWatcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.run != nil
}

// Start subscribes to the www tree and, if present, the override tree. Events
// are published asynchronously until Stop. A subscription failure is returned
// wrapping ErrWatchFailed and leaves the watcher stopped.
func (w *ChangeWatcher) Start() error {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	if w.Running() {
		return ErrAlreadyStarted
	}
	if w.notifier == nil {
		return fmt.Errorf("%w: no notifier configured", ErrWatchFailed)
	}

	r := &run{
		inbox: make(chan message, inboxSize),
		done:  make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop(r)

	handles := make([]Subscription, 0, 2)
	abort := func(err error) error {
		for _, h := range handles {
			_ = h.Close()
		}
		close(r.done)
		w.wg.Wait()
		return err
	}

	h, err := w.notifier.Watch(w.assetsDir, w.deliver(r, RootAssets))
	if err != nil {
		return abort(fmt.Errorf("%w: %s: %w", ErrWatchFailed, w.assetsDir, err))
	}
	handles = append(handles, h)

	if w.overrideExists {
		h, err := w.notifier.Watch(w.overrideDir, w.deliver(r, RootOverrides))
		if err != nil {
			return abort(fmt.Errorf("%w: %s: %w", ErrWatchFailed, w.overrideDir, err))
		}
		handles = append(handles, h)
	}

	w.mu.Lock()
	w.run = r
	w.handles = handles
	w.mu.Unlock()

	w.logger.Debug("watching", "www", w.assetsDir, "merges", w.overrideExists)
	return nil
}

// Stop closes both subscriptions and cancels suppression timers that have
// not fired yet, so no event is published after Stop returns. Calling Stop on
// a stopped or never-started watcher does nothing.
func (w *ChangeWatcher) Stop() {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	w.mu.Lock()
	r := w.run
	handles := w.handles
	w.run = nil
	w.handles = nil
	w.mu.Unlock()

	var closeErr error
	for _, h := range handles {
		if h == nil {
			continue
		}
		if err := h.Close(); err != nil {
			closeErr = errors.Join(closeErr, err)
		}
	}
	if closeErr != nil {
		w.logger.Debug("closing subscription", "error", closeErr)
	}

	if r == nil {
		return
	}
	close(r.done)
	w.wg.Wait()
}

// Subscribe registers a listener for file-changed events. The returned
// function removes the listener and closes the channel. Events are dropped for
// a listener whose buffer is full.
func (w *ChangeWatcher) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBufferSize)

	w.mu.Lock()
	w.nextSubID++
	id := w.nextSubID
	w.subscribers[id] = ch
	w.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.subscribers, id)
			close(ch)
			w.mu.Unlock()
		})
	}
	return ch, cancel
}

// Pending returns the number of suppression windows currently open, i.e.
// events waiting to be published. It is processed in order with
// notifications already received, and returns 0 when the watcher is stopped.
func (w *ChangeWatcher) Pending() int {
	w.mu.Lock()
	r := w.run
	w.mu.Unlock()
	if r == nil {
		return 0
	}

	reply := make(chan int, 1)
	if !r.send(query{reply: reply}) {
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-r.done:
		return 0
	}
}

// deliver adapts a Notifier callback for root onto the loop inbox.
func (w *ChangeWatcher) deliver(r *run, root RootKind) func(Notification) {
	return func(n Notification) {
		r.send(notification{root: root, note: n})
	}
}

func (r *run) send(m message) bool {
	select {
	case r.inbox <- m:
		return true
	case <-r.done:
		return false
	}
}

func (w *ChangeWatcher) loop(r *run) {
	defer w.wg.Done()

	for {
		select {
		case <-r.done:
			if n := w.suppress.cancelAll(); n > 0 {
				w.logger.Debug("cancelled pending events", "count", n)
			}
			return
		case m := <-r.inbox:
			switch m := m.(type) {
			case notification:
				w.handle(r, m.root, m.note)
			case expiry:
				w.expire(m.key, m.seq)
			case query:
				m.reply <- w.suppress.open()
			}
		}
	}
}

// handle runs one raw notification through the pipeline.
func (w *ChangeWatcher) handle(r *run, root RootKind, n Notification) {
	rel := n.Path

	reason := w.classify(root, rel)
	if reason == dropNoPath {
		w.logger.Warn("could not reload the modified file: the watcher did not report which file changed", "root", root)
		return
	}

	key := suppressionKey(rel)
	if reason == dropNone && w.suppress.suppressed(key) {
		reason = dropSuppressed
	}
	if reason != dropNone {
		w.logger.Debug("dropped", "root", root, "path", rel, "kind", n.Kind, "reason", string(reason))
		return
	}

	w.suppress.arm(key, Event{Path: rel, Root: root}, func(seq uint64) {
		r.send(expiry{key: key, seq: seq})
	})
}

// expire closes a suppression window and publishes its event.
func (w *ChangeWatcher) expire(key string, seq uint64) {
	event, ok := w.suppress.release(key, seq)
	if !ok {
		return
	}
	w.publish(event)
}

func (w *ChangeWatcher) publish(event Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for id, ch := range w.subscribers {
		select {
		case ch <- event:
		default:
			w.logger.Warn("subscriber buffer full, dropping event", "subscriber", id, "path", event.Path)
		}
	}
}
