// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"simwatch/internal/livereload"

	"github.com/charmbracelet/log"
	"github.com/rjeczalik/notify"
)

// notifyEventBuffer is the channel capacity handed to notify.Watch. notify
// drops events rather than block when the channel is full.
const notifyEventBuffer = 256

type (
	// notifyBackend uses a single recursive "root/..." watch point.
	notifyBackend struct{}

	notifySubscription struct {
		// root and resolved differ when root passes through a symlink, as
		// with the macOS temporary directory. Reported paths are resolved.
		root     string
		resolved string
		ignores  ignoreSet
		fn       func(livereload.Notification)
		events   chan notify.EventInfo

		done      chan struct{}
		wg        sync.WaitGroup
		closeOnce sync.Once
	}
)

func (notifyBackend) watch(root string, ignores ignoreSet, logger *log.Logger, fn func(livereload.Notification)) (livereload.Subscription, error) {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		resolved = root
	}

	s := &notifySubscription{
		root:     root,
		resolved: resolved,
		ignores:  ignores,
		fn:       fn,
		events:   make(chan notify.EventInfo, notifyEventBuffer),
		done:     make(chan struct{}),
	}
	if err := notify.Watch(filepath.Join(root, "..."), s.events, notify.All); err != nil {
		return nil, fmt.Errorf("watch: notify %s: %w", root, err)
	}
	logger.Debug("watching recursively", "root", root, "backend", BackendNotify)

	s.wg.Add(1)
	go s.loop()
	return s, nil
}

// Close unregisters the watch point and waits for the event loop to exit.
func (s *notifySubscription) Close() error {
	s.closeOnce.Do(func() {
		notify.Stop(s.events)
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

func (s *notifySubscription) loop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case ei := <-s.events:
			rel, ok := s.relative(ei.Path())
			if !ok || s.ignores.match(rel) {
				continue
			}
			s.fn(livereload.Notification{Kind: notifyKind(ei.Event()), Path: rel})
		}
	}
}

// relative maps an absolute event path back below the watched root.
func (s *notifySubscription) relative(path string) (string, bool) {
	for _, base := range []string{s.resolved, s.root} {
		rel, err := filepath.Rel(base, path)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return rel, true
	}
	return "", false
}

func notifyKind(e notify.Event) string {
	if e&(notify.Create|notify.Remove|notify.Rename) != 0 {
		return KindRename
	}
	return KindChange
}
