// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"simwatch/internal/livereload"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

type (
	// fsnotifyBackend watches a tree by registering every directory with an
	// fsnotify.Watcher. Directories created after the initial walk are added
	// as their Create events arrive.
	fsnotifyBackend struct{}

	fsnotifySubscription struct {
		root    string
		fsw     *fsnotify.Watcher
		ignores ignoreSet
		logger  *log.Logger
		fn      func(livereload.Notification)

		done      chan struct{}
		wg        sync.WaitGroup
		closeOnce sync.Once
		closeErr  error
	}
)

func (fsnotifyBackend) watch(root string, ignores ignoreSet, logger *log.Logger, fn func(livereload.Notification)) (livereload.Subscription, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	s := &fsnotifySubscription{
		root:    root,
		fsw:     fsw,
		ignores: ignores,
		logger:  logger,
		fn:      fn,
		done:    make(chan struct{}),
	}
	if err := s.addTree(root); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			logger.Debug("close after init failure", "root", root, "error", closeErr)
		}
		return nil, err
	}

	s.wg.Add(1)
	go s.loop()
	return s, nil
}

// Close stops the subscription and waits for the event loop to exit. It is
// safe to call more than once.
func (s *fsnotifySubscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.fsw.Close()
		s.wg.Wait()
	})
	return s.closeErr
}

func (s *fsnotifySubscription) loop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return

		case evt, ok := <-s.fsw.Events:
			if !ok {
				return
			}
			s.dispatch(evt)

		case err, ok := <-s.fsw.Errors:
			if !ok {
				return
			}
			if isFatalWatchError(err) {
				s.logger.Error("watcher stopped, changes are no longer detected", "root", s.root, "error", err)
				if closeErr := s.fsw.Close(); closeErr != nil {
					s.logger.Debug("close after fatal error", "root", s.root, "error", closeErr)
				}
				return
			}
			s.logger.Warn("watch error", "root", s.root, "error", err)
		}
	}
}

func (s *fsnotifySubscription) dispatch(evt fsnotify.Event) {
	rel, err := filepath.Rel(s.root, evt.Name)
	if err != nil || rel == "." {
		return
	}

	if evt.Has(fsnotify.Create) {
		if info, statErr := os.Stat(evt.Name); statErr == nil && info.IsDir() {
			if s.ignores.matchDir(rel) {
				return
			}
			if addErr := s.addTree(evt.Name); addErr != nil {
				s.logger.Warn("watch new directory", "path", evt.Name, "error", addErr)
			}
		}
	}

	if s.ignores.match(rel) {
		return
	}
	s.fn(livereload.Notification{Kind: fsnotifyKind(evt.Op), Path: rel})
}

// addTree registers dir and every non-ignored directory below it.
// Inaccessible entries are skipped with a warning.
func (s *fsnotifySubscription) addTree(dir string) error {
	walkErr := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkDirErr error) error {
		if walkDirErr != nil {
			if path == dir {
				return walkDirErr
			}
			s.logger.Warn("skipping inaccessible path", "path", path, "error", walkDirErr)
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			return nil //nolint:nilerr // skip paths that cannot be made relative
		}
		if rel != "." && s.ignores.matchDir(rel) {
			return filepath.SkipDir
		}

		if addErr := s.fsw.Add(path); addErr != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, addErr)
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("watch: walk %s: %w", dir, walkErr)
	}
	return nil
}

// fsnotifyKind folds an fsnotify op into a notification kind. Anything that
// creates, removes or moves an entry is a rename; the rest is a change.
func fsnotifyKind(op fsnotify.Op) string {
	if op.Has(fsnotify.Create) || op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
		return KindRename
	}
	return KindChange
}
