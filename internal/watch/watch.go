// SPDX-License-Identifier: MPL-2.0

// Package watch provides recursive directory watching for the live-reload
// pipeline.
//
// A Notifier subscribes to a whole directory tree and reports every change
// below it as a livereload.Notification carrying a root-relative path. Two
// backends are available: fsnotify, which registers each directory
// individually and follows directories created later, and notify, which uses
// the native recursive facilities of macOS and Windows.
package watch

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"simwatch/internal/livereload"

	"github.com/charmbracelet/log"
)

// Backend names accepted by Options.Backend.
const (
	BackendAuto     = "auto"
	BackendFsnotify = "fsnotify"
	BackendNotify   = "notify"
)

// Notification kinds. They mirror the two kinds reported by recursive
// watchers in the JavaScript ecosystem: content changes and entries that
// appeared, disappeared or moved.
const (
	KindChange = "change"
	KindRename = "rename"
)

var (
	// ErrUnknownBackend is returned by New for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown watch backend")

	// ErrInvalidPattern is returned by New when an ignore pattern is not a
	// valid doublestar glob.
	ErrInvalidPattern = errors.New("invalid ignore pattern")
)

type (
	// Options configures a Notifier.
	Options struct {
		// Backend selects the implementation. An empty value means BackendAuto.
		Backend string

		// Ignore lists doublestar patterns, relative to the watched root, for
		// paths that never produce notifications. They are added to the
		// built-in VCS ignores.
		Ignore []string

		// Logger receives backend errors. nil uses a stderr logger.
		Logger *log.Logger
	}

	// Notifier implements livereload.Notifier on top of one of the backends.
	Notifier struct {
		backend backend
		name    string
		ignores ignoreSet
		logger  *log.Logger
	}

	backend interface {
		watch(root string, ignores ignoreSet, logger *log.Logger, fn func(livereload.Notification)) (livereload.Subscription, error)
	}
)

// New validates opts and returns a Notifier for the selected backend.
func New(opts Options) (*Notifier, error) {
	name := opts.Backend
	if name == "" || name == BackendAuto {
		name = defaultBackend(runtime.GOOS)
	}

	var b backend
	switch name {
	case BackendFsnotify:
		b = fsnotifyBackend{}
	case BackendNotify:
		b = notifyBackend{}
	default:
		return nil, fmt.Errorf("%w: %q (want %s, %s or %s)", ErrUnknownBackend, opts.Backend, BackendAuto, BackendFsnotify, BackendNotify)
	}

	ignores, err := newIgnoreSet(opts.Ignore)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "watch"})
	}

	return &Notifier{
		backend: b,
		name:    name,
		ignores: ignores,
		logger:  logger,
	}, nil
}

// Backend returns the name of the backend in use, with "auto" resolved.
func (n *Notifier) Backend() string {
	return n.name
}

// Watch subscribes to every change below root. root must be an existing
// directory. fn is called from a backend goroutine, one notification at a
// time.
func (n *Notifier) Watch(root string, fn func(livereload.Notification)) (livereload.Subscription, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch: %s is not a directory", root)
	}
	return n.backend.watch(root, n.ignores, n.logger, fn)
}

// defaultBackend picks the backend used for BackendAuto. Only macOS and
// Windows offer a native recursive watch; elsewhere notify emulates one and
// fsnotify is preferred.
func defaultBackend(goos string) string {
	switch goos {
	case "darwin", "windows":
		return BackendNotify
	default:
		return BackendFsnotify
	}
}

// IsResourceLimit reports whether err was caused by the operating system's
// watch or file descriptor limits.
func IsResourceLimit(err error) bool {
	return isFatalWatchError(err)
}
