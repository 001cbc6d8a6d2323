// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import (
	"errors"
	"syscall"
)

// isFatalWatchError reports whether err leaves an fsnotify watcher unable to
// deliver further events. With inotify that means the watch limit
// (fs.inotify.max_user_watches) or a file descriptor limit was hit.
func isFatalWatchError(err error) bool {
	return errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE)
}
