// SPDX-License-Identifier: MPL-2.0

package livereload

import (
	"errors"
	"time"
)

const (
	// SuppressionWindow is how long further notifications for a path are
	// ignored after the first one. The event is emitted when it closes.
	SuppressionWindow = 150 * time.Millisecond

	// AssetsDirName is the primary asset tree under the project root.
	AssetsDirName = "www"
	// OverridesDirName holds the per-platform override trees.
	OverridesDirName = "merges"

	// EventTypeFileChanged is the type of every event published by ChangeWatcher.
	EventTypeFileChanged = "file-changed"

	// unknownFileKey groups notifications that carry no path.
	unknownFileKey = "__sim-unknown__"

	subscriberBufferSize = 32
	inboxSize            = 64
)

// Root kinds attached to emitted events.
const (
	// RootAssets is the primary www tree.
	RootAssets RootKind = "www"
	// RootOverrides is the merges/<platform> tree.
	RootOverrides RootKind = "merges"
)

var (
	// ErrAlreadyStarted is returned by Start when the watcher is running.
	ErrAlreadyStarted = errors.New("change watcher already started")
	// ErrWatchFailed is wrapped by Start when a root cannot be subscribed.
	ErrWatchFailed = errors.New("watch failed")
)

type (
	// RootKind is the tag attached to every emitted event.
	RootKind string

	// Event is a coalesced file-changed notification.
	Event struct {
		// Path is relative to the root named by Root.
		Path string
		Root RootKind
	}

	// Notification is a raw change reported by a Notifier. Kind is
	// informational only; every kind is treated the same way.
	Notification struct {
		Kind string
		// Path is relative to the watched root, or empty when the platform
		// could not tell which file changed.
		Path string
	}

	// Notifier is the recursive directory watch capability. Watch calls fn
	// for every change anywhere under root until the returned Subscription is
	// closed.
	Notifier interface {
		Watch(root string, fn func(Notification)) (Subscription, error)
	}

	// Subscription cancels a Notifier watch. Close must be safe to call more
	// than once.
	Subscription interface {
		Close() error
	}
)

// Type returns EventTypeFileChanged.
func (Event) Type() string {
	return EventTypeFileChanged
}

// String returns the root kind's directory name.
func (k RootKind) String() string {
	return string(k)
}
