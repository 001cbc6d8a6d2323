// SPDX-License-Identifier: MPL-2.0

package livereload

import (
	"os"
	"path/filepath"
	"strings"
)

// isTemporaryFile reports whether rel names an editor swap or backup file:
// a ".tmp" extension on a name containing '~', or an extension that itself
// contains '~' (e.g. "index.htm~l").
func isTemporaryFile(rel string) bool {
	if rel == "" {
		return false
	}
	ext := extname(rel)
	if strings.Contains(ext, "~") {
		return true
	}
	return strings.EqualFold(ext, ".tmp") && strings.Contains(filepath.Base(rel), "~")
}

// extname returns the extension of the base name of rel. Unlike filepath.Ext,
// a dot-file with no other dot (".htaccess~") has no extension.
func extname(rel string) string {
	base := filepath.Base(rel)
	i := strings.LastIndexByte(base, '.')
	if i <= 0 {
		return ""
	}
	return base[i:]
}

// isDirectory stats path on every call. A missing path is not a directory.
func isDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// suppressionKey returns the key used to coalesce notifications for rel.
func suppressionKey(rel string) string {
	if rel == "" {
		return unknownFileKey
	}
	return rel
}

// dropReason names the pipeline stage that discarded a notification. The
// zero value means the notification passed every filter.
type dropReason string

const (
	dropNone       dropReason = ""
	dropTemporary  dropReason = "temporary file"
	dropNoPath     dropReason = "missing path"
	dropDirectory  dropReason = "directory"
	dropOverridden dropReason = "overridden by platform merge"
	dropSuppressed dropReason = "suppressed"
)

// classify runs filters 1-4 of the pipeline against the current disk state.
func (w *ChangeWatcher) classify(root RootKind, rel string) dropReason {
	if isTemporaryFile(rel) {
		return dropTemporary
	}
	if rel == "" {
		return dropNoPath
	}
	if isDirectory(filepath.Join(w.rootDir(root), rel)) {
		return dropDirectory
	}
	if root == RootAssets && w.hasOverride(rel) {
		return dropOverridden
	}
	return dropNone
}

// hasOverride reports whether the override tree carries a file at rel.
func (w *ChangeWatcher) hasOverride(rel string) bool {
	return w.overrideExists && exists(filepath.Join(w.overrideDir, rel))
}

func (w *ChangeWatcher) rootDir(root RootKind) string {
	if root == RootOverrides {
		return w.overrideDir
	}
	return w.assetsDir
}
