// SPDX-License-Identifier: MPL-2.0

// Package livereload watches a project's www tree and its platform override
// tree (merges/<platform>) and publishes one file-changed event per logical
// edit.
//
// Raw notifications from the injected Notifier pass through a fixed pipeline:
//
//  1. editor temporary files are dropped
//  2. notifications without a path are dropped with a warning
//  3. notifications for directories are dropped
//  4. www files shadowed by an override file are dropped
//  5. repeated notifications for the same path inside the 150ms suppression
//     window are dropped; the first one is emitted when the window closes
//
// All pipeline state is owned by a single loop goroutine per Start/Stop cycle,
// so notifications are processed one at a time in arrival order.
package livereload
