// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and a catalog of Markdown
// troubleshooting guides for the failures users commonly hit: exhausted watch
// limits, a missing www directory, an occupied port or a broken config file.
package issue
