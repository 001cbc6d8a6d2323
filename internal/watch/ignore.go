// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// defaultIgnores are always applied. Version-control metadata churns on every
// commit and is never served to the app.
var defaultIgnores = []string{
	"**/.git/**",
	"**/.svn/**",
	"**/.hg/**",
}

// ignoreSet matches root-relative paths against doublestar patterns.
type ignoreSet []string

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	out := make([]string, len(defaultIgnores))
	copy(out, defaultIgnores)
	return out
}

func newIgnoreSet(user []string) (ignoreSet, error) {
	for _, pat := range user {
		if pat == "" || !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, pat)
		}
	}
	set := make(ignoreSet, 0, len(defaultIgnores)+len(user))
	set = append(set, defaultIgnores...)
	set = append(set, user...)
	return set, nil
}

// match reports whether rel, a path relative to the watched root, is ignored.
func (s ignoreSet) match(rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pat := range s {
		if matched, err := doublestar.Match(pat, normalized); err == nil && matched {
			return true
		}
	}
	return false
}

// matchDir is match for directories, which are also tried with a trailing
// slash so "dir/**" style patterns prune the directory itself.
func (s ignoreSet) matchDir(rel string) bool {
	return s.match(rel) || s.match(rel+"/")
}
