// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride replaces ConfigDir in tests. os.UserHomeDir does not
// honor HOME on every platform.
var configDirOverride string

// SetConfigDirOverride makes ConfigDir return dir. An empty dir restores the
// platform lookup.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}
