// SPDX-License-Identifier: MPL-2.0

// Package config loads simwatch settings with Viper.
//
// Settings come from built-in defaults, then the first config file found,
// then SIMWATCH_* environment variables. Config files are written in CUE and
// validated against the embedded config_schema.cue, or in TOML, which is
// checked against the same schema. The file is searched for as simwatch.cue
// or simwatch.toml in the project root, then as config.cue or config.toml in
// the user config directory (see ConfigDir).
package config
