// SPDX-License-Identifier: MPL-2.0

package config

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"simwatch/internal/issue"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "simwatch"
	// ProjectConfigName is the config file name (without extension) looked
	// up in the project root.
	ProjectConfigName = "simwatch"
	// UserConfigName is the config file name (without extension) looked up
	// in ConfigDir.
	UserConfigName = "config"
	// EnvPrefix prefixes environment overrides, e.g. SIMWATCH_SERVER_PORT.
	EnvPrefix = "SIMWATCH"

	extCUE  = ".cue"
	extTOML = ".toml"
)

// ErrUnsupportedFormat is returned for config files that are neither CUE nor
// TOML.
var ErrUnsupportedFormat = errors.New("unsupported config file format")

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the simwatch configuration directory using platform
// conventions: %APPDATA% on Windows, ~/Library/Application Support on macOS
// and $XDG_CONFIG_HOME (default ~/.config) elsewhere.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// Candidates returns the config file paths searched, in order, when no file
// is given explicitly.
func Candidates(opts LoadOptions) ([]string, error) {
	var paths []string
	if opts.ProjectRoot != "" {
		paths = append(paths,
			filepath.Join(opts.ProjectRoot, ProjectConfigName+extCUE),
			filepath.Join(opts.ProjectRoot, ProjectConfigName+extTOML),
		)
	}

	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return nil, err
	}
	paths = append(paths,
		filepath.Join(cfgDir, UserConfigName+extCUE),
		filepath.Join(cfgDir, UserConfigName+extTOML),
	)
	return paths, nil
}

// Resolve returns the config file Load would read, or "" when defaults apply.
func Resolve(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", configNotFound(opts.ConfigFilePath)
		}
		return opts.ConfigFilePath, nil
	}

	candidates, err := Candidates(opts)
	if err != nil {
		return "", err
	}
	for _, path := range candidates {
		if fileExists(path) {
			return path, nil
		}
	}
	return "", nil
}

// loadWithOptions performs option-driven config loading without caching.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := Resolve(opts)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := loadFileIntoViper(v, path); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE or TOML syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'simwatch config dump' to see a valid configuration").
				WithIssue(issue.ConfigLoadFailedID).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Source = path

	if valid, errs := cfg.IsValid(); !valid {
		return nil, issue.NewErrorContext().
			WithOperation("validate configuration").
			WithSuggestion("Check SIMWATCH_* environment variables for typos").
			WithIssue(issue.ConfigLoadFailedID).
			Wrap(errors.Join(errs...)).
			BuildError()
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("platform", defaults.Platform)
	v.SetDefault("watch.backend", string(defaults.Watch.Backend))
	v.SetDefault("watch.ignore", defaults.Watch.Ignore)
	v.SetDefault("server.host", defaults.Server.Host)
	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("server.path", defaults.Server.Path)
	v.SetDefault("server.allowed_origins", defaults.Server.AllowedOrigins)
	v.SetDefault("log.level", string(defaults.Log.Level))
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}
	return ConfigDir()
}

func configNotFound(path string) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestion("Verify the file path is correct").
		WithSuggestion("Use 'simwatch config path' to see which files are searched").
		Wrap(fmt.Errorf("config file not found: %s", path)).
		BuildError()
}

// loadFileIntoViper reads path, validates it against the #Config schema and
// merges it over the defaults.
func loadFileIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := checkFileSize(data, path); err != nil {
		return err
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	var userValue cue.Value
	switch strings.ToLower(filepath.Ext(path)) {
	case extCUE:
		userValue = ctx.CompileBytes(data, cue.Filename(path))
		if userValue.Err() != nil {
			return formatCUEError(userValue.Err(), path)
		}
	case extTOML:
		var raw map[string]any
		if err := toml.NewDecoder(bytes.NewReader(data)).Decode(&raw); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
		}
		userValue = ctx.Encode(raw)
		if userValue.Err() != nil {
			return formatCUEError(userValue.Err(), path)
		}
	default:
		return fmt.Errorf("%w: %s (want %s or %s)", ErrUnsupportedFormat, path, extCUE, extTOML)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
