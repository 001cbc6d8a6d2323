// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"simwatch/internal/config"

	"github.com/charmbracelet/log"
)

// exitConfigError is returned when the configuration cannot be loaded.
const exitConfigError = 2

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives an App and writes through its streams.
	App struct {
		Config config.Provider
		stdout io.Writer
		stderr io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Stdout io.Writer
		Stderr io.Writer
	}

	// session is the resolved state every long-running command starts from.
	session struct {
		projectRoot string
		platform    string
		cfg         *config.Config
		logger      *log.Logger
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	return &App{
		Config: deps.Config,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}
}

// loadConfig loads the configuration for projectRoot honoring --config. A
// failure prints the matching troubleshooting guide; an interrupt is returned
// as is.
func (a *App) loadConfig(ctx context.Context, flags *rootFlagValues, projectRoot string) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{
		ConfigFilePath: flags.configPath,
		ProjectRoot:    projectRoot,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		a.renderError(err, flags.verbose)
		return nil, &ExitError{Code: exitConfigError, Err: err}
	}
	return cfg, nil
}

// newSession resolves the project root argument, loads the configuration
// and builds the logger. platform overrides the configured platform when
// platformSet is true.
func (a *App) newSession(ctx context.Context, flags *rootFlagValues, args []string, platform string, platformSet bool) (*session, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	projectRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root %q: %w", root, err)
	}

	cfg, err := a.loadConfig(ctx, flags, projectRoot)
	if err != nil {
		return nil, err
	}
	if platformSet {
		cfg.Platform = platform
	}

	return &session{
		projectRoot: projectRoot,
		platform:    cfg.Platform,
		cfg:         cfg,
		logger:      newLogger(a.stderr, cfg.Log.Level, flags.verbose),
	}, nil
}

// newLogger creates the root logger. --verbose wins over the configured
// level.
func newLogger(w io.Writer, level config.LogLevel, verbose bool) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
	})

	lvl, err := log.ParseLevel(strings.ToLower(string(level)))
	if err != nil {
		lvl = log.InfoLevel
	}
	if verbose {
		lvl = log.DebugLevel
	}
	logger.SetLevel(lvl)
	return logger
}
