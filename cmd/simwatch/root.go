// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the simwatch CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlagValues holds the persistent flags shared by every subcommand.
type rootFlagValues struct {
	verbose    bool
	configPath string
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlagValues{}

	rootCmd := &cobra.Command{
		Use:   "simwatch",
		Short: "Live-reload watcher for simulated app projects",
		Long: TitleStyle.Render("simwatch") + SubtitleStyle.Render(" - Live-reload watcher for simulated app projects") + `

simwatch watches the www directory of a project, together with the
merges/<platform> override tree, and reports every file that changed.
Editor temporary files, directories and assets shadowed by a platform
override are ignored, and bursts of notifications for the same file are
collapsed into a single event.

` + SubtitleStyle.Render("Examples:") + `
  simwatch watch                       Print changes in the current project
  simwatch watch --platform android    Include merges/android
  simwatch serve --port 35729          Push changes to browsers over WebSocket
  simwatch config show                 Show the effective configuration`,
		SilenceUsage: true,
	}
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is ./simwatch.cue or the user config directory)")

	rootCmd.AddCommand(newWatchCommand(app, flags))
	rootCmd.AddCommand(newServeCommand(app, flags))
	rootCmd.AddCommand(newConfigCommand(app, flags))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Run executes the CLI with os.Args and returns the process exit code.
func Run() int {
	app := NewApp(Dependencies{})

	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}
		return 1
	}
	return 0
}

// Execute runs the CLI and exits the process. It is called by main.main().
func Execute() {
	os.Exit(Run())
}
