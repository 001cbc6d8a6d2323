// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"simwatch/internal/config"

	"github.com/spf13/cobra"
)

const (
	formatCUE  = "cue"
	formatTOML = "toml"
)

// newConfigCommand creates the `simwatch config` command tree. Every
// subcommand resolves project files relative to the current directory.
func newConfigCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect simwatch configuration",
		Long: `Inspect simwatch configuration.

Configuration is read from the first file found among:
  - the file given with --config
  - ./simwatch.cue or ./simwatch.toml
  - config.cue or config.toml in the user config directory
    (Linux: ~/.config/simwatch, macOS: ~/Library/Application Support/simwatch,
    Windows: %APPDATA%\simwatch)

SIMWATCH_* environment variables override file values, for example
SIMWATCH_SERVER_PORT=35730.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.newSession(cmd.Context(), rootFlags, nil, "", false)
			if err != nil {
				return err
			}
			showConfig(app, s.cfg)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show which configuration file is used",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath(app, rootFlags)
		},
	})

	var format string
	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration as CUE or TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.newSession(cmd.Context(), rootFlags, nil, "", false)
			if err != nil {
				return err
			}
			switch strings.ToLower(format) {
			case formatCUE:
				fmt.Fprint(app.stdout, config.GenerateCUE(s.cfg))
			case formatTOML:
				out, err := config.GenerateTOML(s.cfg)
				if err != nil {
					return err
				}
				fmt.Fprint(app.stdout, out)
			default:
				return fmt.Errorf("unsupported format %q (want %s or %s)", format, formatCUE, formatTOML)
			}
			return nil
		},
	}
	dumpCmd.Flags().StringVarP(&format, "format", "f", formatCUE, "output format: cue or toml")
	cfgCmd.AddCommand(dumpCmd)

	return cfgCmd
}

func showConfig(app *App, cfg *config.Config) {
	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	w := app.stdout

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	if cfg.Source != "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), cfg.Source)
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	platform := SubtitleStyle.Render("(none, overrides disabled)")
	if cfg.Platform != "" {
		platform = valueStyle.Render(cfg.Platform)
	}
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("platform"), platform)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("watch"))
	fmt.Fprintf(w, "  backend: %s\n", valueStyle.Render(cfg.Watch.Backend.String()))
	fmt.Fprintf(w, "  ignore: %s\n", listValue(cfg.Watch.Ignore))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("server"))
	fmt.Fprintf(w, "  host: %s\n", valueStyle.Render(cfg.Server.Host))
	fmt.Fprintf(w, "  port: %s\n", valueStyle.Render(strconv.Itoa(cfg.Server.Port)))
	fmt.Fprintf(w, "  path: %s\n", valueStyle.Render(cfg.Server.Path))
	fmt.Fprintf(w, "  allowed_origins: %s\n", listValue(cfg.Server.AllowedOrigins))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("log"))
	fmt.Fprintf(w, "  level: %s\n", valueStyle.Render(cfg.Log.Level.String()))
}

func listValue(items []string) string {
	if len(items) == 0 {
		return SubtitleStyle.Render("(none)")
	}
	return SuccessStyle.Render(strings.Join(items, ", "))
}

func showConfigPath(app *App, rootFlags *rootFlagValues) error {
	projectRoot, err := filepath.Abs(".")
	if err != nil {
		return err
	}
	opts := config.LoadOptions{ConfigFilePath: rootFlags.configPath, ProjectRoot: projectRoot}

	path, err := config.Resolve(opts)
	if err != nil {
		app.renderError(err, rootFlags.verbose)
		return &ExitError{Code: exitConfigError, Err: err}
	}
	if path != "" {
		fmt.Fprintln(app.stdout, path)
		return nil
	}

	candidates, err := config.Candidates(opts)
	if err != nil {
		return err
	}
	fmt.Fprintln(app.stdout, SubtitleStyle.Render("(using defaults) searched:"))
	for _, c := range candidates {
		fmt.Fprintf(app.stdout, "  %s\n", c)
	}
	return nil
}
