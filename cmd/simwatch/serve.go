// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"time"

	"simwatch/internal/reloadserver"

	"github.com/spf13/cobra"
)

// shutdownTimeout bounds the graceful server shutdown after interrupt.
const shutdownTimeout = 5 * time.Second

type serveFlagValues struct {
	platform string
	host     string
	port     int
}

func newServeCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	flags := &serveFlagValues{}

	cmd := &cobra.Command{
		Use:   "serve [project-root]",
		Short: "Push file changes to browsers over WebSocket",
		Long: `Watch a project like 'simwatch watch' and send every change to the
WebSocket clients connected to the live-reload server.

Clients receive one JSON message per changed file:
  {"type":"file-changed","path":"css/app.css","root":"www"}

The server also answers GET /healthz with its status and client count.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.newSession(cmd.Context(), rootFlags, args, flags.platform, cmd.Flags().Changed("platform"))
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				s.cfg.Server.Host = flags.host
			}
			if cmd.Flags().Changed("port") {
				s.cfg.Server.Port = flags.port
			}
			return runServe(cmd.Context(), app, rootFlags, s)
		},
	}
	cmd.Flags().StringVarP(&flags.platform, "platform", "p", "", "platform whose merges/<platform> tree overrides www (default from config)")
	cmd.Flags().StringVar(&flags.host, "host", reloadserver.DefaultHost, "address to listen on")
	cmd.Flags().IntVar(&flags.port, "port", reloadserver.DefaultPort, "port to listen on, 0 picks a free port")

	return cmd
}

// runServe runs the live-reload server fed by a ChangeWatcher until ctx is
// cancelled.
func runServe(ctx context.Context, app *App, rootFlags *rootFlagValues, s *session) error {
	srv := reloadserver.New(reloadserver.Config{
		Host:           s.cfg.Server.Host,
		Port:           s.cfg.Server.Port,
		Path:           s.cfg.Server.Path,
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		Logger:         s.logger.WithPrefix("reload"),
	})
	if err := srv.Start(ctx); err != nil {
		err = serverStartError(err, s.cfg.Server.Addr())
		app.renderError(err, rootFlags.verbose)
		return &ExitError{Code: 1, Err: err}
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Stop(stopCtx); err != nil {
			s.logger.Warn("live reload server shutdown", "error", err)
		}
	}()

	w, err := startWatcher(s)
	if err != nil {
		app.renderError(err, rootFlags.verbose)
		return &ExitError{Code: 1, Err: err}
	}
	defer w.Stop()

	events, cancel := w.Subscribe()
	defer cancel()

	srv.Forward(ctx, events)
	s.logger.Debug("serve interrupted")
	return nil
}
