// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"simwatch/internal/livereload"
	"simwatch/internal/watch"

	"github.com/spf13/cobra"
)

type watchFlagValues struct {
	platform string
}

func newWatchCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	flags := &watchFlagValues{}

	cmd := &cobra.Command{
		Use:   "watch [project-root]",
		Short: "Print file changes in www and merges/<platform>",
		Long: `Watch the www directory of a project and the merges/<platform> override
tree, printing one line per changed file until interrupted.

Each line has the event type, the tree the file belongs to (www or
merges) and the path relative to that tree.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.newSession(cmd.Context(), rootFlags, args, flags.platform, cmd.Flags().Changed("platform"))
			if err != nil {
				return err
			}
			return runWatch(cmd.Context(), app, rootFlags, s)
		},
	}
	cmd.Flags().StringVarP(&flags.platform, "platform", "p", "", "platform whose merges/<platform> tree overrides www (default from config)")

	return cmd
}

// runWatch prints every event until ctx is cancelled.
func runWatch(ctx context.Context, app *App, rootFlags *rootFlagValues, s *session) error {
	w, err := startWatcher(s)
	if err != nil {
		app.renderError(err, rootFlags.verbose)
		return &ExitError{Code: 1, Err: err}
	}
	defer w.Stop()

	events, cancel := w.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("watch interrupted")
			return nil
		case ev := <-events:
			style, ok := rootStyles[ev.Root.String()]
			if !ok {
				style = SubtitleStyle
			}
			fmt.Fprintf(app.stdout, "%s %s %s\n",
				CmdStyle.Render(ev.Type()), style.Render(ev.Root.String()), filepath.ToSlash(ev.Path))
		}
	}
}

// startWatcher builds the notifier and ChangeWatcher for s and starts them.
func startWatcher(s *session) (*livereload.ChangeWatcher, error) {
	notifier, err := watch.New(watch.Options{
		Backend: s.cfg.Watch.Backend.String(),
		Ignore:  s.cfg.Watch.Ignore,
		Logger:  s.logger.WithPrefix("watch"),
	})
	if err != nil {
		return nil, watchStartError(err, s.projectRoot)
	}

	w := livereload.New(s.projectRoot, s.platform,
		livereload.WithNotifier(notifier),
		livereload.WithLogger(s.logger.WithPrefix("livereload")),
	)
	if err := w.Start(); err != nil {
		return nil, watchStartError(err, w.AssetsDir())
	}

	merges := "none"
	if w.OverrideTreeExists() {
		merges = w.OverrideDir()
	}
	s.logger.Info("watching", "www", w.AssetsDir(), "merges", merges, "backend", notifier.Backend())
	return w, nil
}
