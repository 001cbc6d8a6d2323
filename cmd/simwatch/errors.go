// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"simwatch/internal/issue"
	"simwatch/internal/livereload"
	"simwatch/internal/reloadserver"
	"simwatch/internal/watch"

	"github.com/charmbracelet/x/term"
)

// watchStartError wraps a watcher or notifier failure with remediation for
// the cause it recognizes.
func watchStartError(err error, resource string) error {
	ec := issue.NewErrorContext().
		WithOperation("start watcher").
		WithResource(resource).
		Wrap(err)

	switch {
	case errors.Is(err, watch.ErrUnknownBackend):
		ec.WithIssue(issue.UnknownBackendID).
			WithSuggestion("Set watch.backend to auto, fsnotify or notify")
	case errors.Is(err, watch.ErrInvalidPattern):
		ec.WithSuggestion("Check the watch.ignore patterns in your configuration")
	case errors.Is(err, fs.ErrNotExist):
		ec.WithIssue(issue.WatchRootMissingID).
			WithSuggestion("Run simwatch from the project root or pass it as an argument")
	case watch.IsResourceLimit(err):
		ec.WithIssue(issue.WatchLimitReachedID).
			WithSuggestion("Raise the watch limit or ignore large directories")
	case errors.Is(err, livereload.ErrWatchFailed):
		ec.WithSuggestion("Check that the project directories are readable")
	}
	return ec.BuildError()
}

// serverStartError wraps a live-reload server failure.
func serverStartError(err error, addr string) error {
	ec := issue.NewErrorContext().
		WithOperation("start live reload server").
		WithResource(addr).
		Wrap(err)
	if errors.Is(err, reloadserver.ErrListen) {
		ec.WithIssue(issue.ServerStartFailedID).
			WithSuggestion("Choose another port with --port")
	}
	return ec.BuildError()
}

// renderError prints what the error line alone does not show: the
// suggestions and, in verbose mode, the cause chain of an ActionableError,
// followed by its troubleshooting guide. The error line itself is printed by
// fang when the command returns.
func (a *App) renderError(err error, verbose bool) {
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		return
	}
	if details := strings.TrimPrefix(ae.Format(verbose), ae.Error()); strings.TrimSpace(details) != "" {
		fmt.Fprintln(a.stderr, WarningStyle.Render("Hints:")+details)
	}

	guide := issue.Get(ae.IssueID)
	if guide == nil {
		return
	}
	rendered, renderErr := guide.Render(markdownStyle(a.stderr))
	if renderErr != nil {
		fmt.Fprintln(a.stderr, guide.Markdown())
		return
	}
	fmt.Fprint(a.stderr, rendered)
}

// markdownStyle picks the glamour style for w: colors on a terminal, plain
// text otherwise.
func markdownStyle(w io.Writer) string {
	if f, ok := w.(*os.File); ok && term.IsTerminal(f.Fd()) {
		return "dark"
	}
	return "notty"
}
