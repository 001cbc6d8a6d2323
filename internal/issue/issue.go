// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

// ID identifies a troubleshooting guide.
type ID int

const (
	WatchLimitReachedID ID = iota + 1
	WatchRootMissingID
	UnknownBackendID
	ConfigLoadFailedID
	ServerStartFailedID
)

type (
	// MarkdownMsg is the body of a guide.
	MarkdownMsg string

	// HTTPLink is a reference shown under "See also".
	HTTPLink string

	// Issue is a troubleshooting guide rendered for the terminal.
	Issue struct {
		id       ID
		mdMsg    MarkdownMsg
		extLinks []HTTPLink
	}
)

// ID returns the catalog key of the issue.
func (i *Issue) ID() ID {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) ExtLinks() []HTTPLink {
	return slices.Clone(i.extLinks)
}

// Markdown returns the guide with its links appended.
func (i *Issue) Markdown() string {
	var sb strings.Builder
	sb.WriteString(string(i.mdMsg))
	if len(i.extLinks) > 0 {
		sb.WriteString("\n\n## See also\n")
		for _, link := range i.extLinks {
			sb.WriteString("\n- <")
			sb.WriteString(string(link))
			sb.WriteString(">")
		}
	}
	return sb.String()
}

// Render renders the guide with the named glamour style ("dark", "light",
// "notty", ...) or a style JSON path.
func (i *Issue) Render(stylePath string) (string, error) {
	return render(i.Markdown(), stylePath)
}

var (
	render = glamour.Render

	watchLimitReachedIssue = &Issue{
		id: WatchLimitReachedID,
		mdMsg: `
# The file watcher ran out of resources

The operating system refused to watch more directories, so changes below
the project are no longer detected.

## Things you can try
- Raise the inotify watch limit (Linux):
~~~
$ sudo sysctl fs.inotify.max_user_watches=524288
~~~
- Raise the open file limit for your shell:
~~~
$ ulimit -n 4096
~~~
- Ignore large generated directories in your config:
~~~cue
watch: ignore: ["**/node_modules/**", "**/build/**"]
~~~`,
		extLinks: []HTTPLink{"https://man7.org/linux/man-pages/man7/inotify.7.html"},
	}

	watchRootMissingIssue = &Issue{
		id: WatchRootMissingID,
		mdMsg: `
# No www directory

simwatch serves and watches the ` + "`www`" + ` directory of a project, but the
project root does not contain one.

## Things you can try
- Run simwatch from the project root, or pass it explicitly:
~~~
$ simwatch watch path/to/project
~~~
- Create the directory:
~~~
$ mkdir www
~~~`,
	}

	unknownBackendIssue = &Issue{
		id: UnknownBackendID,
		mdMsg: `
# Unknown watch backend

The configured ` + "`watch.backend`" + ` is not supported.

## Supported backends
- ` + "`auto`" + `: native recursive watching on macOS and Windows, fsnotify elsewhere
- ` + "`fsnotify`" + `: one watch per directory, follows new directories
- ` + "`notify`" + `: a single recursive watch point`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedID,
		mdMsg: `
# Invalid configuration

The configuration file could not be loaded or does not match the schema.

## Things you can try
- Print the effective configuration and where it came from:
~~~
$ simwatch config show
$ simwatch config path
~~~
- Write a fresh file with the defaults:
~~~
$ simwatch config dump > simwatch.cue
~~~`,
		extLinks: []HTTPLink{"https://cuelang.org/docs/"},
	}

	serverStartFailedIssue = &Issue{
		id: ServerStartFailedID,
		mdMsg: `
# The live-reload server could not start

The address is probably in use by another server or a second simwatch.

## Things you can try
- Pick another port:
~~~
$ simwatch serve --port 35730
~~~
- Use port 0 to let the system choose a free one.`,
	}

	issues = map[ID]*Issue{
		watchLimitReachedIssue.ID(): watchLimitReachedIssue,
		watchRootMissingIssue.ID():  watchRootMissingIssue,
		unknownBackendIssue.ID():    unknownBackendIssue,
		configLoadFailedIssue.ID():  configLoadFailedIssue,
		serverStartFailedIssue.ID(): serverStartFailedIssue,
	}
)

// Values returns every issue ordered by ID.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return int(a.id) - int(b.id)
	})
}

// Get returns the issue for id, or nil.
func Get(id ID) *Issue {
	return issues[id]
}
