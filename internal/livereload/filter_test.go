// SPDX-License-Identifier: MPL-2.0

package livereload

import (
	"path/filepath"
	"testing"
)

func TestIsTemporaryFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want bool
	}{
		{"", false},
		{"foo~.tmp", true},
		{"foo~.TMP", true},
		{"bar.tm~p", true},
		{"index.htm~l", true},
		{filepath.Join("css", "site~1.tmp"), true},
		{"foo.tmp", false},
		{"foo~", false},
		{"index.html", false},
		{filepath.Join("notes~", "a.txt"), false},
		{"Makefile", false},
		{".htaccess~", false},
		{filepath.Join("dir", ".env~"), false},
		{".env~.tmp", true},
		{".cfg.ba~k", true},
		{"..foo~", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			if got := isTemporaryFile(tt.path); got != tt.want {
				t.Errorf("isTemporaryFile(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestExtname(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"index.html":                     ".html",
		filepath.Join("css", "site.css"): ".css",
		".htaccess":                      "",
		".htaccess~":                     "",
		".index.md":                      ".md",
		"Makefile":                       "",
		"archive.":                       ".",
		"..":                             "",
	}
	for path, want := range tests {
		if got := extname(path); got != want {
			t.Errorf("extname(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestSuppressionKey(t *testing.T) {
	t.Parallel()

	if got := suppressionKey("a/b.css"); got != "a/b.css" {
		t.Errorf("suppressionKey kept %q, want the path itself", got)
	}
	if got := suppressionKey(""); got != unknownFileKey {
		t.Errorf("suppressionKey(\"\") = %q, want %q", got, unknownFileKey)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	root := newProject(t,
		"www/index.html",
		"www/css/",
		"www/images/logo.png",
		"merges/ios/images/logo.png",
		"merges/ios/js/",
	)
	w := New(root, "ios")

	tests := []struct {
		name string
		root RootKind
		rel  string
		want dropReason
	}{
		{"plain file", RootAssets, "index.html", dropNone},
		{"missing file", RootAssets, "gone.html", dropNone},
		{"temporary", RootAssets, "index.html~.tmp", dropTemporary},
		{"no path", RootAssets, "", dropNoPath},
		{"directory", RootAssets, "css", dropDirectory},
		{"override directory", RootOverrides, "js", dropDirectory},
		{"shadowed", RootAssets, filepath.Join("images", "logo.png"), dropOverridden},
		{"override file", RootOverrides, filepath.Join("images", "logo.png"), dropNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := w.classify(tt.root, tt.rel); got != tt.want {
				t.Errorf("classify(%s, %q) = %q, want %q", tt.root, tt.rel, got, tt.want)
			}
		})
	}
}
