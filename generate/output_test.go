package generate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ZacxDev/sitegen/routes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldAppendTrailingSlash(t *testing.T) {
	cases := []struct {
		ts     TrailingSlash
		format BuildFormat
		want   bool
	}{
		{TrailingSlashAlways, FormatDirectory, true},
		{TrailingSlashAlways, FormatFile, true},
		{TrailingSlashNever, FormatDirectory, false},
		{TrailingSlashNever, FormatFile, false},
		{TrailingSlashIgnore, FormatDirectory, true},
		{TrailingSlashIgnore, FormatFile, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ShouldAppendTrailingSlash(tc.ts, tc.format), "%s/%s", tc.ts, tc.format)
	}
}

func TestWriter_Locate(t *testing.T) {
	out := filepath.FromSlash("/srv/out")
	cases := []struct {
		name     string
		pathname string
		typ      routes.RouteType
		ts       TrailingSlash
		format   BuildFormat
		wantURL  string
		wantFile string
	}{
		{"always directory", "/blog", routes.RouteTypePage, TrailingSlashAlways, FormatDirectory, "/blog/", "blog/index.html"},
		{"never file", "/blog", routes.RouteTypePage, TrailingSlashNever, FormatFile, "/blog.html", "blog.html"},
		{"never directory", "/blog", routes.RouteTypePage, TrailingSlashNever, FormatDirectory, "/blog", "blog/index.html"},
		{"ignore directory", "/blog/", routes.RouteTypePage, TrailingSlashIgnore, FormatDirectory, "/blog/", "blog/index.html"},
		{"ignore file", "/docs/intro", routes.RouteTypePage, TrailingSlashIgnore, FormatFile, "/docs/intro.html", "docs/intro.html"},
		{"root", "/", routes.RouteTypePage, TrailingSlashAlways, FormatDirectory, "/", "index.html"},
		{"empty root", "", routes.RouteTypePage, TrailingSlashNever, FormatFile, "/", "index.html"},
		{"endpoint", "/feeds/rss.xml", routes.RouteTypeEndpoint, TrailingSlashAlways, FormatFile, "/feeds/rss.xml", "feeds/rss.xml"},
		{"status page", "/404", routes.RouteTypePage, TrailingSlashAlways, FormatDirectory, "/404", "404.html"},
		{"status page file format", "/500", routes.RouteTypePage, TrailingSlashAlways, FormatFile, "/500.html", "500.html"},
		{"nested 404 is a page", "/posts/404", routes.RouteTypePage, TrailingSlashAlways, FormatDirectory, "/posts/404/", "posts/404/index.html"},
		{"redirect", "/old", routes.RouteTypeRedirect, TrailingSlashAlways, FormatDirectory, "/old/", "old/index.html"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := NewWriter(out, "/", tc.ts, tc.format)
			loc := w.Locate(tc.pathname, tc.typ)
			assert.Equal(t, tc.wantURL, loc.URL)
			assert.Equal(t, filepath.Join(out, filepath.FromSlash(tc.wantFile)), loc.File)
		})
	}
}

func TestWriter_LocateWithBase(t *testing.T) {
	w := NewWriter("out", "/docs", TrailingSlashAlways, FormatDirectory)

	assert.Equal(t, Location{URL: "/docs/guide/", File: filepath.Join("out", "guide", "index.html")}, w.Locate("/guide", routes.RouteTypePage))
	assert.Equal(t, "/docs", w.Locate("/", routes.RouteTypePage).URL)
}

func TestWriter_PageName(t *testing.T) {
	always := NewWriter("out", "/", TrailingSlashAlways, FormatDirectory)
	never := NewWriter("out", "/", TrailingSlashNever, FormatDirectory)
	ignoreFile := NewWriter("out", "/", TrailingSlashIgnore, FormatFile)

	assert.Equal(t, "", always.PageName("/"))
	assert.Equal(t, "blog/", always.PageName("/blog"))
	assert.Equal(t, "blog", never.PageName("/blog"))
	assert.Equal(t, "blog", ignoreFile.PageName("/blog"))
	assert.Equal(t, "404", always.PageName("/404"))
	assert.Equal(t, "posts/404/", always.PageName("/posts/404"))
}

func TestWriter_WriteCreatesDirectories(t *testing.T) {
	out := t.TempDir()
	w := NewWriter(out, "/", TrailingSlashAlways, FormatDirectory)

	loc := w.Locate("/a/b/c", routes.RouteTypePage)
	require.NoError(t, w.Write(loc, []byte("deep"), EncodingUTF8))
	require.NoError(t, w.Write(loc, []byte("again"), EncodingUTF8))

	b, err := os.ReadFile(filepath.Join(out, "a", "b", "c", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "again", string(b))
	assert.Equal(t, []string{"a/b/c/index.html"}, w.Written())
}

func TestWriter_PruneMissingDirectory(t *testing.T) {
	w := NewWriter(filepath.Join(t.TempDir(), "missing"), "/", TrailingSlashAlways, FormatDirectory)

	removed, err := w.Prune([]string{"**/*.html"})
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestWriter_WriteRejectsFilesOutsideOutDir(t *testing.T) {
	parent := t.TempDir()
	out := filepath.Join(parent, "public")
	w := NewWriter(out, "/", TrailingSlashAlways, FormatDirectory)

	loc := w.Locate("/docs/../../escaped", routes.RouteTypePage)
	err := w.Write(loc, []byte("x"), EncodingUTF8)

	require.ErrorIs(t, err, ErrOutsideOutDir)
	assert.NoDirExists(t, filepath.Join(parent, "escaped"))
	assert.Empty(t, w.Written())

	loc = w.Locate("/docs/../inside", routes.RouteTypePage)
	require.NoError(t, w.Write(loc, []byte("x"), EncodingUTF8))
	assert.Equal(t, []string{"inside/index.html"}, w.Written())
}

func TestWriter_WriteByEncoding(t *testing.T) {
	out := t.TempDir()
	w := NewWriter(out, "/", TrailingSlashAlways, FormatDirectory)

	text := w.Locate("/feed.txt", routes.RouteTypeEndpoint)
	require.NoError(t, w.Write(text, []byte("ok\xffok"), EncodingUTF8))
	assert.Equal(t, "ok\uFFFDok", readFile(t, text.File))

	bin := w.Locate("/logo.bin", routes.RouteTypeEndpoint)
	require.NoError(t, w.Write(bin, []byte("ok\xffok"), EncodingBinary))
	assert.Equal(t, "ok\xffok", readFile(t, bin.File))
}

func TestWriter_PruneSkipsPreserved(t *testing.T) {
	out := t.TempDir()
	for _, name := range []string{"css/site_1.css", "css/site_0.css", "static/robots.txt"} {
		p := filepath.Join(out, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), os.ModePerm))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
	}

	w := NewWriter(out, "/", TrailingSlashAlways, FormatDirectory)
	w.Preserve("css/site_1.css", filepath.Join("static", "robots.txt"))

	removed, err := w.Prune([]string{"**/*.css", "**/*.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"css/site_0.css"}, removed)
	assert.FileExists(t, filepath.Join(out, "css", "site_1.css"))
	assert.FileExists(t, filepath.Join(out, "static", "robots.txt"))
}
