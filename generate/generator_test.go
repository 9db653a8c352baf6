package generate

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZacxDev/sitegen/routes"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerate_EndToEnd(t *testing.T) {
	index := parseRoute(t, "a.page", "/")
	post := parseRoute(t, "b.page", "/posts/[slug]")
	opts := testOptions(t, routes.Manifest{index, post}, map[string]Module{
		"a.page": &stubModule{body: "<h1>home</h1>"},
		"b.page": &stubModule{body: "<h1>post {slug}</h1>", paths: bindings("slug", "x", "y")},
	})

	res, err := newGenerator(t, opts).Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "<h1>home</h1>", readFile(t, filepath.Join(opts.OutDir, "index.html")))
	assert.Equal(t, "<h1>post x</h1>", readFile(t, filepath.Join(opts.OutDir, "posts", "x", "index.html")))
	assert.Equal(t, "<h1>post y</h1>", readFile(t, filepath.Join(opts.OutDir, "posts", "y", "index.html")))

	assert.Equal(t, []string{"", "posts/x/", "posts/y/"}, res.PageNames)
	assert.ElementsMatch(t, []string{"index.html", "posts/x/index.html", "posts/y/index.html"}, res.Files)
	assert.NotEmpty(t, res.BuildID)
}

func TestGenerate_CollisionHigherPriorityRouteWins(t *testing.T) {
	r1 := parseRoute(t, "r1.page", "/[a]")
	r2 := parseRoute(t, "r2.page", "/[b]")
	m1 := &stubModule{body: "r1", paths: bindings("a", "x")}
	m2 := &stubModule{body: "r2", paths: bindings("b", "x")}
	opts := testOptions(t, routes.Manifest{r1, r2}, map[string]Module{"r1.page": m1, "r2.page": m2})

	_, err := newGenerator(t, opts).Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "r1", readFile(t, filepath.Join(opts.OutDir, "x", "index.html")))
	assert.Equal(t, 1, m1.renders)
	assert.Equal(t, 0, m2.renders)
}

func TestGenerate_StaticRouteBeatsLaterCatchAll(t *testing.T) {
	static := parseRoute(t, "x.page", "/x")
	catchAll := parseRoute(t, "all.page", "/[...path]")
	all := &stubModule{body: "all {path}", paths: bindings("path", "x", "y/z")}
	opts := testOptions(t, routes.Manifest{static, catchAll}, map[string]Module{
		"x.page":   &stubModule{body: "static"},
		"all.page": all,
	})

	_, err := newGenerator(t, opts).Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "static", readFile(t, filepath.Join(opts.OutDir, "x", "index.html")))
	assert.Equal(t, "all y/z", readFile(t, filepath.Join(opts.OutDir, "y", "z", "index.html")))
	assert.Equal(t, []string{"/y/z"}, all.rendered)
}

func TestGenerate_DraftIsSkipped(t *testing.T) {
	draft := parseRoute(t, "draft.page", "/draft")
	mod := &stubModule{body: "wip", frontmatter: map[string]any{"draft": true}}
	opts := testOptions(t, routes.Manifest{draft}, map[string]Module{"draft.page": mod})

	res, err := newGenerator(t, opts).Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, mod.renders)
	assert.Empty(t, res.PageNames)
	assertEmptyDir(t, opts.OutDir)

	opts.Drafts = true
	_, err = newGenerator(t, opts).Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "wip", readFile(t, filepath.Join(opts.OutDir, "draft", "index.html")))
}

func TestGenerate_OnDemandRouteIsSkipped(t *testing.T) {
	api := parseRoute(t, "api.page", "/api/[id]")
	api.Prerender = false
	mod := &stubModule{body: "api"}
	opts := testOptions(t, routes.Manifest{api}, map[string]Module{"api.page": mod})

	_, err := newGenerator(t, opts).Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, mod.staticCalls)
	assert.Equal(t, 0, mod.renders)
}

func TestGenerate_ExternalRedirectRejectedBeforeWrite(t *testing.T) {
	home := parseRoute(t, "home.page", "/home")
	later := parseRoute(t, "later.page", "/later")
	laterMod := &stubModule{body: "later"}
	opts := testOptions(t, routes.Manifest{home, later}, map[string]Module{
		"home.page":  &stubModule{status: http.StatusFound, location: "https://elsewhere.example/"},
		"later.page": laterMod,
	})
	opts.Site, _ = url.Parse("https://example.com")

	_, err := newGenerator(t, opts).Generate(context.Background())

	var rna *RedirectNotAllowedError
	require.True(t, errors.As(err, &rna))
	assert.Equal(t, "home.page", rna.Component)
	assert.Equal(t, http.StatusFound, rna.Status)
	assert.Equal(t, 0, laterMod.renders)
	assertEmptyDir(t, opts.OutDir)
}

func TestGenerate_AllowedRedirectWritesRefreshPage(t *testing.T) {
	old := parseRoute(t, "old.page", "/old")
	opts := testOptions(t, routes.Manifest{old}, map[string]Module{
		"old.page": &stubModule{status: http.StatusFound, location: "/new"},
	})
	opts.Site, _ = url.Parse("https://example.com")

	_, err := newGenerator(t, opts).Generate(context.Background())
	require.NoError(t, err)

	body := readFile(t, filepath.Join(opts.OutDir, "old", "index.html"))
	assert.Contains(t, body, `<meta http-equiv="refresh" content="2;url=/new">`)
	assert.Contains(t, body, `<link rel="canonical" href="https://example.com/new">`)
	assert.Contains(t, body, "from <code>/old</code>")
}

func TestGenerate_RedirectRoute(t *testing.T) {
	old, err := routes.Parse("redirect:/old", "/old", routes.RouteTypeRedirect)
	require.NoError(t, err)
	old.RedirectTo = "/new"
	old.RedirectStatus = http.StatusMovedPermanently

	opts := testOptions(t, routes.Manifest{old}, nil)
	_, err = newGenerator(t, opts).Generate(context.Background())
	require.NoError(t, err)
	assert.Contains(t, readFile(t, filepath.Join(opts.OutDir, "old", "index.html")), `content="0;url=/new"`)

	opts = testOptions(t, routes.Manifest{old}, nil)
	opts.Redirects = false
	_, err = newGenerator(t, opts).Generate(context.Background())
	require.NoError(t, err)
	assertEmptyDir(t, opts.OutDir)
}

func TestGenerate_RenderErrorIsTagged(t *testing.T) {
	broken := parseRoute(t, "broken.page", "/broken")
	cause := errors.New("template exploded")
	opts := testOptions(t, routes.Manifest{broken}, map[string]Module{
		"broken.page": &stubModule{err: cause},
	})

	_, err := newGenerator(t, opts).Generate(context.Background())

	var re *RenderError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "broken.page", re.Component)
	assert.Equal(t, "/broken", re.Pathname)
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "broken.page")
}

func TestGenerate_AlreadyTaggedRenderErrorKeepsComponent(t *testing.T) {
	page := parseRoute(t, "page", "/p")
	inner := &RenderError{Component: "layout.partial", Pathname: "/p", Err: errors.New("bad")}
	opts := testOptions(t, routes.Manifest{page}, map[string]Module{"page": &stubModule{err: inner}})

	_, err := newGenerator(t, opts).Generate(context.Background())

	var re *RenderError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "layout.partial", re.Component)
}

func TestGenerate_Endpoints(t *testing.T) {
	rss := parseEndpoint(t, "rss.endpoint", "/rss.xml")
	empty := parseEndpoint(t, "empty.endpoint", "/empty.json")
	opts := testOptions(t, routes.Manifest{rss, empty}, map[string]Module{
		"rss.endpoint":   &stubModule{body: "<rss/>", contentType: "application/rss+xml"},
		"empty.endpoint": &stubModule{},
	})

	res, err := newGenerator(t, opts).Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "<rss/>", readFile(t, filepath.Join(opts.OutDir, "rss.xml")))
	assert.NoFileExists(t, filepath.Join(opts.OutDir, "empty.json"))
	assert.Empty(t, res.PageNames)
}

func TestGenerate_Middleware(t *testing.T) {
	page := parseRoute(t, "page", "/page")
	blocked := parseRoute(t, "blocked", "/blocked")
	blockedMod := &stubModule{body: "secret"}

	shortCircuit := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/blocked" {
				_, _ = w.Write([]byte("intercepted"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	header := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc, ok := RenderContextFrom(r.Context())
			if ok {
				_, _ = w.Write([]byte("[" + rc.Route.Component + "]"))
			}
			next.ServeHTTP(w, r)
		})
	}

	opts := testOptions(t, routes.Manifest{page, blocked}, map[string]Module{
		"page":    &stubModule{body: "body"},
		"blocked": blockedMod,
	})
	opts.Middleware = []mux.MiddlewareFunc{shortCircuit, header}

	_, err := newGenerator(t, opts).Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "[page]body", readFile(t, filepath.Join(opts.OutDir, "page", "index.html")))
	assert.Equal(t, "intercepted", readFile(t, filepath.Join(opts.OutDir, "blocked", "index.html")))
	assert.Equal(t, 0, blockedMod.renders)
}

func TestGenerate_MissingModule(t *testing.T) {
	page := parseRoute(t, "ghost.page", "/ghost")
	opts := testOptions(t, routes.Manifest{page}, nil)

	_, err := newGenerator(t, opts).Generate(context.Background())

	var missing *MissingBundleEntryError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "ghost.page", missing.Specifier)
}

func TestGenerate_WriteFailureIsFatal(t *testing.T) {
	page := parseRoute(t, "page", "/blocked")
	opts := testOptions(t, routes.Manifest{page}, map[string]Module{"page": &stubModule{body: "x"}})
	require.NoError(t, os.WriteFile(filepath.Join(opts.OutDir, "blocked"), []byte("file"), 0644))

	_, err := newGenerator(t, opts).Generate(context.Background())
	assert.Error(t, err)
}

func TestGenerate_SpreadEscapingOutDirIsFatal(t *testing.T) {
	docs := parseRoute(t, "docs.page", "/docs/[...rest]")
	opts := testOptions(t, routes.Manifest{docs}, map[string]Module{
		"docs.page": &stubModule{body: "x", paths: bindings("rest", "../../escaped")},
	})
	parent := t.TempDir()
	opts.OutDir = filepath.Join(parent, "public")

	_, err := newGenerator(t, opts).Generate(context.Background())

	require.ErrorIs(t, err, ErrOutsideOutDir)
	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, "docs.page", renderErr.Component)
	assert.ErrorContains(t, err, "docs.page")
	assert.NoDirExists(t, filepath.Join(parent, "escaped"))
	assert.NoDirExists(t, filepath.Join(filepath.Dir(parent), "escaped"))
}

type recordingHook struct {
	got []BuildGeneratedRequest
	err error
}

func (h *recordingHook) Name() string { return "recording" }

func (h *recordingHook) BuildGenerated(_ context.Context, req BuildGeneratedRequest) error {
	h.got = append(h.got, req)
	return h.err
}

func TestGenerate_HooksAndMetrics(t *testing.T) {
	index := parseRoute(t, "index", "/")
	draft := parseRoute(t, "draft", "/draft")
	opts := testOptions(t, routes.Manifest{index, draft}, map[string]Module{
		"index": &stubModule{body: "home"},
		"draft": &stubModule{body: "draft", frontmatter: map[string]any{"draft": true}},
	})
	hook := &recordingHook{}
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)
	opts.Hooks = []BuildGeneratedHook{hook}
	opts.Recorder = rec
	opts.BuildID = "build-1"

	_, err := newGenerator(t, opts).Generate(context.Background())
	require.NoError(t, err)

	require.Len(t, hook.got, 1)
	assert.Equal(t, BuildGeneratedRequest{BuildID: "build-1", OutDir: opts.OutDir, Pages: []string{""}}, hook.got[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.paths.WithLabelValues("page")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.skipped.WithLabelValues("draft")))

	hook.err = errors.New("sitemap failed")
	_, err = newGenerator(t, opts).Generate(context.Background())
	assert.ErrorContains(t, err, "integration recording")
}

func TestGenerate_PrunesStaleOutput(t *testing.T) {
	index := parseRoute(t, "index", "/")
	opts := testOptions(t, routes.Manifest{index}, map[string]Module{"index": &stubModule{body: "home"}})
	opts.Prune = []string{"**/*.html"}

	stale := filepath.Join(opts.OutDir, "gone", "index.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), os.ModePerm))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0644))
	asset := filepath.Join(opts.OutDir, "static", "app.css")
	require.NoError(t, os.MkdirAll(filepath.Dir(asset), os.ModePerm))
	require.NoError(t, os.WriteFile(asset, []byte("body{}"), 0644))

	res, err := newGenerator(t, opts).Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"gone/index.html"}, res.Pruned)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, asset)
	assert.FileExists(t, filepath.Join(opts.OutDir, "index.html"))
}

func TestGenerate_PruneKeepsPreservedFiles(t *testing.T) {
	index := parseRoute(t, "index", "/")
	opts := testOptions(t, routes.Manifest{index}, map[string]Module{"index": &stubModule{body: "home"}})
	opts.Prune = []string{"**/*.html", "**/*.js"}
	opts.Preserve = []string{"assets/main_ab12.js", "static/offline.html"}

	for name, content := range map[string]string{
		"assets/main_ab12.js": "console.log(1)",
		"assets/main_old.js":  "console.log(0)",
		"static/offline.html": "offline",
	} {
		p := filepath.Join(opts.OutDir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), os.ModePerm))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}

	res, err := newGenerator(t, opts).Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"assets/main_old.js"}, res.Pruned)
	assert.FileExists(t, filepath.Join(opts.OutDir, "assets", "main_ab12.js"))
	assert.FileExists(t, filepath.Join(opts.OutDir, "static", "offline.html"))
}

func TestGenerate_TextBodyIsWrittenAsValidUTF8(t *testing.T) {
	page := parseRoute(t, "page", "/")
	feed := parseEndpoint(t, "feed", "/blob.bin")
	opts := testOptions(t, routes.Manifest{page, feed}, map[string]Module{
		"page": &stubModule{body: "caf\xe9", contentType: "text/html; charset=utf-8"},
		"feed": &stubModule{body: "\x00\xff\xfe", contentType: "application/octet-stream"},
	})

	_, err := newGenerator(t, opts).Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "caf\uFFFD", readFile(t, filepath.Join(opts.OutDir, "index.html")))
	assert.Equal(t, "\x00\xff\xfe", readFile(t, filepath.Join(opts.OutDir, "blob.bin")))
}
