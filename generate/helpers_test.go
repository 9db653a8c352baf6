package generate

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/ZacxDev/sitegen/routes"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/require"
)

// stubModule renders body with {name} placeholders replaced by params.
type stubModule struct {
	body        string
	contentType string
	status      int
	location    string
	err         error

	paths       []StaticPath
	pathsErr    error
	frontmatter map[string]any

	renders     int
	staticCalls int
	rendered    []string
}

func (m *stubModule) Render(w http.ResponseWriter, r *http.Request, ps httprouter.Params) error {
	m.renders++
	m.rendered = append(m.rendered, r.URL.Path)
	if m.err != nil {
		return m.err
	}
	if m.location != "" {
		w.Header().Set("Location", m.location)
	}
	if m.contentType != "" {
		w.Header().Set("Content-Type", m.contentType)
	}
	if m.status != 0 {
		w.WriteHeader(m.status)
	}

	body := m.body
	for _, p := range ps {
		body = strings.ReplaceAll(body, "{"+p.Key+"}", p.Value)
	}
	_, err := io.WriteString(w, body)
	return err
}

func (m *stubModule) StaticPaths(ctx context.Context, opts StaticPathsOptions) ([]StaticPath, error) {
	m.staticCalls++
	if m.pathsErr != nil {
		return nil, m.pathsErr
	}
	return m.paths, nil
}

func (m *stubModule) Frontmatter() map[string]any {
	return m.frontmatter
}

func bindings(name string, values ...string) []StaticPath {
	paths := make([]StaticPath, 0, len(values))
	for _, v := range values {
		paths = append(paths, StaticPath{Params: routes.Params{name: v}})
	}
	return paths
}

func parseRoute(t *testing.T, component, pattern string) *routes.Route {
	t.Helper()
	r, err := routes.Parse(component, pattern, routes.RouteTypePage)
	require.NoError(t, err)
	return r
}

func parseEndpoint(t *testing.T, component, pattern string) *routes.Route {
	t.Helper()
	r, err := routes.Parse(component, pattern, routes.RouteTypeEndpoint)
	require.NoError(t, err)
	return r
}

func testOptions(t *testing.T, manifest routes.Manifest, modules map[string]Module) Options {
	t.Helper()
	return Options{
		Manifest:      manifest,
		Modules:       modules,
		OutDir:        t.TempDir(),
		Base:          "/",
		TrailingSlash: TrailingSlashAlways,
		Format:        FormatDirectory,
		Redirects:     true,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func newGenerator(t *testing.T, opts Options) *Generator {
	t.Helper()
	g, err := New(opts)
	require.NoError(t, err)
	return g
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
