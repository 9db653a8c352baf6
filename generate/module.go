package generate

import (
	"context"
	"net/http"
	"net/url"

	"github.com/ZacxDev/sitegen/routes"
	"github.com/julienschmidt/httprouter"
)

// Module is the compiled unit behind a page or endpoint route.
type Module interface {
	Render(w http.ResponseWriter, r *http.Request, ps httprouter.Params) error
}

// StaticPathsProvider is implemented by modules of dynamic routes.
type StaticPathsProvider interface {
	StaticPaths(ctx context.Context, opts StaticPathsOptions) ([]StaticPath, error)
}

// FrontmatterProvider exposes page metadata such as the draft flag.
type FrontmatterProvider interface {
	Frontmatter() map[string]any
}

type RenderMode string

const (
	ModePrerender RenderMode = "prerender"
	ModeOnDemand  RenderMode = "on-demand"
)

func modeOf(route *routes.Route) RenderMode {
	if route.Prerender {
		return ModePrerender
	}
	return ModeOnDemand
}

type StaticPathsOptions struct {
	Mode     RenderMode
	Route    *routes.Route
	Paginate func(items []any, opts PaginateOptions) ([]StaticPath, error)
}

// StaticPath is one enumerated binding. Pathname is filled in by the
// resolver.
type StaticPath struct {
	Params   routes.Params
	Props    map[string]any
	Pathname string
}

// RenderContext is attached to the request a module renders.
type RenderContext struct {
	Route     *routes.Route
	Pathname  string
	URL       *url.URL
	Params    routes.Params
	Props     map[string]any
	Styles    []Stylesheet
	Scripts   []Script
	Renderers []Renderer
	PageData  *PageBuildData
}

type renderContextKey struct{}

func WithRenderContext(ctx context.Context, rc *RenderContext) context.Context {
	ctx = context.WithValue(ctx, renderContextKey{}, rc)
	return context.WithValue(ctx, httprouter.ParamsKey, toHTTPRouterParams(rc.Route, rc.Params))
}

func RenderContextFrom(ctx context.Context) (*RenderContext, bool) {
	rc, ok := ctx.Value(renderContextKey{}).(*RenderContext)
	return rc, ok
}

func toHTTPRouterParams(route *routes.Route, params routes.Params) httprouter.Params {
	if route == nil {
		return nil
	}
	var ps httprouter.Params
	for _, name := range route.ParamNames() {
		ps = append(ps, httprouter.Param{Key: name, Value: params[name]})
	}
	return ps
}
