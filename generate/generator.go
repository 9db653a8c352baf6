package generate

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/ZacxDev/sitegen/routes"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

type Options struct {
	Manifest  routes.Manifest
	Modules   map[string]Module
	Internals *BuildInternals
	Renderers []Renderer

	Middleware []mux.MiddlewareFunc

	OutDir        string
	Site          *url.URL
	Base          string
	TrailingSlash TrailingSlash
	Format        BuildFormat

	// Drafts includes pages whose frontmatter sets draft: true.
	Drafts         bool
	Redirects      bool
	RedirectPolicy RedirectPolicy

	// Prune lists doublestar patterns of stale output to delete.
	Prune []string
	// Preserve lists files, relative to OutDir, written by earlier build
	// steps such as the bundler. Prune never removes them.
	Preserve []string

	Hooks    []BuildGeneratedHook
	Logger   *slog.Logger
	Recorder Recorder
	BuildID  string
}

// Result summarizes one build.
type Result struct {
	BuildID   string
	PageNames []string
	Files     []string
	Pruned    []string
	Duration  time.Duration
}

// Generator writes the prerendered routes of one build. It is not safe for
// concurrent use and must not be reused across builds.
type Generator struct {
	opts     Options
	logger   *slog.Logger
	recorder Recorder

	matcher *routes.Matcher
	writer  *Writer
	invoker *Invoker

	cache      *routeCache
	builtPaths map[string]struct{}
	pageNames  []string
}

func New(opts Options) (*Generator, error) {
	if opts.OutDir == "" {
		return nil, errors.New("generate: output directory is required")
	}
	if opts.BuildID == "" {
		opts.BuildID = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = NoopRecorder{}
	}
	if opts.RedirectPolicy == nil {
		opts.RedirectPolicy = SameSiteRedirects(opts.Site, false)
	}

	matcher, err := routes.NewMatcher(opts.Manifest)
	if err != nil {
		return nil, err
	}

	writer := NewWriter(opts.OutDir, opts.Base, opts.TrailingSlash, opts.Format)
	writer.Preserve(opts.Preserve...)

	logger := opts.Logger.With("build_id", opts.BuildID)
	return &Generator{
		opts:     opts,
		logger:   logger,
		recorder: opts.Recorder,
		matcher:  matcher,
		writer:   writer,
		invoker: &Invoker{
			Middleware:     opts.Middleware,
			Site:           opts.Site,
			Base:           opts.Base,
			Redirects:      opts.Redirects,
			RedirectPolicy: opts.RedirectPolicy,
			Logger:         logger,
		},
		cache:      newRouteCache(),
		builtPaths: make(map[string]struct{}),
	}, nil
}

// Generate renders every prerendered route in manifest order. The first error
// aborts the build.
func (g *Generator) Generate(ctx context.Context) (*Result, error) {
	start := time.Now()
	g.logger.Info("generating static routes", "routes", len(g.opts.Manifest), "out_dir", g.opts.OutDir)

	for _, route := range g.opts.Manifest {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := g.generatePage(ctx, route); err != nil {
			return nil, err
		}
	}

	pruned, err := g.writer.Prune(g.opts.Prune)
	if err != nil {
		return nil, err
	}
	for _, f := range pruned {
		g.logger.Info("removed stale output", "file", f)
	}

	req := BuildGeneratedRequest{
		BuildID: g.opts.BuildID,
		OutDir:  g.opts.OutDir,
		Pages:   g.PageNames(),
	}
	for _, hook := range g.opts.Hooks {
		err := runHook(ctx, g.logger, hook.Name(), slowHookThreshold, func(ctx context.Context) error {
			return hook.BuildGenerated(ctx, req)
		})
		if err != nil {
			return nil, err
		}
	}

	d := time.Since(start)
	g.logger.Info("static routes generated", "pages", len(g.pageNames), "duration", d)

	return &Result{
		BuildID:   g.opts.BuildID,
		PageNames: g.PageNames(),
		Files:     g.writer.Written(),
		Pruned:    pruned,
		Duration:  d,
	}, nil
}

// PageNames returns the generated page names in build order.
func (g *Generator) PageNames() []string {
	names := make([]string, len(g.pageNames))
	copy(names, g.pageNames)
	return names
}

func (g *Generator) generatePage(ctx context.Context, route *routes.Route) error {
	if !route.Prerender {
		g.logger.Debug("skipping on-demand route", "component", route.Component)
		g.recorder.PageSkipped("on-demand")
		return nil
	}

	module, err := g.module(route)
	if err != nil {
		return err
	}

	if g.isDraft(route, module) {
		g.logger.Info("skipping draft", "component", route.Component)
		g.recorder.PageSkipped("draft")
		return nil
	}

	opts, err := g.opts.Internals.generationOptions(
		g.opts.Internals.PageData(route), module, g.opts.Renderers, g.opts.Base)
	if err != nil {
		return err
	}

	paths, err := g.resolvePaths(ctx, route, module)
	if err != nil {
		return err
	}

	g.logger.Info("generating page", "component", route.Component, "paths", len(paths))
	for _, sp := range paths {
		if err := g.generatePath(ctx, opts, sp); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) generatePath(ctx context.Context, opts *GenerationOptions, sp StaticPath) error {
	start := time.Now()
	route := opts.Route()

	res, err := g.invoker.Render(ctx, opts, sp)
	if err != nil {
		return err
	}
	if res == nil {
		return nil
	}

	loc := g.writer.Locate(sp.Pathname, route.Type)
	if err := g.writer.Write(loc, res.Body, res.Encoding); err != nil {
		return &RenderError{Component: route.Component, Pathname: sp.Pathname, Err: err}
	}

	if route.Type != routes.RouteTypeEndpoint {
		g.pageNames = append(g.pageNames, g.writer.PageName(sp.Pathname))
	}

	d := time.Since(start)
	g.recorder.PathGenerated(route.Type, d)
	g.logger.Info("generated", "path", loc.URL, "file", loc.File, "encoding", res.Encoding, "duration", d)
	return nil
}

// module looks up the compiled module of route. Redirect routes have none.
func (g *Generator) module(route *routes.Route) (Module, error) {
	if route.Type == routes.RouteTypeRedirect {
		return nil, nil
	}
	module, ok := g.opts.Modules[route.Component]
	if !ok || module == nil {
		return nil, &MissingBundleEntryError{Specifier: route.Component}
	}
	return module, nil
}

func (g *Generator) isDraft(route *routes.Route, module Module) bool {
	if g.opts.Drafts || route.Type != routes.RouteTypePage {
		return false
	}
	fp, ok := module.(FrontmatterProvider)
	if !ok {
		return false
	}
	draft, _ := fp.Frontmatter()["draft"].(bool)
	return draft
}
