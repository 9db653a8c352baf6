package generate

import (
	"context"
	"strings"

	"github.com/ZacxDev/sitegen/routes"
	"github.com/pkg/errors"
)

// ResolvePaths returns the concrete paths this build should render for
// route, in enumeration order. Paths another route owns are left out.
func (g *Generator) ResolvePaths(ctx context.Context, route *routes.Route) ([]StaticPath, error) {
	module, err := g.module(route)
	if err != nil {
		return nil, err
	}
	return g.resolvePaths(ctx, route, module)
}

func (g *Generator) resolvePaths(ctx context.Context, route *routes.Route, module Module) ([]StaticPath, error) {
	if route.Pathname != "" {
		g.builtPaths[trimTrailingSlash(route.Pathname)] = struct{}{}
		return []StaticPath{{Params: routes.Params{}, Pathname: route.Pathname}}, nil
	}

	enumerated, err := g.staticPaths(ctx, route, module)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(enumerated))
	paths := make([]StaticPath, 0, len(enumerated))
	for _, sp := range enumerated {
		pathname := route.Generate(sp.Params)
		if pathname == "" {
			g.logger.Debug("dropping static path without a pathname",
				"component", route.Component, "params", sp.Params)
			continue
		}

		key := trimTrailingSlash(pathname)
		if _, dup := seen[key]; dup {
			continue
		}
		if !g.admit(pathname, route) {
			g.logger.Debug("path claimed by a higher priority route",
				"component", route.Component, "path", pathname)
			continue
		}
		seen[key] = struct{}{}

		sp.Pathname = pathname
		paths = append(paths, sp)
	}

	return paths, nil
}

// staticPaths enumerates route through its module at most once per build.
func (g *Generator) staticPaths(ctx context.Context, route *routes.Route, module Module) ([]StaticPath, error) {
	if cached, ok := g.cache.get(route); ok {
		return cached, nil
	}

	provider, ok := module.(StaticPathsProvider)
	if !ok {
		return nil, &StaticPathsError{
			Component: route.Component,
			Err:       errors.New("dynamic route module does not provide static paths"),
		}
	}

	paths, err := provider.StaticPaths(ctx, StaticPathsOptions{
		Mode:  modeOf(route),
		Route: route,
		Paginate: func(items []any, opts PaginateOptions) ([]StaticPath, error) {
			return Paginate(route, items, opts)
		},
	})
	if err != nil {
		return nil, &StaticPathsError{Component: route.Component, Err: err}
	}

	g.cache.set(route, paths)
	return paths, nil
}

func trimTrailingSlash(p string) string {
	return strings.TrimSuffix(p, "/")
}
