package generate

import "github.com/ZacxDev/sitegen/routes"

// routeCache holds static path enumerations per route for one build. Entries
// are written once and never invalidated.
type routeCache struct {
	entries map[*routes.Route][]StaticPath
}

func newRouteCache() *routeCache {
	return &routeCache{entries: make(map[*routes.Route][]StaticPath)}
}

func (c *routeCache) get(route *routes.Route) ([]StaticPath, bool) {
	paths, ok := c.entries[route]
	return paths, ok
}

func (c *routeCache) set(route *routes.Route, paths []StaticPath) {
	if _, ok := c.entries[route]; ok {
		return
	}
	c.entries[route] = paths
}
