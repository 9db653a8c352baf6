package generate

import "github.com/ZacxDev/sitegen/routes"

// admit decides whether route may build pathname. A path nobody built yet is
// accepted. A path already built is accepted only when route is the one the
// manifest dispatches that URL to.
func (g *Generator) admit(pathname string, route *routes.Route) bool {
	key := trimTrailingSlash(pathname)
	if _, built := g.builtPaths[key]; built {
		if winner := g.matcher.Match(pathname); winner != route {
			return false
		}
	}

	g.builtPaths[key] = struct{}{}
	return true
}
