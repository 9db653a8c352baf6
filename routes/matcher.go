package routes

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

// Matcher resolves a literal pathname to the first manifest route whose
// pattern matches it, the same way requests are dispatched at runtime.
type Matcher struct {
	router *mux.Router
	byName map[string]*Route
}

func NewMatcher(manifest Manifest) (*Matcher, error) {
	m := &Matcher{
		router: mux.NewRouter(),
		byName: make(map[string]*Route, len(manifest)),
	}

	for i, route := range manifest {
		name := strconv.Itoa(i)
		r := m.router.NewRoute().Name(name).Path(route.muxTemplate())
		if err := r.GetError(); err != nil {
			return nil, errors.Wrapf(err, "registering route %s", route.Pattern)
		}
		m.byName[name] = route
	}

	return m, nil
}

// Match returns the winning route for pathname, or nil.
func (m *Matcher) Match(pathname string) *Route {
	route, _ := m.MatchParams(pathname)
	return route
}

// MatchParams is Match plus the parameter bindings extracted from pathname.
func (m *Matcher) MatchParams(pathname string) (*Route, Params) {
	req := &http.Request{
		Method: http.MethodGet,
		URL:    &url.URL{Path: normalize(pathname)},
	}

	var match mux.RouteMatch
	if !m.router.Match(req, &match) || match.Route == nil {
		return nil, nil
	}

	route := m.byName[match.Route.GetName()]
	if route == nil {
		return nil, nil
	}

	params := make(Params, len(match.Vars))
	for k, v := range match.Vars {
		if route.HasSpreadParam(k) {
			v = strings.Trim(v, "/")
		}
		params[k] = v
	}

	return route, params
}

// HandleEach attaches a handler to every manifest route and returns the
// underlying router so it can be served.
func (m *Matcher) HandleEach(handler func(route *Route) http.Handler) *mux.Router {
	_ = m.router.Walk(func(r *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		if route := m.byName[r.GetName()]; route != nil {
			r.Handler(handler(route))
		}
		return nil
	})
	return m.router
}

func normalize(pathname string) string {
	p := "/" + strings.TrimPrefix(pathname, "/")
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

func (r *Route) muxTemplate() string {
	var b strings.Builder
	for _, seg := range r.Segments {
		switch {
		case seg.Spread && b.Len() == 0:
			b.WriteString("/{" + seg.Content + ":.*}")
		case seg.Spread:
			b.WriteString("{" + seg.Content + ":(?:/.*)?}")
		case seg.Dynamic:
			b.WriteString("/{" + seg.Content + "}")
		default:
			b.WriteString("/" + seg.Content)
		}
	}

	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}
