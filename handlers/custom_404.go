package handlers

import (
	"net/http"
	"net/http/httptest"

	"github.com/ZacxDev/sitegen/generate"
	"github.com/ZacxDev/sitegen/routes"
)

// Custom404Handler renders the /404 page with a 404 status, or a plain not
// found response when the site has none.
func (s *Site) Custom404Handler(w http.ResponseWriter, r *http.Request) {
	route := s.notFoundRoute()
	if route == nil {
		http.NotFound(w, r)
		return
	}

	rc := &generate.RenderContext{Route: route, Pathname: r.URL.Path, URL: r.URL, Params: routes.Params{}}
	r = r.WithContext(generate.WithRenderContext(r.Context(), rc))

	rec := httptest.NewRecorder()
	if err := s.Modules[route.Component].Render(rec, r, nil); err != nil {
		s.Logger.Error("rendering 404 page", "component", route.Component, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	copyResponse(w, rec, http.StatusNotFound)
}

func (s *Site) notFoundRoute() *routes.Route {
	for _, route := range s.Routes {
		if route.Pathname == "/404" && s.Modules[route.Component] != nil {
			return route
		}
	}
	return nil
}
