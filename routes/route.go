package routes

import (
	"strings"

	"github.com/pkg/errors"
)

type RouteType string

const (
	RouteTypePage     RouteType = "page"
	RouteTypeEndpoint RouteType = "endpoint"
	RouteTypeRedirect RouteType = "redirect"
)

// Params binds dynamic segment names to concrete values.
type Params map[string]string

// Segment is one slash-delimited piece of a route pattern. Dynamic segments
// are written [name], spread segments [...name].
type Segment struct {
	Content string
	Dynamic bool
	Spread  bool
}

// Route maps a URL pattern to a renderable component.
type Route struct {
	Component string
	Pattern   string
	Segments  []Segment
	Type      RouteType
	Prerender bool

	// Pathname is set only for routes without dynamic segments.
	Pathname string

	RedirectTo     string
	RedirectStatus int
}

// Manifest is the ordered list of known routes. Earlier entries win when two
// routes produce the same pathname.
type Manifest []*Route

// Parse builds a Route from a pattern such as /posts/[slug] or /docs/[...rest].
func Parse(component, pattern string, typ RouteType) (*Route, error) {
	if typ == "" {
		typ = RouteTypePage
	}

	route := &Route{
		Component: component,
		Type:      typ,
		Prerender: true,
	}

	dynamic := false
	parts := strings.Split(strings.Trim(pattern, "/"), "/")
	for i, part := range parts {
		if part == "" {
			continue
		}

		seg, err := parseSegment(part)
		if err != nil {
			return nil, errors.Wrapf(err, "route %q", pattern)
		}
		if seg.Spread && i != len(parts)-1 {
			return nil, errors.Errorf("route %q: spread segment %q must be last", pattern, part)
		}
		if seg.Dynamic {
			dynamic = true
		}
		route.Segments = append(route.Segments, seg)
	}

	route.Pattern = "/" + strings.Trim(pattern, "/")
	if !dynamic {
		route.Pathname = route.Pattern
	}

	return route, nil
}

func parseSegment(part string) (Segment, error) {
	open := strings.Contains(part, "[")
	closed := strings.Contains(part, "]")
	if !open && !closed {
		return Segment{Content: part}, nil
	}

	if !strings.HasPrefix(part, "[") || !strings.HasSuffix(part, "]") || strings.Count(part, "[") != 1 {
		return Segment{}, errors.Errorf("segment %q mixes literal text and parameters", part)
	}

	name := part[1 : len(part)-1]
	spread := strings.HasPrefix(name, "...")
	name = strings.TrimPrefix(name, "...")
	if name == "" {
		return Segment{}, errors.Errorf("segment %q has an empty parameter name", part)
	}

	return Segment{Content: name, Dynamic: true, Spread: spread}, nil
}

func (r *Route) IsDynamic() bool {
	return r.Pathname == ""
}

// ParamNames lists the dynamic parameter names in segment order.
func (r *Route) ParamNames() []string {
	var names []string
	for _, seg := range r.Segments {
		if seg.Dynamic {
			names = append(names, seg.Content)
		}
	}
	return names
}

// HasSpreadParam reports whether name is bound by a spread segment.
func (r *Route) HasSpreadParam(name string) bool {
	for _, seg := range r.Segments {
		if seg.Spread && seg.Content == name {
			return true
		}
	}
	return false
}

// Generate maps parameter bindings to a concrete pathname. It returns "" when
// a required parameter is missing or a non-spread value contains a slash.
// Empty spread values drop their segment.
func (r *Route) Generate(params Params) string {
	if r.Pathname != "" {
		return r.Pathname
	}

	var b strings.Builder
	for _, seg := range r.Segments {
		if !seg.Dynamic {
			b.WriteString("/")
			b.WriteString(seg.Content)
			continue
		}

		value := params[seg.Content]
		if seg.Spread {
			value = strings.Trim(value, "/")
			if value == "" {
				continue
			}
		} else if value == "" || strings.Contains(value, "/") {
			return ""
		}

		b.WriteString("/")
		b.WriteString(value)
	}

	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}
