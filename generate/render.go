package generate

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"strings"

	"github.com/ZacxDev/sitegen/routes"
	"github.com/gorilla/mux"
	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
)

type Encoding string

const (
	EncodingUTF8   Encoding = "utf-8"
	EncodingBinary Encoding = "binary"
)

// RenderResult is what a single path rendered to.
type RenderResult struct {
	Status   int
	Header   http.Header
	Body     []byte
	Encoding Encoding
}

// RedirectPolicy decides whether a redirect response may be materialized.
type RedirectPolicy func(res *RenderResult, location *url.URL) bool

// SameSiteRedirects allows relative redirects and redirects to site's host.
// Other hosts are allowed only when allowExternal is set.
func SameSiteRedirects(site *url.URL, allowExternal bool) RedirectPolicy {
	return func(_ *RenderResult, location *url.URL) bool {
		if allowExternal || location.Host == "" {
			return true
		}
		return site != nil && strings.EqualFold(location.Host, site.Host)
	}
}

// Invoker renders one path of a page or endpoint through the middleware
// chain.
type Invoker struct {
	Middleware []mux.MiddlewareFunc
	Site       *url.URL
	Base       string

	// Redirects controls whether redirect routes are written at all.
	Redirects      bool
	RedirectPolicy RedirectPolicy

	Logger *slog.Logger
}

// Render returns nil with no error when there is nothing to write.
func (inv *Invoker) Render(ctx context.Context, opts *GenerationOptions, sp StaticPath) (*RenderResult, error) {
	route := opts.Route()
	reqURL := inv.requestURL(sp.Pathname)

	var res *RenderResult
	if route.Type == routes.RouteTypeRedirect {
		if !inv.Redirects {
			inv.logger().Debug("skipping redirect route", "component", route.Component, "path", sp.Pathname)
			return nil, nil
		}
		res = &RenderResult{Status: route.RedirectStatus, Header: http.Header{}}
		if res.Status == 0 {
			res.Status = http.StatusMovedPermanently
		}
		res.Header.Set("Location", route.RedirectTo)
	} else {
		var err error
		res, err = inv.invoke(ctx, opts, sp, reqURL)
		if err != nil {
			return nil, err
		}
	}

	if res.Status >= 300 && res.Status < 400 {
		return inv.redirect(route, sp.Pathname, res)
	}

	if len(res.Body) == 0 {
		inv.logger().Debug("render produced no body", "component", route.Component, "path", sp.Pathname)
		return nil, nil
	}

	res.Encoding = encodingOf(res.Header.Get("Content-Type"), res.Body)
	return res, nil
}

func (inv *Invoker) invoke(ctx context.Context, opts *GenerationOptions, sp StaticPath, reqURL *url.URL) (*RenderResult, error) {
	route := opts.Route()

	rc := &RenderContext{
		Route:     route,
		Pathname:  sp.Pathname,
		URL:       reqURL,
		Params:    sp.Params,
		Props:     sp.Props,
		Styles:    opts.Styles,
		Scripts:   opts.Scripts,
		Renderers: opts.Renderers,
		PageData:  opts.PageData,
	}

	req, err := http.NewRequestWithContext(WithRenderContext(ctx, rc), http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "building request for %s", sp.Pathname)
	}

	var renderErr error
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		renderErr = opts.Module.Render(w, r, httprouter.ParamsFromContext(r.Context()))
	})
	for i := len(inv.Middleware) - 1; i >= 0; i-- {
		h = inv.Middleware[i](h)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if renderErr != nil {
		return nil, tagRenderError(renderErr, route.Component, sp.Pathname)
	}

	return &RenderResult{
		Status: rec.Code,
		Header: rec.Header().Clone(),
		Body:   rec.Body.Bytes(),
	}, nil
}

func (inv *Invoker) redirect(route *routes.Route, from string, res *RenderResult) (*RenderResult, error) {
	raw := res.Header.Get("Location")
	if raw == "" {
		return nil, &RenderError{Component: route.Component, Pathname: from, Err: ErrRedirectWithNoLocation}
	}

	location, err := url.Parse(raw)
	if err != nil {
		return nil, &RenderError{Component: route.Component, Pathname: from, Err: errors.Wrap(err, "parsing redirect location")}
	}

	if inv.RedirectPolicy != nil && !inv.RedirectPolicy(res, location) {
		return nil, &RedirectNotAllowedError{
			Component: route.Component,
			From:      from,
			Location:  raw,
			Status:    res.Status,
		}
	}

	absolute := location
	if inv.Site != nil {
		absolute = inv.Site.ResolveReference(location)
	}

	return &RenderResult{
		Status:   res.Status,
		Header:   http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Body:     []byte(redirectTemplate(res.Status, absolute.String(), raw, from)),
		Encoding: EncodingUTF8,
	}, nil
}

func (inv *Invoker) logger() *slog.Logger {
	if inv.Logger == nil {
		return slog.Default()
	}
	return inv.Logger
}

func (inv *Invoker) requestURL(pathname string) *url.URL {
	u := &url.URL{Scheme: "http", Host: "localhost"}
	if inv.Site != nil {
		u.Scheme, u.Host = inv.Site.Scheme, inv.Site.Host
	}

	base := inv.Base
	if base == "" {
		base = "/"
	}
	u.Path = path.Join(base, pathname)
	if strings.HasSuffix(pathname, "/") && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u
}

func redirectTemplate(status int, absolute, relative, from string) string {
	delay := 0
	if status == http.StatusFound {
		delay = 2
	}
	rel := html.EscapeString(relative)

	var b strings.Builder
	b.WriteString("<!doctype html>\n")
	fmt.Fprintf(&b, "<title>Redirecting to: %s</title>\n", rel)
	fmt.Fprintf(&b, "<meta http-equiv=\"refresh\" content=\"%d;url=%s\">\n", delay, rel)
	b.WriteString("<meta name=\"robots\" content=\"noindex\">\n")
	fmt.Fprintf(&b, "<link rel=\"canonical\" href=\"%s\">\n", html.EscapeString(absolute))
	b.WriteString("<body>\n")
	fmt.Fprintf(&b, "\t<a href=\"%s\">Redirecting ", rel)
	if from != "" {
		fmt.Fprintf(&b, "from <code>%s</code> ", html.EscapeString(from))
	}
	fmt.Fprintf(&b, "to <code>%s</code></a>\n</body>", rel)
	return b.String()
}

func encodingOf(contentType string, body []byte) Encoding {
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return EncodingBinary
	}
	if _, ok := params["charset"]; ok {
		return EncodingUTF8
	}
	switch {
	case strings.HasPrefix(mediaType, "text/"),
		strings.HasSuffix(mediaType, "json"),
		strings.HasSuffix(mediaType, "xml"),
		strings.HasSuffix(mediaType, "javascript"):
		return EncodingUTF8
	}
	return EncodingBinary
}
