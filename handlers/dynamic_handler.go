package handlers

import (
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ZacxDev/sitegen/bundle"
	"github.com/ZacxDev/sitegen/config"
	"github.com/ZacxDev/sitegen/generate"
	"github.com/ZacxDev/sitegen/routes"
	"github.com/ZacxDev/sitegen/utils"
	"github.com/gobuffalo/plush"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
	"github.com/gorilla/mux"
	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const defaultLang = "en"

// Site is a loaded manifest: the parsed routes in priority order and the
// module behind every page and endpoint.
type Site struct {
	Config  *config.SiteManifest
	Root    string
	Routes  routes.Manifest
	Modules map[string]generate.Module
	Logger  *slog.Logger

	pages        map[string]*Page
	translations map[string]map[string]string
	fsys         fs.FS
}

// LoadSite parses every manifest route and binds a module to it. Sources are
// resolved against root.
func LoadSite(cfg *config.SiteManifest, root string, logger *slog.Logger) (*Site, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Site{
		Config:  cfg,
		Root:    root,
		Modules: make(map[string]generate.Module),
		Logger:  logger,
		pages:   make(map[string]*Page),
		fsys:    os.DirFS(root),
	}

	var err error
	s.translations, err = loadTranslations(root, cfg.Translations)
	if err != nil {
		return nil, errors.Wrap(err, "loading translations")
	}

	has404 := false
	for _, rc := range cfg.Routes {
		if err := s.addRoute(rc); err != nil {
			return nil, err
		}
		if strings.Trim(rc.Path, "/") == "404" {
			has404 = true
		}
	}

	if cfg.NotFoundPageSource != "" && !has404 {
		rc := config.Route{
			Path:         "/404",
			Type:         string(routes.RouteTypePage),
			Source:       cfg.NotFoundPageSource,
			TemplateType: config.TemplatePlush,
		}
		if strings.HasSuffix(rc.Source, ".md") {
			rc.TemplateType = config.TemplateMarkdown
		}
		if err := s.addRoute(rc); err != nil {
			return nil, err
		}
	}

	if cfg.SortRoutes {
		routes.SortRoutes(s.Routes)
	}

	return s, nil
}

func (s *Site) addRoute(rc config.Route) error {
	component := rc.Source
	if rc.Type == string(routes.RouteTypeRedirect) {
		component = "redirect:" + rc.Path
	}
	if _, taken := s.pages[component]; taken {
		component = fmt.Sprintf("%s#%d", component, len(s.Routes))
	}

	route, err := routes.Parse(component, rc.Path, routes.RouteType(rc.Type))
	if err != nil {
		return err
	}
	route.Prerender = rc.IsPrerendered()

	if route.Type == routes.RouteTypeRedirect {
		route.RedirectTo = rc.Redirect
		route.RedirectStatus = rc.Status
	} else {
		page := &Page{site: s, config: rc, route: route}
		s.Modules[component] = page
		s.pages[component] = page
	}

	s.Routes = append(s.Routes, route)
	return nil
}

// Renderers lists the template engines pages are rendered with. Neither ships
// client code.
func (s *Site) Renderers() []generate.Renderer {
	return []generate.Renderer{
		{Name: "plush"},
		{Name: "markdown"},
	}
}

// HoistedGroups returns the javascript dependency lists of pages that need
// more than one target combined into a single hoisted script.
func (s *Site) HoistedGroups() [][]string {
	seen := make(map[string]bool)
	var groups [][]string
	for _, route := range s.Routes {
		page := s.pages[route.Component]
		if page == nil || len(page.config.JavascriptDeps) < 2 {
			continue
		}
		name := bundle.HoistedEntryName(page.config.JavascriptDeps)
		if seen[name] {
			continue
		}
		seen[name] = true
		groups = append(groups, page.config.JavascriptDeps)
	}
	return groups
}

// PopulateBuildInternals records the stylesheets and hoisted script of every
// page. Global styles come before the styles a route asks for.
func (s *Site) PopulateBuildInternals(in *generate.BuildInternals) error {
	global, err := s.stylesheets(in, s.Config.Styles, 0)
	if err != nil {
		return err
	}

	for _, route := range s.Routes {
		page := s.pages[route.Component]
		if page == nil {
			continue
		}

		own, err := s.stylesheets(in, page.config.StyleDeps, 1)
		if err != nil {
			return errors.Wrapf(err, "route %s", route.Pattern)
		}

		pd := &generate.PageBuildData{
			Component: route.Component,
			Route:     route,
			Styles:    append(append([]generate.StylesheetRef{}, global...), own...),
		}
		if deps := page.config.JavascriptDeps; len(deps) > 0 {
			pd.HoistedScript = &generate.Script{
				Type:  generate.AssetExternal,
				Value: bundle.HoistedEntryName(deps),
			}
		}
		in.Pages[route.Component] = pd
	}

	return nil
}

func (s *Site) stylesheets(in *generate.BuildInternals, names []string, level int) ([]generate.StylesheetRef, error) {
	refs := make([]generate.StylesheetRef, 0, len(names))
	for _, name := range names {
		file, err := in.EntryFile(name)
		if err != nil {
			return nil, err
		}
		refs = append(refs, generate.StylesheetRef{
			Depth: level,
			Order: level,
			Sheet: generate.Stylesheet{Type: generate.AssetExternal, Src: path.Join(s.Config.Base, file)},
		})
	}
	return refs, nil
}

// SetupRouter builds the router used by serve. Manifest routes are matched
// with the same priority rules as the build.
func (s *Site) SetupRouter() (*mux.Router, error) {
	matcher, err := routes.NewMatcher(s.Routes)
	if err != nil {
		return nil, err
	}

	pages := s.Router(matcher)
	pages.NotFoundHandler = http.HandlerFunc(s.Custom404Handler)

	router := mux.NewRouter()
	router.NotFoundHandler = pages.NotFoundHandler

	staticDir := filepath.Join(s.Root, s.Config.StaticDir)
	router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	router.PathPrefix("/" + s.Config.OutDir + "/").Handler(http.FileServer(http.Dir(s.Root)))

	router.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		sitemap, err := utils.GenerateSitemapContent(s.Config.Site, s.fixedPageNames())
		if err != nil {
			http.Error(w, fmt.Sprintf("Error generating sitemap: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(sitemap))
	}).Methods("GET")

	var h http.Handler = pages
	if base := strings.TrimSuffix(s.Config.Base, "/"); base != "" {
		h = stripBase(base, h, pages.NotFoundHandler)
	}
	router.PathPrefix("/").Handler(trimTrailingSlash(h))

	return router, nil
}

// Router attaches a DynamicHandler to every route known to matcher.
func (s *Site) Router(matcher *routes.Matcher) *mux.Router {
	return matcher.HandleEach(func(route *routes.Route) http.Handler {
		return s.DynamicHandler(route)
	})
}

func (s *Site) fixedPageNames() []string {
	var names []string
	for _, route := range s.Routes {
		if route.Pathname == "" || route.Type != routes.RouteTypePage || route.Pathname == "/404" {
			continue
		}
		names = append(names, strings.TrimPrefix(route.Pathname, "/"))
	}
	return names
}

func stripBase(base string, next, notFound http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest, ok := strings.CutPrefix(r.URL.Path, base)
		if !ok || (rest != "" && !strings.HasPrefix(rest, "/")) {
			notFound.ServeHTTP(w, r)
			return
		}
		r.URL.Path = "/" + strings.TrimPrefix(rest, "/")
		next.ServeHTTP(w, r)
	})
}

func trimTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(r.URL.Path) > 1 && strings.HasSuffix(r.URL.Path, "/") {
			r.URL.Path = strings.TrimSuffix(r.URL.Path, "/")
		}
		next.ServeHTTP(w, r)
	})
}

// DynamicHandler renders route on request. Redirect routes answer with the
// configured status.
func (s *Site) DynamicHandler(route *routes.Route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if route.Type == routes.RouteTypeRedirect {
			status := route.RedirectStatus
			if status == 0 {
				status = http.StatusMovedPermanently
			}
			http.Redirect(w, r, route.RedirectTo, status)
			return
		}

		module, ok := s.Modules[route.Component]
		if !ok {
			http.Error(w, "Unknown page", http.StatusInternalServerError)
			return
		}

		params := make(routes.Params)
		for k, v := range mux.Vars(r) {
			if route.HasSpreadParam(k) {
				v = strings.Trim(v, "/")
			}
			params[k] = v
		}

		rc := &generate.RenderContext{
			Route:    route,
			Pathname: r.URL.Path,
			URL:      r.URL,
			Params:   params,
		}
		r = r.WithContext(generate.WithRenderContext(r.Context(), rc))

		rec := httptest.NewRecorder()
		if err := module.Render(rec, r, httprouter.ParamsFromContext(r.Context())); err != nil {
			s.Logger.Error("rendering page", "component", route.Component, "path", r.URL.Path, "error", err)
			http.Error(w, fmt.Sprintf("Error rendering template: %v", err), http.StatusInternalServerError)
			return
		}
		copyResponse(w, rec, rec.Code)
	})
}

func copyResponse(w http.ResponseWriter, rec *httptest.ResponseRecorder, status int) {
	for k, v := range rec.Header() {
		w.Header()[k] = v
	}
	w.WriteHeader(status)
	w.Write(rec.Body.Bytes())
}

func (s *Site) templateContext(r *http.Request, ps httprouter.Params) *plush.Context {
	ctx := plush.NewContext()

	params := make(map[string]string, len(ps))
	for _, p := range ps {
		params[p.Key] = p.Value
	}
	ctx.Set("params", params)

	lang := params["lang"]
	if lang == "" {
		lang = defaultLang
	}

	ctx.Set("text", func(key string) string {
		if t, ok := s.translations[lang][key]; ok {
			return t
		}
		return key
	})
	ctx.Set("lang", lang)

	supportedLangs := make([]string, 0, len(s.translations))
	for lang := range s.translations {
		supportedLangs = append(supportedLangs, lang)
	}
	sort.Strings(supportedLangs)
	ctx.Set("supportedLangs", supportedLangs)
	ctx.Set("appOrigin", s.Config.Site)

	ctx.Set("startsWith", func(s string, prefix string) bool {
		return strings.HasPrefix(s, prefix)
	})

	ctx.Set("matches", func(s string, pat string) (bool, error) {
		re, err := regexp.Compile(pat)
		if err != nil {
			return false, err
		}
		return re.MatchString(s), nil
	})

	ctx.Set("replace", func(s string, old string, n string) string {
		return strings.Replace(s, old, n, 1)
	})

	ctx.Set("replaceAll", func(s string, old string, n string) string {
		return strings.ReplaceAll(s, old, n)
	})

	ctx.Set("replacePattern", func(s string, pat, n string) (string, error) {
		re, err := regexp.Compile(pat)
		if err != nil {
			return "", err
		}
		return re.ReplaceAllString(s, n), nil
	})

	ctx.Set("canonical", strings.TrimSuffix(s.Config.Site, "/")+r.URL.Path)
	ctx.Set("currentPath", r.URL.Path)

	props := map[string]any{}
	ctx.Set("styles", template.HTML(""))
	ctx.Set("scripts", template.HTML(""))
	if rc, ok := generate.RenderContextFrom(r.Context()); ok {
		if rc.Props != nil {
			props = rc.Props
		}
		ctx.Set("styles", stylesHTML(rc.Styles))
		ctx.Set("scripts", scriptsHTML(rc.Scripts))
		if page, ok := rc.Props["page"].(*generate.Page); ok {
			ctx.Set("page", page)
		}
	}
	ctx.Set("props", props)

	ctx.Set("partial", func(name string) (template.HTML, error) {
		partial, ok := s.Config.Partials[name]
		if !ok {
			return "", errors.Errorf("unknown partial %q", name)
		}
		source := filepath.Join(s.Root, partial.Source)
		if partial.TemplateType == config.TemplateMarkdown {
			content, _, err := renderMarkdownTemplate(source)
			return template.HTML(content), err
		}
		content, err := renderPlushTemplate(source, ctx)
		return template.HTML(content), err
	})

	return ctx
}

func (s *Site) applyLayout(content string, ctx *plush.Context) (string, error) {
	if s.Config.Layout == "" {
		return content, nil
	}

	ctx.Set("yield", template.HTML(content))

	baseContent, err := os.ReadFile(filepath.Join(s.Root, s.Config.Layout))
	if err != nil {
		return "", errors.Wrap(err, "reading base layout")
	}

	baseLayout, err := plush.Parse(string(baseContent))
	if err != nil {
		return "", errors.Wrap(err, "parsing base layout")
	}

	pageHtml, err := baseLayout.Exec(ctx)
	if err != nil {
		return "", errors.Wrap(err, "executing base layout")
	}
	return pageHtml, nil
}

func loadTranslations(root string, sources []config.Translation) (map[string]map[string]string, error) {
	translations := make(map[string]map[string]string, len(sources))

	for _, t := range sources {
		data, err := os.ReadFile(filepath.Join(root, t.Source))
		if err != nil {
			return nil, err
		}

		var langTranslations map[string]string
		err = yaml.Unmarshal(data, &langTranslations)
		if err != nil {
			return nil, errors.Wrapf(err, "translation %s", t.Code)
		}

		translations[t.Code] = langTranslations
	}

	return translations, nil
}

func renderMarkdownTemplate(source string) (string, map[string]interface{}, error) {
	content, err := os.ReadFile(source)
	if err != nil {
		return "", nil, err
	}

	metadata, body, err := splitFrontmatter(string(content))
	if err != nil {
		return "", nil, errors.Wrapf(err, "invalid Markdown file format: %s", source)
	}

	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	p := parser.NewWithExtensions(extensions)
	htmlContent := markdown.ToHTML([]byte(body), p, nil)
	contentHtml := strings.Replace(`
  <article class="flex flex-col gap-4 blog-container">
  [content]
  </article>
  `, "[content]", string(htmlContent), 1)

	return contentHtml, metadata, nil
}

func readFrontmatter(source string) (map[string]interface{}, error) {
	content, err := os.ReadFile(source)
	if err != nil {
		return nil, err
	}

	metadata, _, err := splitFrontmatter(string(content))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid Markdown file format: %s", source)
	}
	return metadata, nil
}

// splitFrontmatter separates a YAML header from the markdown body. The header
// must open the file with a --- line and end with another. Anything else,
// including a leading paragraph followed by a rule, is all body.
func splitFrontmatter(content string) (map[string]interface{}, string, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	rest, ok := strings.CutPrefix(content, "---\n")
	if !ok {
		return map[string]interface{}{}, content, nil
	}

	var header, body string
	if after, empty := strings.CutPrefix(rest, "---\n"); empty {
		body = after
	} else {
		parts := strings.SplitN(rest, "\n---\n", 2)
		if len(parts) != 2 {
			return map[string]interface{}{}, content, nil
		}
		header, body = parts[0], parts[1]
	}

	metadata := map[string]interface{}{}
	if err := yaml.Unmarshal([]byte(header), &metadata); err != nil {
		return nil, "", errors.Wrap(err, "error parsing frontmatter")
	}
	return metadata, body, nil
}
