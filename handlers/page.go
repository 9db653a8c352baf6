package handlers

import (
	"context"
	"html/template"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ZacxDev/sitegen/config"
	"github.com/ZacxDev/sitegen/generate"
	"github.com/ZacxDev/sitegen/routes"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobuffalo/plush"
	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
)

// Page is a page or endpoint module backed by a plush or markdown source.
type Page struct {
	site   *Site
	config config.Route
	route  *routes.Route
}

var paramPattern = regexp.MustCompile(`\[(\.\.\.)?([^\]/]+)\]`)

func (p *Page) Render(w http.ResponseWriter, r *http.Request, ps httprouter.Params) error {
	ctx := p.site.templateContext(r, ps)
	source := p.sourceFor(ps)

	var content string
	var err error
	switch p.config.TemplateType {
	case config.TemplatePlush:
		content, err = renderPlushTemplate(filepath.Join(p.site.Root, source), ctx)
	case config.TemplateMarkdown:
		var fm map[string]interface{}
		content, fm, err = renderMarkdownTemplate(filepath.Join(p.site.Root, source))
		ctx.Set("title", fm["title"])
		ctx.Set("description", fm["description"])
		ctx.Set("frontmatter", fm)
	default:
		return errors.Errorf("unsupported template type %q", p.config.TemplateType)
	}
	if err != nil {
		return errors.Wrapf(err, "rendering %s", source)
	}

	if p.route.Type == routes.RouteTypeEndpoint {
		if ct := mime.TypeByExtension(path.Ext(r.URL.Path)); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		_, err = io.WriteString(w, content)
		return err
	}

	pageHtml, err := p.site.applyLayout(content, ctx)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = io.WriteString(w, pageHtml)
	return err
}

// Frontmatter returns the parsed frontmatter of a static markdown page.
func (p *Page) Frontmatter() map[string]any {
	if p.config.TemplateType != config.TemplateMarkdown || p.route.IsDynamic() {
		return nil
	}

	fm, err := readFrontmatter(filepath.Join(p.site.Root, p.config.Source))
	if err != nil {
		p.site.Logger.Warn("reading frontmatter", "component", p.route.Component, "error", err)
		return nil
	}
	return fm
}

// StaticPaths returns the params listed in the manifest or, without them,
// one binding per file matching the source with each [param] as a wildcard.
func (p *Page) StaticPaths(ctx context.Context, opts generate.StaticPathsOptions) ([]generate.StaticPath, error) {
	if len(p.config.Params) > 0 {
		paths := make([]generate.StaticPath, 0, len(p.config.Params))
		for _, params := range p.config.Params {
			paths = append(paths, generate.StaticPath{Params: routes.Params(params)})
		}
		return paths, nil
	}

	if p.config.Collection != "" {
		return p.paginateCollection(ctx, opts)
	}

	glob, extract, names := sourcePatterns(p.config.Source)
	matches, err := doublestar.Glob(p.site.fsys, glob, doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.Wrapf(err, "globbing %s", glob)
	}
	sort.Strings(matches)

	var paths []generate.StaticPath
	for _, match := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sub := extract.FindStringSubmatch(match)
		if sub == nil {
			continue
		}

		if strings.HasSuffix(match, ".md") {
			if _, skip, err := p.entry(match); err != nil {
				return nil, err
			} else if skip {
				continue
			}
		}

		params := make(routes.Params, len(names))
		for i, name := range names {
			params[name] = sub[i+1]
		}
		paths = append(paths, generate.StaticPath{
			Params: params,
			Props:  map[string]any{"source": match},
		})
	}

	return paths, nil
}

// paginateCollection splits the files matching the collection glob into
// pages. Each item is a map with the file path under "source" and, for
// markdown, its frontmatter under "frontmatter".
func (p *Page) paginateCollection(ctx context.Context, opts generate.StaticPathsOptions) ([]generate.StaticPath, error) {
	matches, err := doublestar.Glob(p.site.fsys, p.config.Collection, doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.Wrapf(err, "globbing %s", p.config.Collection)
	}
	sort.Strings(matches)

	items := make([]any, 0, len(matches))
	for _, match := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item := map[string]any{"source": match}
		if strings.HasSuffix(match, ".md") {
			fm, skip, err := p.entry(match)
			if err != nil {
				return nil, err
			}
			if skip {
				continue
			}
			item["frontmatter"] = fm
		}
		items = append(items, item)
	}

	if opts.Paginate == nil {
		return nil, errors.Errorf("route %s: pagination is not available", p.route.Pattern)
	}
	return opts.Paginate(items, generate.PaginateOptions{PageSize: p.config.PageSize})
}

// entry reads the frontmatter of a markdown content file and reports whether
// it is a draft that should be left out.
func (p *Page) entry(match string) (map[string]interface{}, bool, error) {
	fm, err := readFrontmatter(filepath.Join(p.site.Root, match))
	if err != nil {
		return nil, false, err
	}
	if draft, _ := fm["draft"].(bool); draft && !p.site.Config.Drafts {
		p.site.Logger.Info("skipping draft", "component", p.route.Component, "file", match)
		return fm, true, nil
	}
	return fm, false, nil
}

func (p *Page) sourceFor(ps httprouter.Params) string {
	return paramPattern.ReplaceAllStringFunc(p.config.Source, func(m string) string {
		name := paramPattern.FindStringSubmatch(m)[2]
		return ps.ByName(name)
	})
}

// sourcePatterns turns a source like pages/blog/[slug]/en.md into a glob, a
// regexp capturing each parameter and the parameter names in order.
func sourcePatterns(source string) (string, *regexp.Regexp, []string) {
	var glob, expr strings.Builder
	var names []string

	expr.WriteString("^")
	last := 0
	for _, loc := range paramPattern.FindAllStringSubmatchIndex(source, -1) {
		literal := source[last:loc[0]]
		expr.WriteString(regexp.QuoteMeta(literal))

		spread := loc[2] >= 0
		names = append(names, source[loc[4]:loc[5]])
		switch {
		case spread && wholeSegment(source, loc[0], loc[1]):
			glob.WriteString(literal)
			glob.WriteString("**")
			expr.WriteString("(.+)")
		case spread:
			// ** only crosses directories as a full segment, so a spread
			// sharing its segment globs any file below and the regexp filters.
			glob.WriteString(literal[:strings.LastIndex(literal, "/")+1])
			glob.WriteString("**/*")
			expr.WriteString("(.+)")
		default:
			glob.WriteString(literal)
			glob.WriteString("*")
			expr.WriteString("([^/]+)")
		}
		last = loc[1]
	}
	glob.WriteString(source[last:])
	expr.WriteString(regexp.QuoteMeta(source[last:]))
	expr.WriteString("$")

	return glob.String(), regexp.MustCompile(expr.String()), names
}

func wholeSegment(source string, start, end int) bool {
	return (start == 0 || source[start-1] == '/') && (end == len(source) || source[end] == '/')
}

func renderPlushTemplate(source string, ctx *plush.Context) (string, error) {
	content, err := os.ReadFile(source)
	if err != nil {
		return "", err
	}

	template, err := plush.Parse(string(content))
	if err != nil {
		return "", err
	}

	return template.Exec(ctx)
}

func stylesHTML(styles []generate.Stylesheet) template.HTML {
	var b strings.Builder
	for _, s := range styles {
		switch s.Type {
		case generate.AssetInline:
			b.WriteString("<style>" + s.Content + "</style>\n")
		default:
			b.WriteString(`<link rel="stylesheet" href="` + template.HTMLEscapeString(s.Src) + `">` + "\n")
		}
	}
	return template.HTML(b.String())
}

func scriptsHTML(scripts []generate.Script) template.HTML {
	var b strings.Builder
	for _, s := range scripts {
		switch s.Type {
		case generate.AssetInline:
			b.WriteString(`<script type="module">` + s.Value + "</script>\n")
		default:
			b.WriteString(`<script type="module" src="` + template.HTMLEscapeString(s.Value) + `"></script>` + "\n")
		}
	}
	return template.HTML(b.String())
}
