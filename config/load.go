package config

import (
	"net/url"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	DefaultOutDir    = "public"
	DefaultStaticDir = "static"

	TemplatePlush    = "PLUSH"
	TemplateMarkdown = "MARKDOWN"
)

// Load reads the site manifest at filename, applies defaults and the
// APP_ORIGIN override, and validates the result.
func Load(filename string) (*SiteManifest, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "reading site manifest")
	}
	return Parse(data)
}

func Parse(data []byte) (*SiteManifest, error) {
	var manifest SiteManifest
	if err := yaml.UnmarshalStrict(data, &manifest); err != nil {
		return nil, errors.Wrap(err, "parsing site manifest")
	}

	if origin := os.Getenv("APP_ORIGIN"); origin != "" {
		manifest.Site = origin
	}

	manifest.applyDefaults()
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	return &manifest, nil
}

func (m *SiteManifest) applyDefaults() {
	if m.OutDir == "" {
		m.OutDir = DefaultOutDir
	}
	if m.StaticDir == "" {
		m.StaticDir = DefaultStaticDir
	}
	if m.Base == "" {
		m.Base = "/"
	}
	if !strings.HasPrefix(m.Base, "/") {
		m.Base = "/" + m.Base
	}
	if m.TrailingSlash == "" {
		m.TrailingSlash = "ignore"
	}
	if m.Build.Format == "" {
		m.Build.Format = "directory"
	}
	if m.Build.Redirects == nil {
		enabled := true
		m.Build.Redirects = &enabled
	}
	for i := range m.Routes {
		r := &m.Routes[i]
		if r.Type == "" {
			r.Type = "page"
			if r.Redirect != "" {
				r.Type = "redirect"
			}
		}
		if r.TemplateType == "" && r.Source != "" {
			r.TemplateType = TemplatePlush
			if strings.HasSuffix(r.Source, ".md") {
				r.TemplateType = TemplateMarkdown
			}
		}
	}
}

func (m *SiteManifest) Validate() error {
	switch m.TrailingSlash {
	case "always", "never", "ignore":
	default:
		return errors.Errorf("trailing_slash must be always, never or ignore, got %q", m.TrailingSlash)
	}

	switch m.Build.Format {
	case "directory", "file":
	default:
		return errors.Errorf("build.format must be directory or file, got %q", m.Build.Format)
	}

	if m.Site != "" {
		u, err := url.Parse(m.Site)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.Errorf("site must be an absolute URL, got %q", m.Site)
		}
	}

	for i, r := range m.Routes {
		if r.Path == "" {
			return errors.Errorf("routes[%d]: path is required", i)
		}

		switch r.Type {
		case "redirect":
			if r.Redirect == "" {
				return errors.Errorf("routes[%d] %s: redirect target is required", i, r.Path)
			}
			if strings.Contains(r.Path, "[") {
				return errors.Errorf("routes[%d] %s: redirect routes cannot have parameters", i, r.Path)
			}
		case "page", "endpoint":
			if r.Source == "" {
				return errors.Errorf("routes[%d] %s: source is required", i, r.Path)
			}
			if r.TemplateType != TemplatePlush && r.TemplateType != TemplateMarkdown {
				return errors.Errorf("routes[%d] %s: unsupported template type %q", i, r.Path, r.TemplateType)
			}
		default:
			return errors.Errorf("routes[%d] %s: unknown route type %q", i, r.Path, r.Type)
		}

		for _, dep := range append(append([]string{}, r.JavascriptDeps...), r.StyleDeps...) {
			if _, ok := m.JavascriptTargets[dep]; !ok {
				return errors.Errorf("routes[%d] %s: unknown javascript target %q", i, r.Path, dep)
			}
		}
	}

	for _, dep := range m.Styles {
		if _, ok := m.JavascriptTargets[dep]; !ok {
			return errors.Errorf("styles: unknown javascript target %q", dep)
		}
	}

	return nil
}

// IsPrerendered reports whether the route is generated at build time.
func (r Route) IsPrerendered() bool {
	return r.Prerender == nil || *r.Prerender
}

func (m *SiteManifest) SiteURL() *url.URL {
	if m.Site == "" {
		return nil
	}
	u, _ := url.Parse(m.Site)
	return u
}
