package config

// config/yaml.go

type Partial struct {
	Source       string `yaml:"source"`
	TemplateType string `yaml:"template_type"`
}

type JavascriptTarget struct {
	Source string `yaml:"source"`
	OutDir string `yaml:"out_dir"`
}

type SiteManifest struct {
	Site               string                      `yaml:"site"`
	Base               string                      `yaml:"base"`
	OutDir             string                      `yaml:"out_dir"`
	StaticDir          string                      `yaml:"static_dir"`
	TrailingSlash      string                      `yaml:"trailing_slash"`
	Drafts             bool                        `yaml:"drafts"`
	Build              Build                       `yaml:"build"`
	Redirects          Redirects                   `yaml:"redirects"`
	Layout             string                      `yaml:"layout"`
	NotFoundPageSource string                      `yaml:"not_found_page_source"`
	Prune              []string                    `yaml:"prune"`
	Routes             []Route                     `yaml:"routes"`
	JavascriptTargets  map[string]JavascriptTarget `yaml:"javascript"`
	Styles             []string                    `yaml:"styles"`
	Translations       []Translation               `yaml:"translations"`
	Partials           map[string]Partial          `yaml:"partials"`
	SortRoutes         bool                        `yaml:"sort_routes"`
}

type Build struct {
	Format    string `yaml:"format"`
	Redirects *bool  `yaml:"redirects"`
}

type Redirects struct {
	AllowExternal bool `yaml:"allow_external"`
}

type Route struct {
	Path           string              `yaml:"path"`
	Type           string              `yaml:"type"`
	Source         string              `yaml:"source"`
	TemplateType   string              `yaml:"template_type"`
	Prerender      *bool               `yaml:"prerender"`
	Params         []map[string]string `yaml:"params"`
	Collection     string              `yaml:"collection"`
	PageSize       int                 `yaml:"page_size"`
	Redirect       string              `yaml:"redirect"`
	Status         int                 `yaml:"status"`
	JavascriptDeps []string            `yaml:"javascript_deps"`
	StyleDeps      []string            `yaml:"style_deps"`
	PartialDeps    []string            `yaml:"partial_deps"`
}

type Translation struct {
	Code       string `yaml:"code"`
	Source     string `yaml:"source"`
	SourceType string `yaml:"source_type"`
}
