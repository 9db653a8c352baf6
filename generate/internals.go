package generate

import (
	"path"
	"sort"

	"github.com/ZacxDev/sitegen/routes"
)

type AssetType string

const (
	AssetInline   AssetType = "inline"
	AssetExternal AssetType = "external"
)

// Stylesheet is either inline CSS (Content) or a link to a bundled file (Src).
type Stylesheet struct {
	Type    AssetType
	Content string
	Src     string
}

// StylesheetRef places a stylesheet in the cascade. Order -1 and Depth -1
// mean unknown.
type StylesheetRef struct {
	Depth int
	Order int
	Sheet Stylesheet
}

// Script is a hoisted script. For external scripts Value is the entry
// specifier until it is resolved against the bundle, then the public URL.
type Script struct {
	Type  AssetType
	Value string
}

// Renderer is a component renderer available to pages.
type Renderer struct {
	Name             string
	ClientEntrypoint string
}

// PageBuildData is the bundling metadata of one page.
type PageBuildData struct {
	Component     string
	Route         *routes.Route
	Styles        []StylesheetRef
	HoistedScript *Script
}

// BuildInternals is what the bundling phase hands to generation. It is read
// only once generation starts.
type BuildInternals struct {
	Pages                  map[string]*PageBuildData
	EntrySpecifierToBundle map[string]string
}

func NewBuildInternals() *BuildInternals {
	return &BuildInternals{
		Pages:                  make(map[string]*PageBuildData),
		EntrySpecifierToBundle: make(map[string]string),
	}
}

// EntryFile resolves a source specifier to its bundled public path.
func (in *BuildInternals) EntryFile(specifier string) (string, error) {
	if in != nil {
		if file, ok := in.EntrySpecifierToBundle[specifier]; ok {
			return file, nil
		}
	}
	return "", &MissingBundleEntryError{Specifier: specifier}
}

// PageData returns the build data for route, or an empty record when the
// bundler produced none.
func (in *BuildInternals) PageData(route *routes.Route) *PageBuildData {
	if in != nil {
		if pd, ok := in.Pages[route.Component]; ok {
			if pd.Route == nil {
				pd.Route = route
			}
			return pd
		}
	}
	return &PageBuildData{Component: route.Component, Route: route}
}

// GenerationOptions is assembled once per page and shared by all its paths.
type GenerationOptions struct {
	PageData  *PageBuildData
	Scripts   []Script
	Styles    []Stylesheet
	Module    Module
	Renderers []Renderer
}

func (o *GenerationOptions) Route() *routes.Route {
	return o.PageData.Route
}

func (in *BuildInternals) generationOptions(pd *PageBuildData, module Module, renderers []Renderer, base string) (*GenerationOptions, error) {
	opts := &GenerationOptions{
		PageData: pd,
		Styles:   SortStyles(pd.Styles),
		Module:   module,
	}

	if s := pd.HoistedScript; s != nil {
		script := *s
		if script.Type == AssetExternal {
			file, err := in.EntryFile(script.Value)
			if err != nil {
				return nil, err
			}
			script.Value = joinBase(base, file)
		}
		opts.Scripts = append(opts.Scripts, script)
	}

	for _, r := range renderers {
		if r.ClientEntrypoint != "" {
			file, err := in.EntryFile(r.ClientEntrypoint)
			if err != nil {
				return nil, err
			}
			r.ClientEntrypoint = joinBase(base, file)
		}
		opts.Renderers = append(opts.Renderers, r)
	}

	return opts, nil
}

// SortStyles orders stylesheets for cascade correctness and merges runs of
// inline sheets into one.
func SortStyles(refs []StylesheetRef) []Stylesheet {
	sorted := make([]StylesheetRef, len(refs))
	copy(sorted, refs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return cssLess(sorted[i], sorted[j])
	})

	var out []Stylesheet
	for _, ref := range sorted {
		if n := len(out); n > 0 && out[n-1].Type == AssetInline && ref.Sheet.Type == AssetInline {
			out[n-1].Content += ref.Sheet.Content
			continue
		}
		out = append(out, ref.Sheet)
	}
	return out
}

func cssLess(a, b StylesheetRef) bool {
	switch {
	case a.Order == -1 && b.Order >= 0:
		return false
	case b.Order == -1 && a.Order >= 0:
		return true
	case a.Order != b.Order:
		return a.Order < b.Order
	case a.Depth == b.Depth:
		return false
	case a.Depth == -1:
		return true
	case b.Depth == -1:
		return false
	default:
		return a.Depth > b.Depth
	}
}

func joinBase(base, file string) string {
	if base == "" {
		base = "/"
	}
	return path.Join(base, file)
}
