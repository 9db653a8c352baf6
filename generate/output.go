package generate

import (
	"bytes"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ZacxDev/sitegen/routes"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

type TrailingSlash string

const (
	TrailingSlashAlways TrailingSlash = "always"
	TrailingSlashNever  TrailingSlash = "never"
	TrailingSlashIgnore TrailingSlash = "ignore"
)

type BuildFormat string

const (
	FormatDirectory BuildFormat = "directory"
	FormatFile      BuildFormat = "file"
)

// ShouldAppendTrailingSlash reports whether page URLs end in a slash.
func ShouldAppendTrailingSlash(ts TrailingSlash, format BuildFormat) bool {
	switch ts {
	case TrailingSlashAlways:
		return true
	case TrailingSlashNever:
		return false
	default:
		return format == FormatDirectory
	}
}

// Status pages at the site root are written as 404.html rather than
// 404/index.html and never take a trailing slash. /posts/404 is an ordinary page.
var statusCodePages = map[string]bool{"404": true, "500": true}

// ErrOutsideOutDir is returned when a location resolves outside OutDir, for
// example from a spread param holding "..".
var ErrOutsideOutDir = errors.New("output file is outside the output directory")

// Location is where a generated path is served from and written to.
type Location struct {
	URL  string
	File string
}

// Writer places rendered bodies under OutDir.
type Writer struct {
	OutDir        string
	Base          string
	TrailingSlash TrailingSlash
	Format        BuildFormat

	written   map[string]struct{}
	preserved map[string]struct{}
}

func NewWriter(outDir, base string, ts TrailingSlash, format BuildFormat) *Writer {
	if base == "" {
		base = "/"
	}
	return &Writer{
		OutDir:        outDir,
		Base:          base,
		TrailingSlash: ts,
		Format:        format,
		written:       make(map[string]struct{}),
		preserved:     make(map[string]struct{}),
	}
}

// Locate computes the URL and output file for pathname.
func (w *Writer) Locate(pathname string, typ routes.RouteType) Location {
	rel := strings.Trim(pathname, "/")
	if rel == "" {
		return Location{URL: w.Base, File: filepath.Join(w.OutDir, "index.html")}
	}

	url := path.Join(w.Base, rel)
	if typ == routes.RouteTypeEndpoint {
		return Location{URL: url, File: filepath.Join(w.OutDir, filepath.FromSlash(rel))}
	}

	switch w.Format {
	case FormatFile:
		return Location{
			URL:  url + ".html",
			File: filepath.Join(w.OutDir, filepath.FromSlash(rel)+".html"),
		}
	default:
		if statusCodePages[rel] {
			return Location{URL: url, File: filepath.Join(w.OutDir, rel+".html")}
		}
		if w.TrailingSlash != TrailingSlashNever {
			url += "/"
		}
		return Location{URL: url, File: filepath.Join(w.OutDir, filepath.FromSlash(rel), "index.html")}
	}
}

// PageName is the report name of pathname: no leading slash, trailing slash
// per policy.
func (w *Writer) PageName(pathname string) string {
	name := pathname
	if statusCodePages[strings.Trim(name, "/")] {
		return strings.Trim(name, "/")
	}
	if ShouldAppendTrailingSlash(w.TrailingSlash, w.Format) {
		name = strings.TrimSuffix(name, "/") + "/"
	}
	return strings.TrimPrefix(name, "/")
}

// Write persists body at loc, creating parent directories. Text bodies have
// invalid UTF-8 sequences replaced so the file is valid in its declared
// charset; binary bodies are written byte for byte.
func (w *Writer) Write(loc Location, body []byte, enc Encoding) error {
	rel, err := filepath.Rel(w.OutDir, loc.File)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errors.Wrap(ErrOutsideOutDir, loc.File)
	}

	if enc == EncodingUTF8 {
		body = bytes.ToValidUTF8(body, []byte("\uFFFD"))
	}

	if err := os.MkdirAll(filepath.Dir(loc.File), os.ModePerm); err != nil {
		return errors.Wrapf(err, "creating directory for %s", loc.File)
	}
	if err := os.WriteFile(loc.File, body, 0644); err != nil {
		return errors.Wrapf(err, "writing %s", loc.File)
	}

	w.written[filepath.ToSlash(rel)] = struct{}{}
	return nil
}

// Preserve marks files, relative to OutDir, that other build steps produced
// so Prune leaves them alone.
func (w *Writer) Preserve(files ...string) {
	for _, f := range files {
		w.preserved[path.Clean(filepath.ToSlash(f))] = struct{}{}
	}
}

// Written lists the files written so far, relative to OutDir.
func (w *Writer) Written() []string {
	files := make([]string, 0, len(w.written))
	for f := range w.written {
		files = append(files, f)
	}
	return files
}

// Prune removes files under OutDir matching any of patterns that were neither
// written nor preserved by this build. Files that vanish underneath it are ignored.
func (w *Writer) Prune(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	var removed []string
	err := filepath.WalkDir(w.OutDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(w.OutDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if _, ok := w.written[rel]; ok {
			return nil
		}
		if _, ok := w.preserved[rel]; ok {
			return nil
		}

		for _, pattern := range patterns {
			match, err := doublestar.Match(pattern, rel)
			if err != nil {
				return errors.Wrapf(err, "prune pattern %q", pattern)
			}
			if !match {
				continue
			}
			if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return errors.Wrapf(err, "removing stale %s", p)
			}
			removed = append(removed, rel)
			break
		}
		return nil
	})

	return removed, err
}
