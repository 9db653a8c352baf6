package utils

import (
	"context"
	"encoding/xml"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZacxDev/sitegen/generate"
	"github.com/pkg/errors"
)

type Sitemap struct {
	XMLName xml.Name `xml:"urlset"`
	Xmlns   string   `xml:"xmlns,attr"`
	Urls    []Url    `xml:"url"`
}

type Url struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

var statusPages = map[string]bool{"404": true, "500": true}

// GenerateSitemaps writes sitemap.xml for pages into outDir.
func GenerateSitemaps(outDir, origin, base string, pages []string) error {
	xmlOutput, err := SitemapContent(origin, base, pages, time.Now())
	if err != nil {
		return err
	}

	xmlFile, err := os.Create(filepath.Join(outDir, "sitemap.xml"))
	if err != nil {
		return errors.WithStack(err)
	}
	defer xmlFile.Close()

	if _, err := xmlFile.Write([]byte(xml.Header + xmlOutput)); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(xmlFile.Close())
}

// GenerateSitemapContent renders the sitemap of pages at the site root.
func GenerateSitemapContent(origin string, pages []string) (string, error) {
	return SitemapContent(origin, "/", pages, time.Now())
}

// SitemapContent renders the sitemap body. Page names are relative to base; a
// trailing slash on a name is kept in its URL. Status pages are left out.
func SitemapContent(origin, base string, pages []string, lastMod time.Time) (string, error) {
	baseURL := strings.TrimSuffix(origin, "/")
	sitemap := Sitemap{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
	}

	for _, page := range pages {
		if statusPages[strings.TrimSuffix(strings.Trim(page, "/"), ".html")] {
			continue
		}

		loc := path.Join("/", base, page)
		if strings.HasSuffix(page, "/") && loc != "/" {
			loc += "/"
		}
		sitemap.Urls = append(sitemap.Urls, Url{
			Loc:     baseURL + loc,
			LastMod: lastMod.Format("2006-01-02"),
		})
	}

	xmlOutput, err := xml.MarshalIndent(sitemap, "", "  ")
	if err != nil {
		return "", errors.WithStack(err)
	}

	return string(xmlOutput), nil
}

// SitemapIntegration writes sitemap.xml once every page has been generated.
type SitemapIntegration struct {
	Origin string
	Base   string
	Logger *slog.Logger
}

func (s *SitemapIntegration) Name() string {
	return "sitemap"
}

func (s *SitemapIntegration) BuildGenerated(ctx context.Context, req generate.BuildGeneratedRequest) error {
	if s.Origin == "" {
		if s.Logger != nil {
			s.Logger.Warn("skipping sitemap, no site origin configured", "build_id", req.BuildID)
		}
		return nil
	}

	if err := GenerateSitemaps(req.OutDir, s.Origin, s.Base, req.Pages); err != nil {
		return err
	}

	if s.Logger != nil {
		s.Logger.Info("generated sitemap", "file", filepath.Join(req.OutDir, "sitemap.xml"), "pages", len(req.Pages))
	}
	return nil
}
