package cmd

import (
	"os"
	"path/filepath"

	"github.com/ZacxDev/sitegen/bundle"
	"github.com/ZacxDev/sitegen/config"
	"github.com/ZacxDev/sitegen/generate"
	"github.com/ZacxDev/sitegen/handlers"
	"github.com/ZacxDev/sitegen/utils"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var metricsFile string

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a static version of the site",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		root := filepath.Dir(configFile)

		site, err := handlers.LoadSite(cfg, root, logger)
		if err != nil {
			return errors.Wrap(err, "loading site")
		}

		outDir := filepath.Join(root, cfg.OutDir)
		if err := os.MkdirAll(outDir, os.ModePerm); err != nil {
			return errors.Wrap(err, "creating output directory")
		}

		copied, err := copyStatic(root, cfg.StaticDir, outDir)
		if err != nil {
			return errors.Wrap(err, "copying static files")
		}

		internals := generate.NewBuildInternals()
		bundled, err := bundle.Compile(ctx, bundle.Options{
			Root:    root,
			OutDir:  cfg.OutDir,
			Targets: cfg.JavascriptTargets,
			Groups:  site.HoistedGroups(),
			Logger:  logger,
		}, internals)
		if err != nil {
			return err
		}
		if err := site.PopulateBuildInternals(internals); err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		g, err := generate.New(generate.Options{
			Manifest:       site.Routes,
			Modules:        site.Modules,
			Internals:      internals,
			Renderers:      site.Renderers(),
			OutDir:         outDir,
			Site:           cfg.SiteURL(),
			Base:           cfg.Base,
			TrailingSlash:  generate.TrailingSlash(cfg.TrailingSlash),
			Format:         generate.BuildFormat(cfg.Build.Format),
			Drafts:         cfg.Drafts,
			Redirects:      *cfg.Build.Redirects,
			RedirectPolicy: generate.SameSiteRedirects(cfg.SiteURL(), cfg.Redirects.AllowExternal),
			Prune:          cfg.Prune,
			Preserve:       append(copied, bundled...),
			Hooks: []generate.BuildGeneratedHook{
				&utils.SitemapIntegration{Origin: cfg.Site, Base: cfg.Base, Logger: logger},
			},
			Logger:   logger,
			Recorder: generate.NewPrometheusRecorder(reg),
		})
		if err != nil {
			return err
		}

		res, err := g.Generate(ctx)
		if err != nil {
			return err
		}

		if metricsFile != "" {
			if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
				return errors.Wrap(err, "writing metrics")
			}
		}

		logger.Info("static site generated", "build_id", res.BuildID, "pages", len(res.PageNames), "out_dir", outDir, "duration", res.Duration)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write build metrics in Prometheus text format to this file")
}

// copyStatic mirrors root/staticDir into outDir/staticDir and returns the
// copied files relative to outDir.
func copyStatic(root, staticDir, outDir string) ([]string, error) {
	src := filepath.Join(root, staticDir)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil, nil
	}

	var copied []string
	err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		destPath := filepath.Join(outDir, rel)
		if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
			return err
		}
		logger.Debug("copying static file", "file", rel)
		if err := copyFile(path, destPath); err != nil {
			return err
		}
		copied = append(copied, filepath.ToSlash(rel))
		return nil
	})
	return copied, err
}

func copyFile(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	err = os.WriteFile(dst, input, 0644)
	if err != nil {
		return err
	}

	return nil
}
