package bundle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZacxDev/sitegen/config"
	"github.com/ZacxDev/sitegen/generate"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Options configures one bundling pass.
type Options struct {
	// Root is the directory target sources are resolved against.
	Root string
	// OutDir is the build output directory, relative to Root. Each target
	// is written to OutDir/<target out_dir>.
	OutDir  string
	Targets map[string]config.JavascriptTarget
	// Groups are dependency lists combined into one hoisted entry each.
	Groups [][]string
	Logger *slog.Logger
}

type entry struct {
	specifier string
	file      string
	// written lists every file emitted for the entry, relative to OutDir.
	written []string
}

// HoistedEntryName is the entry specifier of the script hoisted for a page
// depending on deps.
func HoistedEntryName(deps []string) string {
	if len(deps) == 1 {
		return deps[0]
	}
	return "hoisted_" + strings.Join(deps, "_")
}

// Compile bundles every target and every group with esbuild, writes the
// content-hashed output and records each entry's public path in internals.
// It returns the files written, source maps included, relative to OutDir.
func Compile(ctx context.Context, opts Options, internals *generate.BuildInternals) ([]string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	names := make([]string, 0, len(opts.Targets))
	for name := range opts.Targets {
		names = append(names, name)
	}

	results := make([]entry, len(names)+len(opts.Groups))
	g, ctx := errgroup.WithContext(ctx)

	for i, name := range names {
		i, name, target := i, name, opts.Targets[name]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			file, written, err := compileEntry(opts, name, target.OutDir, "", api.BuildOptions{
				EntryPoints: []string{filepath.Join(opts.Root, target.Source)},
			})
			if err != nil {
				return err
			}
			logger.Debug("bundled target", "component", name, "file", file)
			results[i] = entry{specifier: name, file: file, written: written}
			return nil
		})
	}

	for i, deps := range opts.Groups {
		i, deps := len(names)+i, deps
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			name := HoistedEntryName(deps)
			stdin, outDir, err := groupEntry(opts, deps)
			if err != nil {
				return errors.Wrapf(err, "bundling %s", name)
			}
			file, written, err := compileEntry(opts, name, outDir, name, api.BuildOptions{Stdin: stdin})
			if err != nil {
				return err
			}
			logger.Debug("bundled hoisted script", "component", name, "file", file)
			results[i] = entry{specifier: name, file: file, written: written}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var written []string
	for _, e := range results {
		internals.EntrySpecifierToBundle[e.specifier] = e.file
		written = append(written, e.written...)
	}
	sort.Strings(written)
	return written, nil
}

func groupEntry(opts Options, deps []string) (*api.StdinOptions, string, error) {
	var src strings.Builder
	var outDir string
	for _, dep := range deps {
		target, ok := opts.Targets[dep]
		if !ok {
			return nil, "", errors.Errorf("unknown javascript target %q", dep)
		}
		if outDir == "" {
			outDir = target.OutDir
		}
		fmt.Fprintf(&src, "import %q;\n", "./"+filepath.ToSlash(target.Source))
	}

	return &api.StdinOptions{
		Contents:   src.String(),
		ResolveDir: opts.Root,
		Sourcefile: "hoisted.js",
		Loader:     api.LoaderJS,
	}, outDir, nil
}

// compileEntry runs esbuild and writes every output file as name_hash.ext.
// Source maps are named after the file they belong to. It returns the public
// path of the bundled entry relative to the site base and the files written.
func compileEntry(opts Options, name, outDir, stem string, build api.BuildOptions) (string, []string, error) {
	dir := filepath.Join(opts.Root, opts.OutDir, outDir)

	build.Bundle = true
	build.MinifyWhitespace = true
	build.MinifyIdentifiers = true
	build.MinifySyntax = true
	build.Engines = []api.Engine{
		{Name: api.EngineChrome, Version: "100"},
		{Name: api.EngineFirefox, Version: "100"},
		{Name: api.EngineSafari, Version: "15"},
		{Name: api.EngineEdge, Version: "100"},
	}
	build.Sourcemap = api.SourceMapExternal
	build.Write = false
	build.Outdir = dir

	result := api.Build(build)
	if len(result.Errors) > 0 {
		msg := result.Errors[0].Text
		if loc := result.Errors[0].Location; loc != nil {
			msg = fmt.Sprintf("%s:%d: %s", loc.File, loc.Line, msg)
		}
		return "", nil, errors.Errorf("bundling %s: %s", name, msg)
	}

	// Separate files with and without .map extension
	var regularFiles []api.OutputFile
	var mapFiles []api.OutputFile

	for _, out := range result.OutputFiles {
		if strings.EqualFold(filepath.Ext(out.Path), ".map") {
			mapFiles = append(mapFiles, out)
		} else {
			regularFiles = append(regularFiles, out)
		}
	}

	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", nil, errors.WithStack(err)
	}

	srcToHash := make(map[string]string)
	var publicPath string
	var written []string

	for _, out := range append(regularFiles, mapFiles...) {
		base := filepath.Base(out.Path)
		ext := base[strings.Index(base, "."):]
		isMap := strings.HasSuffix(ext, ".map")
		fileNameWithoutExt := base[:len(base)-len(ext)]
		key := strings.TrimSuffix(ext, ".map")

		var hashForFileName string
		if isMap {
			hashForFileName = srcToHash[fileNameWithoutExt+key]
			if hashForFileName == "" {
				return "", nil, errors.Errorf("source map %s can not find hash for its source file", base)
			}
		} else {
			hashForFileName = strings.ReplaceAll(out.Hash, "/", "")
			srcToHash[fileNameWithoutExt+key] = hashForFileName
		}

		if stem != "" {
			fileNameWithoutExt = stem
		}
		fileName := fmt.Sprintf("%s_%s%s", fileNameWithoutExt, hashForFileName, ext)

		contents := out.Contents
		if !isMap {
			contents = append(append([]byte{}, contents...), sourceMappingComment(fileName, ext)...)
		}

		if err := writeFile(filepath.Join(dir, fileName), contents); err != nil {
			return "", nil, err
		}
		written = append(written, path.Join(filepath.ToSlash(outDir), fileName))

		if !isMap && publicPath == "" {
			publicPath = path.Join("/", filepath.ToSlash(outDir), fileName)
		}
	}

	if publicPath == "" {
		return "", nil, errors.Errorf("bundling %s: esbuild produced no output", name)
	}
	return publicPath, written, nil
}

func sourceMappingComment(fileName, ext string) string {
	if ext == ".css" {
		return fmt.Sprintf("/*# sourceMappingURL=%s.map */", fileName)
	}
	return fmt.Sprintf("//# sourceMappingURL=%s.map", fileName)
}

func writeFile(name string, contents []byte) error {
	// Open the file, create if it doesn't exist, truncate if it does
	file, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.WithStack(err)
	}

	if _, err := file.Write(contents); err != nil {
		file.Close()
		return errors.WithStack(err)
	}

	return errors.WithStack(file.Close())
}
