// Package adapter runs the full post-processing pipeline over a site
// builder's output: build, script extraction, manifest relocation and
// precompression, strictly in that order.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fulmenhq/crxprep/pkg/compress"
	"github.com/fulmenhq/crxprep/pkg/config"
	"github.com/fulmenhq/crxprep/pkg/inlinescript"
	"github.com/fulmenhq/crxprep/pkg/logger"
	"github.com/fulmenhq/crxprep/pkg/manifest"
	"github.com/fulmenhq/crxprep/pkg/sitebuilder"
	"github.com/fulmenhq/crxprep/pkg/sweep"
)

// Phase names, in run order.
const (
	PhaseBuild    = "build"
	PhaseScripts  = "scripts"
	PhaseManifest = "manifest"
	PhaseCompress = "compress"
)

// PhaseError is a fatal failure that stopped the run.
type PhaseError struct {
	Phase string
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s phase: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// Options configures an Adapter. Pages and Assets are resolved against
// ProjectDir when relative.
type Options struct {
	ProjectDir  string
	Pages       string
	Assets      string
	Fallback    string
	Manifest    string
	Precompress bool
	EmptyOutDir bool
	DryRun      bool

	Scripts   sweep.Options
	Generated []string
	Relocate  manifest.Options
	Compress  compress.Options
}

// OptionsFromConfig translates a loaded configuration into adapter options.
func OptionsFromConfig(cfg *config.Config, projectDir string, dryRun bool) (Options, error) {
	placement, err := inlinescript.ParsePlacement(cfg.Scripts.Placement)
	if err != nil {
		return Options{}, err
	}
	formats, err := compress.ParseFormats(cfg.Compress.Formats)
	if err != nil {
		return Options{}, err
	}

	return Options{
		ProjectDir:  projectDir,
		Pages:       cfg.Pages,
		Assets:      cfg.AssetsDir(),
		Fallback:    cfg.Fallback,
		Manifest:    cfg.Manifest,
		Precompress: cfg.Precompress,
		EmptyOutDir: cfg.EmptyOutDir,
		DryRun:      dryRun,
		Scripts: sweep.Options{
			Policy: inlinescript.Policy{
				Type:         cfg.Scripts.Type,
				SkipExternal: cfg.Scripts.SkipExternal,
				Placement:    placement,
			},
			Concurrency:    cfg.Scripts.Concurrency,
			DryRun:         dryRun,
			AuditSVG:       cfg.Scripts.AuditSVG,
			IgnoreFile:     cfg.IgnoreFile,
			IgnorePatterns: cfg.Ignore,
		},
		Generated: cfg.Manifests.Generated,
		Relocate: manifest.Options{
			AppDir:        cfg.AppDir,
			FileName:      cfg.Manifest,
			Required:      cfg.Manifests.Required,
			StripComments: cfg.Manifests.StripComments,
			DryRun:        dryRun,
		},
		Compress: compress.Options{
			Extensions:     cfg.Compress.Extensions,
			Formats:        formats,
			Concurrency:    cfg.Compress.Concurrency,
			DryRun:         dryRun,
			IgnoreFile:     cfg.IgnoreFile,
			IgnorePatterns: cfg.Ignore,
		},
	}, nil
}

// Adapter runs the pipeline.
type Adapter struct {
	opts Options
}

// New creates an Adapter.
func New(opts Options) *Adapter {
	if opts.Pages == "" {
		opts.Pages = "build"
	}
	if opts.Assets == "" {
		opts.Assets = opts.Pages
	}
	if opts.Manifest == "" {
		opts.Manifest = manifest.DefaultFileName
	}
	if len(opts.Generated) == 0 {
		opts.Generated = manifest.DefaultGenerated
	}
	opts.Scripts.DryRun = opts.DryRun
	opts.Relocate.DryRun = opts.DryRun
	opts.Compress.DryRun = opts.DryRun
	return &Adapter{opts: opts}
}

// PagesDir is the resolved pages directory.
func (a *Adapter) PagesDir() string { return a.resolve(a.opts.Pages) }

// AssetsDir is the resolved assets directory.
func (a *Adapter) AssetsDir() string { return a.resolve(a.opts.Assets) }

func (a *Adapter) resolve(p string) string {
	if filepath.IsAbs(p) || a.opts.ProjectDir == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(a.opts.ProjectDir, p)
}

// roots returns pages, plus assets when it is a different directory.
func (a *Adapter) roots() []string {
	pages, assets := a.PagesDir(), a.AssetsDir()
	if pages == assets {
		return []string{pages}
	}
	return []string{pages, assets}
}

// Adapt runs every phase against b. The returned Report is never nil; it
// covers the phases that ran even when a fatal error stops the run.
func (a *Adapter) Adapt(ctx context.Context, b sitebuilder.Builder) (*Report, error) {
	log := b.Log()
	if log == nil {
		log = logger.Nop()
	}
	report := newReport(a.opts.DryRun, a.PagesDir(), a.AssetsDir())
	defer report.finish()

	log.Info("adapting build output", logger.String("run", report.RunID),
		logger.String("pages", a.PagesDir()), logger.String("assets", a.AssetsDir()))

	if err := a.build(ctx, b, log, report); err != nil {
		return report, &PhaseError{Phase: PhaseBuild, Err: err}
	}

	for _, root := range a.roots() {
		if err := a.scripts(ctx, root, log, report); err != nil {
			return report, &PhaseError{Phase: PhaseScripts, Err: err}
		}
	}

	if err := a.relocate(ctx, b, log, report); err != nil {
		return report, &PhaseError{Phase: PhaseManifest, Err: err}
	}

	if !a.opts.Precompress {
		report.skip(PhaseCompress, "", "precompress disabled")
		return report, nil
	}
	for _, root := range a.roots() {
		if err := a.compress(ctx, root, log, report); err != nil {
			return report, &PhaseError{Phase: PhaseCompress, Err: err}
		}
	}
	return report, nil
}

func (a *Adapter) build(ctx context.Context, b sitebuilder.Builder, log *logger.Logger, report *Report) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.opts.DryRun {
		for _, dir := range a.roots() {
			log.Info("would write build output", logger.String("dir", dir))
		}
		report.skip(PhaseBuild, "", "dry run")
		return nil
	}

	if a.opts.EmptyOutDir {
		for _, dir := range a.roots() {
			if err := b.Rimraf(dir); err != nil {
				report.fail(PhaseBuild, dir, start, err)
				return fmt.Errorf("empty %s: %w", dir, err)
			}
		}
	}

	result := &BuildResult{Fallback: a.opts.Fallback}
	static, err := b.WriteStatic(a.AssetsDir())
	if err != nil {
		report.fail(PhaseBuild, a.AssetsDir(), start, err)
		return fmt.Errorf("write static: %w", err)
	}
	client, err := b.WriteClient(a.AssetsDir())
	if err != nil {
		report.fail(PhaseBuild, a.AssetsDir(), start, err)
		return fmt.Errorf("write client: %w", err)
	}
	pages, err := b.WritePrerendered(a.PagesDir(), sitebuilder.PrerenderOptions{Fallback: a.opts.Fallback})
	if err != nil {
		report.fail(PhaseBuild, a.PagesDir(), start, err)
		return fmt.Errorf("write prerendered: %w", err)
	}
	result.Static, result.Client, result.Pages = len(static), len(client), len(pages)
	report.Build = result

	report.add(PhaseReport{
		Name:      PhaseBuild,
		Status:    StatusOK,
		Files:     result.Static + result.Client + result.Pages,
		Processed: result.Static + result.Client + result.Pages,
		Duration:  time.Since(start),
	})
	log.Success("wrote build output", logger.Int("static", result.Static),
		logger.Int("client", result.Client), logger.Int("pages", result.Pages))
	return nil
}

func (a *Adapter) scripts(ctx context.Context, root string, log *logger.Logger, report *Report) error {
	if !dirExists(root) {
		log.Warn("nothing to sweep", logger.String("dir", root))
		report.skip(PhaseScripts, root, "directory absent")
		return nil
	}

	start := time.Now()
	log.Info("removing inline scripts", logger.String("dir", root))
	summary, err := sweep.New(root, a.opts.Scripts, log).Sweep(ctx)
	if summary == nil {
		report.fail(PhaseScripts, root, start, err)
		return err
	}
	report.addSweep(summary)
	return err
}

func (a *Adapter) relocate(ctx context.Context, b sitebuilder.Builder, log *logger.Logger, report *Report) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return err
	}

	opts := a.opts.Relocate
	if opts.AppDir == "" {
		opts.AppDir = b.AppDir()
	}
	opts.FileName = a.opts.Manifest
	opts.Copier = b
	relocator := manifest.New(opts, log)

	assets := a.AssetsDir()
	source := manifest.ResolveSource(b.StaticDir(), b.ClientDir(), a.opts.Manifest)
	log.Info("relocating extension manifest", logger.String("dir", assets))

	var (
		result *manifest.Result
		err    error
	)
	if dirExists(assets) {
		result, err = relocator.Relocate(assets, a.opts.Generated, source)
	} else {
		// Nothing generated to remove; the canonical copy creates the directory.
		result = &manifest.Result{Source: source, Target: filepath.Join(assets, a.opts.Manifest)}
		result.Copied, err = relocator.CopyCanonical(source, result.Target)
	}
	if result == nil {
		report.fail(PhaseManifest, assets, start, err)
		return err
	}
	report.addManifest(result, time.Since(start), err)
	return err
}

func (a *Adapter) compress(ctx context.Context, root string, log *logger.Logger, report *Report) error {
	if !dirExists(root) {
		report.skip(PhaseCompress, root, "directory absent")
		return nil
	}

	start := time.Now()
	log.Info("precompressing", logger.String("dir", root))
	summary, err := compress.New(a.opts.Compress, log).CompressTree(ctx, root)
	if summary == nil {
		report.fail(PhaseCompress, root, start, err)
		return err
	}
	report.addCompress(summary)
	return err
}

func dirExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// IsCancelled reports whether err stems from context cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
