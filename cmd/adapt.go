package cmd

import (
	"fmt"

	"github.com/fulmenhq/crxprep/pkg/adapter"
	"github.com/fulmenhq/crxprep/pkg/config"
	"github.com/fulmenhq/crxprep/pkg/exitcode"
	"github.com/fulmenhq/crxprep/pkg/logger"
	"github.com/fulmenhq/crxprep/pkg/sitebuilder"
	"github.com/spf13/cobra"
)

func newAdaptCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adapt",
		Short: "Run the full pipeline over the site builder output",
		Long: `Adapt copies the builder's static, client and prerendered output into the
pages and assets directories, moves the first inline script of every HTML
page into a content-addressed file, replaces generated manifests with the
extension manifest and, with --precompress, writes .gz/.br siblings.`,
		Args: cobra.NoArgs,
		RunE: runAdapt,
	}

	f := cmd.Flags()
	f.String("pages", "", "Pages output directory (default build)")
	f.String("assets", "", "Assets output directory (default: pages)")
	f.String("fallback", "", "SPA fallback page, relative to pages")
	f.String("manifest", "", "Extension manifest file name (default manifest.json)")
	f.Bool("precompress", false, "Write precompressed siblings after processing")
	f.Bool("empty-out-dir", true, "Empty the output directories first")
	f.String("app-dir", "", "Builder application directory (default _app)")
	f.String("ignore-file", "", "Ignore file name in each output root")
	addScriptFlags(cmd)
	f.Bool("require-manifest", false, "Fail when the extension manifest is missing")
	f.Bool("strip-comments", false, "Strip comments from a JSONC extension manifest")
	f.StringSlice("formats", nil, "Precompression formats (gz, br, zst)")
	f.StringSlice("extensions", nil, "File extensions to precompress")
	f.String("report", "", "Print a run report (text|json|yaml)")

	return cmd
}

func addScriptFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("script-type", "", `Only extract script[type="..."] elements`)
	f.Bool("skip-external", false, "Extract the first inline script even after external ones")
	f.String("placement", "", "Where extracted scripts live (root|sibling)")
	f.Int("concurrency", 0, "Worker count for the script sweep (0 = CPUs)")
}

func runAdapt(cmd *cobra.Command, _ []string) error {
	loaded, dir, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg := loaded.Config

	reportFormat, _ := cmd.Flags().GetString("report")
	switch reportFormat {
	case "", adapter.FormatText, adapter.FormatJSON, adapter.FormatYAML:
	default:
		return withExit(exitcode.ConfigError, fmt.Errorf("unknown report format %q (want text, json or yaml)", reportFormat))
	}

	log := commandLogger("adapt")
	tree, err := sitebuilder.NewOSTree(dir, treeOptions(cfg), log)
	if err != nil {
		return withExit(exitcode.FileSystemError, err)
	}

	opts, err := adapter.OptionsFromConfig(cfg, dir, isNoOp(cmd))
	if err != nil {
		return withExit(exitcode.ConfigError, err)
	}

	report, runErr := adapter.New(opts).Adapt(cmd.Context(), tree)
	if reportFormat != "" {
		if err := report.Render(cmd.OutOrStdout(), reportFormat); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}

	if n := len(report.Failures); n > 0 {
		log.Warn("adapt finished with per-file problems", logger.Int("failures", n))
	} else {
		log.Success("adapt finished", logger.Int("extracted", report.Extracted()),
			logger.Duration("duration", report.Duration))
	}
	return nil
}

func treeOptions(cfg *config.Config) sitebuilder.TreeOptions {
	return sitebuilder.TreeOptions{
		StaticDir:        cfg.Source.Static,
		ClientDir:        cfg.Source.Client,
		PrerenderedDir:   cfg.Source.Prerendered,
		AppDir:           cfg.AppDir,
		FallbackTemplate: cfg.Source.FallbackTemplate,
		Title:            cfg.Source.Title,
		Lang:             cfg.Source.Lang,
		Entry:            cfg.Source.Entry,
	}
}
