package cmd

import (
	"github.com/fulmenhq/crxprep/pkg/logger"
	"github.com/fulmenhq/crxprep/pkg/manifest"
	"github.com/spf13/cobra"
)

func newManifestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest [assets-dir]",
		Short: "Replace generated manifests with the extension manifest",
		Long: `Manifest deletes every file under assets-dir matching the generated-manifest
globs, then copies the extension manifest (from the builder's static
directory, else its client directory, unless --source is given) to
assets-dir.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runManifest,
	}
	f := cmd.Flags()
	f.String("source", "", "Extension manifest to copy")
	f.String("manifest", "", "Extension manifest file name (default manifest.json)")
	f.String("app-dir", "", "Builder application directory (default _app)")
	f.Bool("require-manifest", false, "Fail when the extension manifest is missing")
	f.Bool("strip-comments", false, "Strip comments from a JSONC extension manifest")
	return cmd
}

func runManifest(cmd *cobra.Command, args []string) error {
	loaded, dir, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg := loaded.Config

	assets := resolveIn(dir, cfg.AssetsDir())
	if len(args) == 1 {
		assets = resolveIn(dir, args[0])
	}

	source, _ := cmd.Flags().GetString("source")
	if source != "" {
		source = resolveIn(dir, source)
	} else {
		source = manifest.ResolveSource(optionalIn(dir, cfg.Source.Static), optionalIn(dir, cfg.Source.Client), cfg.Manifest)
	}

	log := commandLogger("manifest")
	relocator := manifest.New(manifest.Options{
		AppDir:        cfg.AppDir,
		FileName:      cfg.Manifest,
		Required:      cfg.Manifests.Required,
		StripComments: cfg.Manifests.StripComments,
		DryRun:        isNoOp(cmd),
	}, log)

	result, err := relocator.Relocate(assets, cfg.Manifests.Generated, source)
	if err != nil {
		return err
	}
	log.Info("manifest relocation finished", logger.Int("removed", len(result.Removed)-result.Failed()),
		logger.Int("failed", result.Failed()), logger.Bool("copied", result.Copied))
	return nil
}

// optionalIn is resolveIn that keeps an unset directory unset.
func optionalIn(dir, p string) string {
	if p == "" {
		return ""
	}
	return resolveIn(dir, p)
}
