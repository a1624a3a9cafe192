package cmd

import (
	"fmt"

	"github.com/fulmenhq/crxprep/pkg/adapter"
	"github.com/fulmenhq/crxprep/pkg/exitcode"
	"github.com/fulmenhq/crxprep/pkg/logger"
	"github.com/fulmenhq/crxprep/pkg/sweep"
	"github.com/spf13/cobra"
)

func newScriptsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scripts [dir]",
		Short: "Move inline scripts out of every HTML file under dir",
		Long: `Scripts sweeps dir (default: the configured pages directory) and moves the
first eligible inline <script> of each HTML file into /script-<hash>.js.
Each rewritten page and extracted file is printed as "page<TAB>src".`,
		Args: cobra.MaximumNArgs(1),
		RunE: runScripts,
	}
	addScriptFlags(cmd)
	cmd.Flags().String("ignore-file", "", "Ignore file name in dir")
	cmd.Flags().Bool("audit-svg", true, "Warn about SVG files that embed scripts")
	return cmd
}

func runScripts(cmd *cobra.Command, args []string) error {
	loaded, dir, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg := loaded.Config
	if cmd.Flags().Changed("audit-svg") {
		cfg.Scripts.AuditSVG, _ = cmd.Flags().GetBool("audit-svg")
	}

	opts, err := adapter.OptionsFromConfig(cfg, dir, isNoOp(cmd))
	if err != nil {
		return withExit(exitcode.ConfigError, err)
	}

	root := resolveIn(dir, cfg.Pages)
	if len(args) == 1 {
		root = resolveIn(dir, args[0])
	}

	log := commandLogger("scripts")
	summary, err := sweep.New(root, opts.Scripts, log).Sweep(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, s := range summary.Scripts {
		fmt.Fprintf(out, "%s\t%s\n", s.Page, s.Src)
	}
	log.Info("sweep finished", logger.Int("files", summary.Files), logger.Int("extracted", summary.Extracted),
		logger.Int("skipped", summary.Skipped), logger.Int("failed", len(summary.Failed)))
	return nil
}
