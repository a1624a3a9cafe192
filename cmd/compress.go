package cmd

import (
	"github.com/fulmenhq/crxprep/pkg/adapter"
	"github.com/fulmenhq/crxprep/pkg/compress"
	"github.com/fulmenhq/crxprep/pkg/exitcode"
	"github.com/fulmenhq/crxprep/pkg/logger"
	"github.com/spf13/cobra"
)

func newCompressCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compress [dir]",
		Short: "Write precompressed siblings for every asset under dir",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCompress,
	}
	f := cmd.Flags()
	f.StringSlice("formats", nil, "Formats to write (gz, br, zst)")
	f.StringSlice("extensions", nil, "File extensions to compress")
	f.String("ignore-file", "", "Ignore file name in dir")
	f.Int("jobs", 0, "Parallel compression jobs (0 = CPUs)")
	return cmd
}

func runCompress(cmd *cobra.Command, args []string) error {
	loaded, dir, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg := loaded.Config
	if cmd.Flags().Changed("jobs") {
		cfg.Compress.Concurrency, _ = cmd.Flags().GetInt("jobs")
	}

	opts, err := adapter.OptionsFromConfig(cfg, dir, isNoOp(cmd))
	if err != nil {
		return withExit(exitcode.ConfigError, err)
	}

	root := resolveIn(dir, cfg.Pages)
	if len(args) == 1 {
		root = resolveIn(dir, args[0])
	}

	log := commandLogger("compress")
	summary, err := compress.New(opts.Compress, log).CompressTree(cmd.Context(), root)
	if err != nil {
		return err
	}
	log.Info("compression finished", logger.Int("files", summary.Files), logger.Int("outputs", summary.Outputs),
		logger.Int64("bytes_in", summary.BytesIn), logger.Int64("bytes_out", summary.BytesOut),
		logger.Int("failed", len(summary.Failed)))
	return nil
}
