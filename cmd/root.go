/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fulmenhq/crxprep/internal/ops"
	"github.com/fulmenhq/crxprep/pkg/adapter"
	"github.com/fulmenhq/crxprep/pkg/buildinfo"
	"github.com/fulmenhq/crxprep/pkg/config"
	"github.com/fulmenhq/crxprep/pkg/exitcode"
	"github.com/fulmenhq/crxprep/pkg/logger"
	"github.com/fulmenhq/crxprep/pkg/manifest"
	"github.com/spf13/cobra"
)

// newRootCommand creates a fresh root command instance.
// This factory pattern allows tests to create isolated command trees without shared state.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crxprep",
		Short: "Prepare a static site build for packaging as a browser extension",
		Long: `crxprep post-processes a statically exported site so it satisfies browser
extension content security policy: inline scripts move to content-addressed
files, builder-generated manifests are replaced by the extension manifest,
and assets can be precompressed.

Examples:
   crxprep adapt                      # Run the full pipeline from crxprep.yaml
   crxprep adapt --report text        # Same, with a run summary
   crxprep scripts build              # Extract inline scripts only
   crxprep compress build --formats br
   crxprep hash 'console.log(1)'      # Print a script's content hash`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			initializeLogger(cmd)
		},
	}

	// Add global flags
	cmd.PersistentFlags().String("log-level", "info", "Set log level (trace|debug|minor|info|warn|error)")
	cmd.PersistentFlags().Bool("json", false, "Output logs in JSON format")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	cmd.PersistentFlags().Bool("no-op", false, "Plan and log every phase without writing files")
	cmd.PersistentFlags().String("config", "", "Config file (default crxprep.{yaml,json,toml} in the project directory)")
	cmd.PersistentFlags().StringP("project", "C", ".", "Project directory")

	cmd.Version = buildinfo.BinaryVersion
	cmd.SetVersionTemplate("crxprep {{.Version}}\n")

	return cmd
}

// registerSubcommands adds all subcommands to the root command and wires the
// grouped help. This is called from init() for production and can be called
// explicitly in tests.
func registerSubcommands(cmd *cobra.Command) {
	reg := ops.NewRegistry()
	for _, sub := range []struct {
		group ops.CommandGroup
		cmd   *cobra.Command
	}{
		{ops.GroupPipeline, newAdaptCommand()},
		{ops.GroupPhase, newScriptsCommand()},
		{ops.GroupPhase, newManifestCommand()},
		{ops.GroupPhase, newCompressCommand()},
		{ops.GroupSupport, newHashCommand()},
		{ops.GroupSupport, newConfigCommand()},
		{ops.GroupSupport, newVersionCommand()},
	} {
		cmd.AddCommand(sub.cmd)
		if err := reg.Register(sub.group, sub.cmd); err != nil {
			panic(err)
		}
	}
	cmd.SetHelpFunc(ops.GroupedHelp(cmd, reg))
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCommand()

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		code := exitCodeFor(err)
		logger.Error("Command execution failed", logger.Err(err), logger.String("exit", exitcode.String(code)))
		os.Exit(code)
	}
}

func init() {
	// Register all subcommands with the production rootCmd
	registerSubcommands(rootCmd)
}

// initializeLogger sets up the logger based on command flags
func initializeLogger(cmd *cobra.Command) {
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	jsonLogs, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")
	noOp, _ := cmd.Flags().GetBool("no-op")

	config := logger.Config{
		Level:     logger.ParseLevel(logLevelStr),
		UseColor:  !noColor,
		JSON:      jsonLogs,
		Component: "crxprep",
		NoOp:      noOp,
	}

	if err := logger.Initialize(config); err != nil {
		// Fallback to stderr
		_, _ = os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(exitcode.ConfigError)
	}
}

// exitError pins the exit status for an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func withExit(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// exitCodeFor maps a command error to the process exit status.
func exitCodeFor(err error) int {
	if err == nil {
		return exitcode.Success
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if adapter.IsCancelled(err) {
		return exitcode.Cancelled
	}
	if errors.Is(err, manifest.ErrManifestNotFound) {
		return exitcode.ManifestMissing
	}
	var pe *adapter.PhaseError
	if errors.As(err, &pe) && pe.Phase == adapter.PhaseBuild {
		return exitcode.BuilderError
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return exitcode.FileSystemError
	}
	return exitcode.GeneralError
}

// loadConfig resolves configuration for cmd, honoring --config, --project
// and any command flags listed in config.FlagKeys.
func loadConfig(cmd *cobra.Command) (*config.Loaded, string, error) {
	dir, err := projectDir(cmd)
	if err != nil {
		return nil, "", withExit(exitcode.FileSystemError, err)
	}
	file, _ := cmd.Flags().GetString("config")
	loaded, err := config.Load(config.LoadOptions{File: file, Dir: dir, Flags: cmd.Flags()})
	if err != nil {
		return nil, "", withExit(exitcode.ConfigError, err)
	}
	if loaded.File != "" {
		logger.Debug("loaded config", logger.String("file", loaded.File))
	}
	return loaded, dir, nil
}

func projectDir(cmd *cobra.Command) (string, error) {
	dir, _ := cmd.Flags().GetString("project")
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", &fs.PathError{Op: "open", Path: abs, Err: errors.New("not a directory")}
	}
	return abs, nil
}

// resolveIn joins p onto dir unless p is absolute.
func resolveIn(dir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}

func commandLogger(component string) *logger.Logger {
	return logger.Default().WithComponent(component)
}

func isNoOp(cmd *cobra.Command) bool {
	noOp, _ := cmd.Flags().GetBool("no-op")
	return noOp
}
