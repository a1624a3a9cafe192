package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fulmenhq/crxprep/pkg/exitcode"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate crxprep configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
	show.Flags().String("format", "yaml", "Output format (yaml|json|toml)")

	validate := &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a config file against the schema",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigValidate,
	}

	cmd.AddCommand(show, validate)
	return cmd
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	loaded, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")

	var out []byte
	switch format {
	case "yaml", "yml":
		out, err = yaml.Marshal(loaded.Config)
	case "json":
		out, err = json.MarshalIndent(loaded.Config, "", "  ")
		out = append(out, '\n')
	case "toml":
		out, err = toml.Marshal(loaded.Config)
	default:
		return withExit(exitcode.ConfigError, fmt.Errorf("unknown format %q (want yaml, json or toml)", format))
	}
	if err != nil {
		return fmt.Errorf("failed to format config: %w", err)
	}

	w := cmd.OutOrStdout()
	if loaded.File != "" && format != "json" {
		fmt.Fprintf(w, "# from %s\n", loaded.File)
	}
	_, err = w.Write(out)
	return err
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	var file string
	if len(args) == 1 {
		file = args[0]
		if !filepath.IsAbs(file) {
			dir, err := projectDir(cmd)
			if err != nil {
				return withExit(exitcode.FileSystemError, err)
			}
			file = filepath.Join(dir, file)
		}
		if err := cmd.Flags().Set("config", file); err != nil {
			return err
		}
	}

	loaded, _, err := loadConfig(cmd)
	if err != nil {
		var ee *exitError
		if errors.As(err, &ee) && ee.code == exitcode.ConfigError {
			return withExit(exitcode.ValidationError, ee.err)
		}
		return err
	}
	if loaded.File == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "no config file found; built-in defaults are valid")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: valid\n", loaded.File)
	return nil
}
