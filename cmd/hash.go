package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fulmenhq/crxprep/pkg/contenthash"
	"github.com/fulmenhq/crxprep/pkg/inlinescript"
	"github.com/spf13/cobra"
)

func newHashCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash [text]",
		Short: "Print the content hash used to name extracted scripts",
		Long: `Hash prints the base-36 content hash of text, of --file, or of standard
input when neither is given. With --name it prints the script file name
an extracted body would be written to.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHash,
	}
	cmd.Flags().StringP("file", "f", "", "Hash the contents of a file")
	cmd.Flags().Bool("name", false, "Print the extracted script file name instead of the bare hash")
	return cmd
}

func runHash(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	asName, _ := cmd.Flags().GetBool("name")

	var body string
	switch {
	case len(args) == 1 && file != "":
		return fmt.Errorf("pass text or --file, not both")
	case len(args) == 1:
		body = args[0]
	case file != "":
		data, err := os.ReadFile(filepath.Clean(file))
		if err != nil {
			return err
		}
		body = string(data)
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return err
		}
		body = string(data)
	}

	h := contenthash.String(body)
	if asName {
		fmt.Fprintln(cmd.OutOrStdout(), inlinescript.FileName(h))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), h)
	return nil
}
