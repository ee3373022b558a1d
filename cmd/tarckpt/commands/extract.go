package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fcossio/tar-checkpoints/pkg/tarckpt"
)

// NewExtractCommand creates the extract command.
func NewExtractCommand() *cobra.Command {
	var dest string

	cobraCmd := &cobra.Command{
		Use:   "extract <archive> <index>",
		Short: "Restore one checkpoint's files",
		Long: `Extract every file of checkpoint <index> into <dest>/<index> and print
that directory. Without --dest a fresh directory is created under
$` + tarckpt.TempDirEnv + ` or the system temp dir.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[1])
			if err != nil {
				return err
			}

			var opts []tarckpt.ExtractOption
			if dest != "" {
				opts = append(opts, tarckpt.WithDestination(dest))
			}
			dir, err := tarckpt.Extract(cmd.Context(), args[0], index, opts...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}

	cobraCmd.Flags().StringVarP(&dest, "dest", "d", "", "Directory to extract into")

	return cobraCmd
}
