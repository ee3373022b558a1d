package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fcossio/tar-checkpoints/pkg/tarckpt"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list <archive>",
		Short: "Print the checkpoint indices in an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			indices, err := tarckpt.ListIndices(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, idx := range indices {
				fmt.Fprintln(out, idx)
			}
			return nil
		},
	}
}
