package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/fcossio/tar-checkpoints/pkg/tarckpt"
)

// NewEntriesCommand creates the entries command.
func NewEntriesCommand() *cobra.Command {
	var exact bool

	cobraCmd := &cobra.Command{
		Use:   "entries <archive>",
		Short: "Show every entry with its size and origin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := tarckpt.Entries(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderEntries(entries, exact))
			return nil
		},
	}

	cobraCmd.Flags().BoolVar(&exact, "bytes", false, "Print sizes in bytes instead of human units")

	return cobraCmd
}

func renderEntries(entries []tarckpt.EntryInfo, exact bool) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false

	tbl.AppendHeader(table.Row{"Index", "Entry", "Original", "Size", "Mode", "Modified", "Session"})

	var total int64
	for _, e := range entries {
		size := humanize.Bytes(uint64(e.Size))
		if exact {
			size = fmt.Sprint(e.Size)
		}
		tbl.AppendRow(table.Row{
			e.Index,
			e.Name,
			e.Basename,
			size,
			e.Mode.Perm().String(),
			humanize.Time(e.ModTime),
			shortID(e.SessionID),
		})
		total += e.Size
	}

	totalSize := humanize.Bytes(uint64(total))
	if exact {
		totalSize = fmt.Sprint(total)
	}
	tbl.AppendFooter(table.Row{"", fmt.Sprintf("Total: %d entries", len(entries)), "", totalSize})

	return tbl.Render()
}

// shortID trims a UUID to its first group for display.
func shortID(id string) string {
	const n = 8
	if len(id) > n {
		return id[:n]
	}
	return id
}
