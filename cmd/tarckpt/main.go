// Package main provides the entry point for the tarckpt CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fcossio/tar-checkpoints/cmd/tarckpt/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tarckpt",
		Short: "Inspect and extract checkpoint archives",
		Long: `tarckpt works with tar archives written by tarckpt sessions.

Commands:
  add       Archive files under a checkpoint index
  list      Print the checkpoint indices in an archive
  entries   Show every entry with its size and origin
  extract   Restore one checkpoint's files
  history   Show recorded session reports`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewAddCommand())
	rootCmd.AddCommand(commands.NewListCommand())
	rootCmd.AddCommand(commands.NewEntriesCommand())
	rootCmd.AddCommand(commands.NewExtractCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
