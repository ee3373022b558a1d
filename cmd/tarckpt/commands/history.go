package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/fcossio/tar-checkpoints/pkg/tarckpt/history"
)

// ErrNoHistoryDB is returned when the history command has no database.
var ErrNoHistoryDB = errors.New("--db is required")

// HistoryCommand holds the configuration for the history command.
type HistoryCommand struct {
	dbPath   string
	failures bool
}

// NewHistoryCommand creates and configures the history command.
func NewHistoryCommand() *cobra.Command {
	hc := &HistoryCommand{}

	cobraCmd := &cobra.Command{
		Use:   "history --db FILE [archive]",
		Short: "Show recorded session reports",
		Long: `List the sessions recorded in a history database, oldest first.
With an archive argument only that archive's sessions are shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: hc.run,
	}

	cobraCmd.Flags().StringVar(&hc.dbPath, "db", "", "SQLite history database")
	cobraCmd.Flags().BoolVar(&hc.failures, "failures", false, "List each failed file")

	return cobraCmd
}

func (hc *HistoryCommand) run(cmd *cobra.Command, args []string) error {
	if hc.dbPath == "" {
		return ErrNoHistoryDB
	}

	store, err := history.NewSQLiteStore(hc.dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	var archive string
	if len(args) == 1 {
		archive, err = filepath.Abs(args[0])
		if err != nil {
			return err
		}
	}

	records, err := store.List(archive)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderHistory(records))
	if hc.failures {
		for _, rec := range records {
			for _, f := range rec.Failures {
				fmt.Fprintf(out, "%s  checkpoint %d  %s: %s\n", shortID(rec.SessionID), f.Index, f.Path, f.Reason)
			}
		}
	}
	return nil
}

func renderHistory(records []history.Record) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false

	tbl.AppendHeader(table.Row{"Session", "Archive", "Mode", "Started", "Duration", "Tasks", "Entries", "Size", "Failures", "Status"})

	for _, rec := range records {
		status := "ok"
		switch {
		case rec.Panicked:
			status = "panicked"
		case len(rec.Failures) > 0:
			status = "partial"
		}
		tbl.AppendRow(table.Row{
			shortID(rec.SessionID),
			rec.ArchivePath,
			rec.Mode,
			humanize.Time(rec.StartedAt),
			rec.Duration().Round(time.Millisecond),
			rec.Tasks,
			rec.Entries,
			humanize.Bytes(uint64(rec.Bytes)),
			len(rec.Failures),
			status,
		})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d sessions", len(records))})

	return tbl.Render()
}
