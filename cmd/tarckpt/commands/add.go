package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/fcossio/tar-checkpoints/pkg/tarckpt"
	"github.com/fcossio/tar-checkpoints/pkg/tarckpt/config"
	"github.com/fcossio/tar-checkpoints/pkg/tarckpt/history"
)

// ErrInvalidIndex is returned when a checkpoint index argument is not an
// integer.
var ErrInvalidIndex = errors.New("checkpoint index must be an integer")

// AddCommand holds the configuration for the add command.
type AddCommand struct {
	configPath string
	mode       string
	historyDB  string
	sync       bool
	remove     bool
	verbose    bool
}

// NewAddCommand creates and configures the add command.
func NewAddCommand() *cobra.Command {
	ac := &AddCommand{}

	cobraCmd := &cobra.Command{
		Use:   "add <archive> <index> <file>...",
		Short: "Archive files under a checkpoint index",
		Long: `Archive one or more files as checkpoint <index> of <archive>.

Settings are read from --config (YAML or JSON) first; flags given on the
command line override them.`,
		Args: cobra.MinimumNArgs(3),
		RunE: ac.run,
	}

	cobraCmd.Flags().StringVarP(&ac.configPath, "config", "c", "", "Session config file (.yaml, .yml, .json)")
	cobraCmd.Flags().StringVarP(&ac.mode, "mode", "m", "append", "Archive mode (create, truncate, append)")
	cobraCmd.Flags().StringVar(&ac.historyDB, "history-db", "", "Record the session report in this SQLite database")
	cobraCmd.Flags().BoolVar(&ac.sync, "sync", false, "fsync the archive after the files are written")
	cobraCmd.Flags().BoolVar(&ac.remove, "remove-sources", false, "Delete source files once archived")
	cobraCmd.Flags().BoolVarP(&ac.verbose, "verbose", "v", false, "Log session events to stderr")

	return cobraCmd
}

func (ac *AddCommand) run(cmd *cobra.Command, args []string) error {
	index, err := parseIndex(args[1])
	if err != nil {
		return err
	}

	opts, err := ac.options(cmd)
	if err != nil {
		return err
	}

	if ac.historyDB != "" {
		store, storeErr := history.NewSQLiteStore(ac.historyDB)
		if storeErr != nil {
			return fmt.Errorf("open history: %w", storeErr)
		}
		defer store.Close()
		opts = append(opts, tarckpt.WithHistory(store))
	}

	ctx := cmd.Context()
	s, err := tarckpt.Open(ctx, args[0], opts...)
	if err != nil {
		return err
	}
	if err := s.Submit(ctx, index, args[2:]...); err != nil {
		return errors.Join(err, s.Close())
	}
	if err := s.Close(); err != nil {
		return err
	}

	stats := s.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "archived %d file(s), %s, as checkpoint %d in %s\n",
		stats.Entries, humanize.Bytes(uint64(stats.Bytes)), index, s.Path())
	return nil
}

// options merges the config file with flags that were set explicitly.
func (ac *AddCommand) options(cmd *cobra.Command) ([]tarckpt.Option, error) {
	var opts []tarckpt.Option

	if ac.configPath != "" {
		cfg, err := config.FromFile(ac.configPath)
		if err != nil {
			return nil, err
		}
		fileOpts, err := tarckpt.OptionsFromConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", ac.configPath, err)
		}
		opts = append(opts, fileOpts...)
	}

	flags := cmd.Flags()
	if ac.configPath == "" || flags.Changed("mode") {
		mode, err := tarckpt.ParseMode(ac.mode)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tarckpt.WithMode(mode))
	}
	if flags.Changed("sync") {
		opts = append(opts, tarckpt.WithSync(ac.sync))
	}
	if flags.Changed("remove-sources") {
		opts = append(opts, tarckpt.WithRemoveSources(ac.remove))
	}
	if ac.verbose {
		logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
		opts = append(opts, tarckpt.WithLogger(logger))
	}
	return opts, nil
}

func parseIndex(s string) (int, error) {
	index, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIndex, s)
	}
	return index, nil
}
