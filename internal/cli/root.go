// Package cli implements the stockroom command line.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Version is stamped at build time with -ldflags "-X stockroom/internal/cli.Version=...".
var Version = "dev"

type rootOptions struct {
	logFormat string
	logLevel  string
	trace     bool
	storage   string
	dataDir   string
}

// NewRootCommand builds the stockroom command tree writing to stdout and stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "stockroom",
		Short: "Stockroom - inventory tracking for a single shop",
		Long: `Stockroom tracks stock items (product/size variants), their categories and an
append-only history of every stock movement.

Storage and archive backends are chosen through STOCKROOM_* environment
variables; the flags below override the most common ones.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Minimum log level: debug, info, warn, error")
	flags.BoolVar(&opts.trace, "trace", false, "Write a JSON trace line per inventory operation to stderr")
	flags.StringVar(&opts.storage, "storage", "", "Storage driver: csv, memory, sqlite, postgres (overrides STOCKROOM_STORAGE_DRIVER)")
	flags.StringVar(&opts.dataDir, "data-dir", "", "Directory holding the CSV files (overrides STOCKROOM_DATA_DIR)")

	cmd.AddCommand(
		newServeCommand(opts),
		newReportCommand(opts),
		newHistoryCommand(opts),
		newExportCommand(opts),
		newCategoryCommand(opts),
		newProductCommand(opts),
		newStockCommand(opts),
		newTUICommand(opts),
	)
	return cmd
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, errorStyle.Render("✗ ")+err.Error())
		return 1
	}
	return 0
}

// withApp opens the service graph for one command invocation.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(*app) error) error {
	a, err := openApp(cmd.Context(), opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			a.logger.Error("close store", "error", cerr)
		}
	}()
	return fn(a)
}
