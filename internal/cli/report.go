package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stockroom/internal/adapters/exports"
)

func newReportCommand(opts *rootOptions) *cobra.Command {
	var query string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the shop health summary and grouped inventory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				out := cmd.OutOrStdout()
				groups := a.service.GroupedInventory(query)
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(map[string]any{"summary": a.service.Summary(), "categories": groups})
				}
				renderSummary(out, a.service.Summary())
				renderGroups(out, groups)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Only show items matching this text")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var query string
	var asCSV bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the stock movement history, newest first",
		Long: `Show the stock movement history.

Examples:
  stockroom history                    # table, newest first
  stockroom history -q helmet          # only rows mentioning "helmet"
  stockroom history --csv > out.csv    # raw rows in log order`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				out := cmd.OutOrStdout()
				if asCSV {
					_, err := a.service.WriteHistoryCSV(out, query)
					return err
				}
				if !a.service.HistoryEnabled() {
					printWarning(out, "history recording is turned off")
				}
				renderHistory(out, a.service.History(query))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Only show entries matching this text")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "Write raw CSV with the history file header")
	return cmd
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var query string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Archive the history to the configured blob store",
		Long: `Render the (optionally filtered) history as CSV and store it under
history/<id>.csv in the archive store selected by STOCKROOM_BLOB_DRIVER.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				ctx := cmd.Context()
				worker, err := a.openExports(ctx)
				if err != nil {
					return err
				}
				defer func() { _ = worker.Stop(ctx) }()

				queued, err := worker.Enqueue(ctx, exports.Input{Query: query, RequestedBy: "cli"})
				if err != nil {
					return err
				}
				record, err := waitForExport(cmd, worker, queued.ID, timeout)
				if err != nil {
					return err
				}
				if record.Status == exports.StatusFailed {
					return fmt.Errorf("export %s failed: %s", record.ID, record.Error)
				}
				printSuccess(cmd.OutOrStdout(), "stored %s (%d rows, %d bytes)", record.Key, record.Rows, record.SizeBytes)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Only archive entries matching this text")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "How long to wait for the archive")
	return cmd
}

func waitForExport(cmd *cobra.Command, worker *exports.Worker, id string, timeout time.Duration) (exports.Record, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		if record, ok := worker.Get(id); ok && (record.Status == exports.StatusSucceeded || record.Status == exports.StatusFailed) {
			return record, nil
		}
		select {
		case <-cmd.Context().Done():
			return exports.Record{}, cmd.Context().Err()
		case <-deadline.C:
			return exports.Record{}, fmt.Errorf("export %s did not finish within %s", id, timeout)
		case <-tick.C:
		}
	}
}
