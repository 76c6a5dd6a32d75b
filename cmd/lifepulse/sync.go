package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newSyncCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run a single sync pass and print the summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			a.monitor.Refresh(ctx)

			summary, err := a.service.SyncNow(ctx)
			if err != nil {
				return err
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Attempted", "Synced", "Failed", "Out of retries", "Pruned", "Duration"})
			tw.AppendRow(table.Row{
				summary.Attempted,
				summary.Succeeded,
				summary.Failed,
				summary.Exhausted,
				summary.Pruned,
				summary.Duration.Round(time.Millisecond),
			})
			tw.Render()

			if pending := a.service.PendingCount(ctx); pending > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d request(s) still pending\n", pending)
			}
			return nil
		},
	}
}
