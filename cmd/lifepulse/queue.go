package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/lifepulse/internal/model"
)

func newQueueCommand(opts *rootOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List locally queued emergency requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := model.RequestStatus(status)
			if filter != "" && !filter.Valid() {
				return fmt.Errorf("invalid status %q: must be pending, synced or failed", status)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			requests := a.service.List(ctx, filter)

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"ID", "Created", "Status", "Attempts", "Blood", "Urgency", "Units", "Hospital", "Last error"})
			for _, r := range requests {
				tw.AppendRow(table.Row{
					r.ID,
					r.CreatedAt.Local().Format(time.DateTime),
					r.Status,
					r.Attempts,
					r.BloodType,
					r.Urgency,
					r.UnitsNeeded,
					r.Hospital,
					r.LastError,
				})
			}
			tw.AppendFooter(table.Row{"", "", "", "", "", "", "", "Total", len(requests)})
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter (pending, synced, failed)")
	return cmd
}
