package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newStorageCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "storage",
		Short: "Show offline storage usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			status := a.service.Status(ctx)

			lastSync := "never"
			if status.LastSync != nil {
				lastSync = status.LastSync.Local().Format("2006-01-02 15:04:05")
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendRows([]table.Row{
				{"Driver", a.config.Storage.Driver},
				{"Used (bytes)", status.Storage.Used},
				{"Available (bytes)", status.Storage.Available},
				{"Capacity (bytes)", status.Storage.Capacity},
				{"Pending", status.Pending},
				{"Failed", status.Failed},
				{"Last sync", lastSync},
			})
			tw.Render()
			return nil
		},
	}
}
