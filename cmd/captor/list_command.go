package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"captor/internal/config"
	"captor/internal/store"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var limitFlag int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List captures, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				captures, err := st.ListCaptures(cmd.Context(), limitFlag)
				if err != nil {
					return err
				}
				if len(captures) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No captures.")
					return nil
				}

				rows := make([]table.Row, 0, len(captures))
				for _, capture := range captures {
					rows = append(rows, table.Row{
						capture.ID,
						string(capture.ClassifiedType),
						title(capture),
						string(capture.Confidence),
						capture.IsConfirmed,
						capture.CreatedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					table.Row{"ID", "Type", "Title", "Confidence", "Confirmed", "Created"},
					rows,
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limitFlag, "limit", 25, "Maximum number of captures to show (0 for all)")
	return cmd
}

func title(capture *store.Capture) string {
	if capture.AITitle != "" {
		return capture.AITitle
	}
	const max = 48
	if len(capture.OriginalText) > max {
		return capture.OriginalText[:max-1] + "…"
	}
	return capture.OriginalText
}
