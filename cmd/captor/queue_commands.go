package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"captor/internal/config"
	"captor/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the classification queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			var statuses []queue.Status
			if statusFlag != "" {
				status, ok := queue.ParseStatus(statusFlag)
				if !ok {
					return fmt.Errorf("unknown status %q", statusFlag)
				}
				statuses = append(statuses, status)
			}

			return ctx.withQueue(func(cfg *config.Config, q *queue.Store) error {
				items, err := q.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
					return nil
				}

				now := time.Now()
				rows := make([]table.Row, 0, len(items))
				for _, item := range items {
					rows = append(rows, table.Row{
						item.ID,
						item.CaptureID,
						string(item.Status),
						fmt.Sprintf("%d/%d", item.RetryCount, item.MaxRetries),
						nextAttempt(item, now),
						item.ErrorMessage,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					table.Row{"ID", "Capture", "Status", "Retries", "Next Attempt", "Error"},
					rows,
					1,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by status (pending, processing, completed, failed)")
	return cmd
}

// nextAttempt describes when the queue will touch an item again.
func nextAttempt(item *queue.Item, now time.Time) string {
	switch {
	case item.Due(now):
		return "now"
	case item.Status == queue.StatusProcessing:
		return "in flight"
	case item.Status.IsTerminal():
		return "-"
	case item.NextRetryAt != nil:
		return item.NextRetryAt.Local().Format(time.DateTime)
	}
	return ""
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue health counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(cfg *config.Config, q *queue.Store) error {
				health, err := q.Health(cmd.Context())
				if err != nil {
					return err
				}
				rows := []table.Row{
					{"Pending", health.Pending},
					{"Processing", health.Processing},
					{"Completed", health.Completed},
					{"Failed", health.Failed},
					{"Total", health.Total},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					table.Row{"Status", "Count"},
					rows,
					2,
				))
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [item-id...]",
		Short: "Return failed items to the queue with a fresh retry budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid item id %q", arg)
				}
				ids = append(ids, id)
			}

			return ctx.withQueue(func(cfg *config.Config, q *queue.Store) error {
				retried, err := q.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d item(s)\n", retried)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-failed",
		Short: "Remove all failed items from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(cfg *config.Config, q *queue.Store) error {
				cleared, err := q.ClearFailed(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d failed item(s)\n", cleared)
				return nil
			})
		},
	}
}
