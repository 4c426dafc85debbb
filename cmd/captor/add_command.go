package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"captor/internal/config"
	"captor/internal/pipeline"
	"captor/internal/queue"
	"captor/internal/store"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var sourceFlag string

	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Capture text and queue it for classification",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("capture text is empty")
			}

			source, ok := store.ParseCaptureSource(sourceFlag)
			if !ok {
				return fmt.Errorf("unknown source %q (app, share, widget)", sourceFlag)
			}
			if source == store.SourceSplit {
				return fmt.Errorf("split captures are created by the pipeline, not submitted")
			}

			return ctx.withStores(func(cfg *config.Config, st *store.Store, q *queue.Store) error {
				submitter := pipeline.NewSubmitter(st, q, cfg.Queue, nil)
				capture, item, err := submitter.Submit(cmd.Context(), text, source)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Captured %s (queue item %d)\n", capture.ID, item.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sourceFlag, "source", "app", "Capture source (app, share, widget)")
	return cmd
}
