package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"captor/internal/analytics"
	"captor/internal/calendar"
	"captor/internal/classify"
	"captor/internal/config"
	"captor/internal/pipeline"
	"captor/internal/queue"
	"captor/internal/store"
	"captor/internal/worker"
)

func newDrainCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Process every due queue item once",
		Long: `Drain runs one pass over the classification queue in the foreground.
Useful when the daemon is not running or a submission should not wait for
the next poll.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(func(cfg *config.Config, st *store.Store, q *queue.Store) error {
				if _, err := cfg.EnsureDeviceID(); err != nil {
					return err
				}
				tracker := analytics.NewTracker(cfg.Analytics, nil)
				var calendarService *calendar.Service
				if cfg.Calendar.Enabled {
					calendarService = calendar.NewService(st, calendar.NewHTTPClient(cfg.Calendar), cfg.Calendar, nil,
						calendar.WithTracker(tracker))
				}
				classifier := classify.NewHTTPClient(classify.Config{
					BaseURL:        cfg.Classifier.BaseURL,
					APIKey:         cfg.Classifier.APIKey,
					TimeoutSeconds: cfg.Classifier.TimeoutSeconds,
				})
				applier := pipeline.NewApplier(st, calendarService, tracker, nil)
				processor := worker.NewProcessor(st, q, classifier, applier, cfg, nil,
					worker.WithTracker(tracker))

				result, err := processor.DrainQueue(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Processed %d, retried %d, failed %d\n",
					result.Processed, result.Retried, result.Failed)
				return nil
			})
		},
	}
}
