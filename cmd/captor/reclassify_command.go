package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"captor/internal/analytics"
	"captor/internal/calendar"
	"captor/internal/classify"
	"captor/internal/config"
	"captor/internal/pipeline"
	"captor/internal/store"
)

func newReclassifyCommand(ctx *commandContext) *cobra.Command {
	var subTypeFlag string

	cmd := &cobra.Command{
		Use:   "reclassify <capture-id> <type>",
		Short: "Change a capture's classification",
		Long: `Reclassify rebuilds the capture's derived entity for the new type.
Types: temp, todo, schedule, notes. Notes take an optional --subtype
(inbox, idea, bookmark, user_folder).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			captureID := strings.TrimSpace(args[0])

			newType, ok := classify.ParseClassifiedType(args[1])
			if !ok {
				return fmt.Errorf("unknown type %q (temp, todo, schedule, notes)", args[1])
			}

			var newSubType classify.NoteSubType
			if subTypeFlag != "" {
				if newType != classify.TypeNotes {
					return fmt.Errorf("--subtype only applies to notes")
				}
				parsed, ok := classify.ParseNoteSubType(subTypeFlag)
				if !ok {
					return fmt.Errorf("unknown subtype %q", subTypeFlag)
				}
				newSubType = parsed
			}

			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				tracker := analytics.NewTracker(cfg.Analytics, nil)
				var calendarService *calendar.Service
				if cfg.Calendar.Enabled {
					calendarService = calendar.NewService(st, calendar.NewHTTPClient(cfg.Calendar), cfg.Calendar, nil,
						calendar.WithTracker(tracker))
				}
				reclassifier := pipeline.NewReclassifier(st, calendarService, tracker, nil)
				if err := reclassifier.Reclassify(cmd.Context(), captureID, newType, newSubType); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reclassified %s as %s\n", captureID, newType)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&subTypeFlag, "subtype", "", "Notes subtype (inbox, idea, bookmark, user_folder)")
	return cmd
}

func newConfirmCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <capture-id>",
		Short: "Accept a capture's current classification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			captureID := strings.TrimSpace(args[0])
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				tracker := analytics.NewTracker(cfg.Analytics, nil)
				reclassifier := pipeline.NewReclassifier(st, nil, tracker, nil)
				if err := reclassifier.Confirm(cmd.Context(), captureID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Confirmed %s\n", captureID)
				return nil
			})
		},
	}
}
