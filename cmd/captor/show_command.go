package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"captor/internal/config"
	"captor/internal/store"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <capture-id>",
		Short: "Show a capture with its derived entity, tags, and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			captureID := strings.TrimSpace(args[0])
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				out := cmd.OutOrStdout()
				reqCtx := cmd.Context()

				capture, err := st.GetCapture(reqCtx, captureID)
				if err != nil {
					return err
				}
				if capture == nil {
					return fmt.Errorf("capture %s not found", captureID)
				}

				fmt.Fprintf(out, "Capture %s\n", capture.ID)
				fmt.Fprintf(out, "  Text:       %s\n", capture.OriginalText)
				fmt.Fprintf(out, "  Type:       %s", capture.ClassifiedType)
				if capture.NoteSubType != "" {
					fmt.Fprintf(out, " (%s)", capture.NoteSubType)
				}
				fmt.Fprintln(out)
				if capture.AITitle != "" {
					fmt.Fprintf(out, "  Title:      %s\n", capture.AITitle)
				}
				if capture.Confidence != "" {
					fmt.Fprintf(out, "  Confidence: %s\n", capture.Confidence)
				}
				fmt.Fprintf(out, "  Source:     %s\n", capture.Source)
				if capture.ParentCaptureID != "" {
					fmt.Fprintf(out, "  Parent:     %s\n", capture.ParentCaptureID)
				}
				fmt.Fprintf(out, "  Confirmed:  %t\n", capture.IsConfirmed)
				fmt.Fprintf(out, "  Created:    %s\n", capture.CreatedAt.Local().Format(time.DateTime))

				if todo, err := st.GetTodoByCapture(reqCtx, capture.ID); err != nil {
					return err
				} else if todo != nil {
					fmt.Fprintln(out, "Todo:")
					if todo.Deadline != nil {
						fmt.Fprintf(out, "  Deadline: %s (%s)\n", todo.Deadline.Local().Format(time.DateTime), todo.DeadlineSource)
					}
					fmt.Fprintf(out, "  Completed: %t\n", todo.IsCompleted)
				}
				if schedule, err := st.GetScheduleByCapture(reqCtx, capture.ID); err != nil {
					return err
				} else if schedule != nil {
					fmt.Fprintln(out, "Schedule:")
					if schedule.StartTime != nil {
						fmt.Fprintf(out, "  Start:    %s\n", schedule.StartTime.Local().Format(time.DateTime))
					}
					if schedule.EndTime != nil {
						fmt.Fprintf(out, "  End:      %s\n", schedule.EndTime.Local().Format(time.DateTime))
					}
					if schedule.Location != "" {
						fmt.Fprintf(out, "  Location: %s\n", schedule.Location)
					}
					fmt.Fprintf(out, "  All day:  %t\n", schedule.IsAllDay)
					fmt.Fprintf(out, "  Sync:     %s\n", schedule.SyncStatus)
					if schedule.ExternalEventID != "" {
						fmt.Fprintf(out, "  Event:    %s\n", schedule.ExternalEventID)
					}
				}
				if note, err := st.GetNoteByCapture(reqCtx, capture.ID); err != nil {
					return err
				} else if note != nil {
					fmt.Fprintln(out, "Note:")
					fmt.Fprintf(out, "  Folder: %s\n", note.FolderID)
				}

				tags, err := st.TagsForCapture(reqCtx, capture.ID)
				if err != nil {
					return err
				}
				if len(tags) > 0 {
					names := make([]string, 0, len(tags))
					for _, tag := range tags {
						names = append(names, tag.Name)
					}
					fmt.Fprintf(out, "Tags: %s\n", strings.Join(names, ", "))
				}

				entities, err := st.ExtractedEntitiesForCapture(reqCtx, capture.ID)
				if err != nil {
					return err
				}
				if len(entities) > 0 {
					fmt.Fprintln(out, "Entities:")
					for _, entity := range entities {
						if entity.NormalizedValue != "" {
							fmt.Fprintf(out, "  %s: %s (%s)\n", entity.Type, entity.Value, entity.NormalizedValue)
						} else {
							fmt.Fprintf(out, "  %s: %s\n", entity.Type, entity.Value)
						}
					}
				}

				children, err := st.ChildCaptures(reqCtx, capture.ID)
				if err != nil {
					return err
				}
				if len(children) > 0 {
					fmt.Fprintln(out, "Split into:")
					for _, child := range children {
						fmt.Fprintf(out, "  %s (%s) %s\n", child.ID, child.ClassifiedType, title(child))
					}
				}

				logs, err := st.LogsForCapture(reqCtx, capture.ID)
				if err != nil {
					return err
				}
				if len(logs) > 0 {
					fmt.Fprintln(out, "History:")
					for _, entry := range logs {
						fmt.Fprintf(out, "  %s: %s -> %s\n",
							entry.CreatedAt.Local().Format(time.DateTime),
							entry.OriginalType,
							entry.NewType)
					}
				}
				return nil
			})
		},
	}
	return cmd
}
