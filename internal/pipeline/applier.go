package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"captor/internal/analytics"
	"captor/internal/calendar"
	"captor/internal/classify"
	"captor/internal/logging"
	"captor/internal/store"
)

// ErrCaptureNotFound is returned when the capture a result targets no longer
// exists. Queue processing treats it as success so deleted captures never
// wedge the queue.
var ErrCaptureNotFound = errors.New("capture not found")

// Applier materializes classifier output into derived entities. All writes
// for one result happen in a single transaction; calendar sync and analytics
// run only after the transaction commits.
type Applier struct {
	store     *store.Store
	calendar  *calendar.Service
	analytics analytics.Tracker
	logger    *slog.Logger
}

// NewApplier builds an applier. The calendar service and tracker may be nil.
func NewApplier(st *store.Store, cal *calendar.Service, tracker analytics.Tracker, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Applier{store: st, calendar: cal, analytics: tracker, logger: logger}
}

// Apply writes one classification result. Re-applying the same result is
// safe: extracted entities are replaced, tags are linked at most once, and
// derived entities are rebuilt from scratch.
func (a *Applier) Apply(ctx context.Context, captureID string, result classify.Classification) error {
	var scheduleCaptureIDs []string
	var confidence classify.Confidence
	var splitCount int

	err := a.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		capture, err := tx.GetCapture(ctx, captureID)
		if err != nil {
			return err
		}
		if capture == nil || capture.IsDeleted {
			return ErrCaptureNotFound
		}

		originalType := capture.ClassifiedType
		originalSubType := capture.NoteSubType
		previouslyClassifiedAt := capture.ClassifiedAt

		if err := tx.UpdateClassification(ctx, captureID, result.Type, result.SubType, result.Title, result.Confidence); err != nil {
			return err
		}

		entities := make([]store.ExtractedEntity, 0, len(result.Entities))
		for _, entity := range result.Entities {
			entities = append(entities, store.ExtractedEntity{
				Type:            entity.Type,
				Value:           entity.Value,
				NormalizedValue: entity.NormalizedValue,
			})
		}
		if err := tx.ReplaceExtractedEntities(ctx, captureID, entities); err != nil {
			return err
		}

		if err := linkTags(ctx, tx, captureID, result.Tags); err != nil {
			return err
		}

		if err := tx.DeleteDerivedEntities(ctx, captureID); err != nil {
			return err
		}
		if err := createDerivedEntity(ctx, tx, captureID, result.Type, result.SubType, result.Confidence, result.ScheduleInfo, result.TodoInfo); err != nil {
			return err
		}
		if result.Type == classify.TypeSchedule {
			scheduleCaptureIDs = append(scheduleCaptureIDs, captureID)
		}

		// Children never split again, so split results on a split capture
		// are dropped rather than recursed into.
		if capture.Source != store.SourceSplit {
			childScheduleIDs, err := a.applySplitItems(ctx, tx, capture, result.SplitItems)
			if err != nil {
				return err
			}
			scheduleCaptureIDs = append(scheduleCaptureIDs, childScheduleIDs...)
			splitCount = len(result.SplitItems)
		}

		logEntry := &store.ClassificationLog{
			CaptureID:       captureID,
			OriginalType:    originalType,
			OriginalSubType: originalSubType,
			NewType:         result.Type,
			NewSubType:      result.SubType,
		}
		if previouslyClassifiedAt != nil {
			elapsed := time.Since(*previouslyClassifiedAt).Milliseconds()
			logEntry.TimeSinceClassificationMS = &elapsed
		}
		if err := tx.InsertClassificationLog(ctx, logEntry); err != nil {
			return err
		}

		confidence = result.Confidence
		return nil
	})
	if err != nil {
		return err
	}

	a.afterCommit(ctx, captureID, result.Type, confidence, splitCount, scheduleCaptureIDs)
	return nil
}

// applySplitItems materializes each split intent as its own capture with its
// own derived entity, inside the caller's transaction.
func (a *Applier) applySplitItems(ctx context.Context, tx *store.Tx, parent *store.Capture, items []classify.SplitItem) ([]string, error) {
	var scheduleCaptureIDs []string
	for _, item := range items {
		child := &store.Capture{
			OriginalText:    item.Text,
			Source:          store.SourceSplit,
			ParentCaptureID: parent.ID,
		}
		if err := tx.SaveCapture(ctx, child); err != nil {
			return nil, err
		}
		if err := tx.UpdateClassification(ctx, child.ID, item.Type, item.SubType, item.Title, item.Confidence); err != nil {
			return nil, err
		}
		if err := linkTags(ctx, tx, child.ID, item.Tags); err != nil {
			return nil, err
		}
		if err := createDerivedEntity(ctx, tx, child.ID, item.Type, item.SubType, item.Confidence, item.ScheduleInfo, item.TodoInfo); err != nil {
			return nil, err
		}
		if item.Type == classify.TypeSchedule {
			scheduleCaptureIDs = append(scheduleCaptureIDs, child.ID)
		}
	}
	return scheduleCaptureIDs, nil
}

func (a *Applier) afterCommit(ctx context.Context, captureID string, classifiedType classify.ClassifiedType, confidence classify.Confidence, splitCount int, scheduleCaptureIDs []string) {
	if a.calendar != nil {
		for _, id := range scheduleCaptureIDs {
			if err := a.calendar.SyncSchedule(ctx, id); err != nil {
				a.logger.Warn("post-apply calendar sync failed",
					logging.String(logging.FieldCaptureID, id),
					logging.Error(err))
			}
		}
	}
	if a.analytics == nil {
		return
	}
	if err := a.analytics.TrackCaptureClassified(ctx, captureID, classifiedType, confidence); err != nil {
		a.logger.Debug("analytics event dropped",
			logging.String(logging.FieldCaptureID, captureID),
			logging.Error(err))
	}
	if splitCount > 0 {
		if err := a.analytics.TrackSplitCapture(ctx, captureID, splitCount); err != nil {
			a.logger.Debug("analytics event dropped",
				logging.String(logging.FieldCaptureID, captureID),
				logging.Error(err))
		}
	}
}

func linkTags(ctx context.Context, tx *store.Tx, captureID string, names []string) error {
	for _, name := range names {
		tag, err := tx.GetOrCreateTag(ctx, name)
		if err != nil {
			return err
		}
		if err := tx.LinkTagToCapture(ctx, captureID, tag.ID); err != nil {
			return err
		}
	}
	return nil
}

// createDerivedEntity builds the one entity a classification implies. Temp
// classifications produce nothing.
func createDerivedEntity(ctx context.Context, tx *store.Tx, captureID string, classifiedType classify.ClassifiedType, subType classify.NoteSubType, confidence classify.Confidence, scheduleInfo *classify.ScheduleInfo, todoInfo *classify.TodoInfo) error {
	switch classifiedType {
	case classify.TypeTodo:
		todo := &store.Todo{CaptureID: captureID, DeadlineSource: classify.DeadlineSourceAI}
		if todoInfo != nil {
			todo.Deadline = todoInfo.Deadline
			if todoInfo.DeadlineSource != "" {
				todo.DeadlineSource = todoInfo.DeadlineSource
			}
		}
		return tx.CreateTodo(ctx, todo)
	case classify.TypeSchedule:
		schedule := &store.Schedule{
			CaptureID:  captureID,
			Confidence: confidence,
			SyncStatus: store.SyncPending,
		}
		if scheduleInfo != nil {
			schedule.StartTime = scheduleInfo.StartTime
			schedule.EndTime = scheduleInfo.EndTime
			schedule.Location = scheduleInfo.Location
			schedule.IsAllDay = scheduleInfo.IsAllDay
		}
		return tx.CreateSchedule(ctx, schedule)
	case classify.TypeNotes:
		note := &store.Note{CaptureID: captureID, FolderID: store.FolderForSubType(subType)}
		return tx.CreateNote(ctx, note)
	case classify.TypeTemp:
		return nil
	default:
		return fmt.Errorf("unknown classification type %q", classifiedType)
	}
}
