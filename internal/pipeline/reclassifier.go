package pipeline

import (
	"context"
	"log/slog"
	"time"

	"captor/internal/analytics"
	"captor/internal/calendar"
	"captor/internal/classify"
	"captor/internal/logging"
	"captor/internal/store"
)

// Reclassifier handles user-driven classification changes. It rebuilds the
// derived entity for the new type without calling the classifier again, so
// extracted entities and tags survive untouched.
type Reclassifier struct {
	store     *store.Store
	calendar  *calendar.Service
	analytics analytics.Tracker
	logger    *slog.Logger
}

// NewReclassifier builds a reclassifier. The calendar service and tracker
// may be nil.
func NewReclassifier(st *store.Store, cal *calendar.Service, tracker analytics.Tracker, logger *slog.Logger) *Reclassifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reclassifier{store: st, calendar: cal, analytics: tracker, logger: logger}
}

// Reclassify moves a capture to a new type. Running it twice with the same
// arguments leaves one derived entity and appends one audit row per run.
func (r *Reclassifier) Reclassify(ctx context.Context, captureID string, newType classify.ClassifiedType, newSubType classify.NoteSubType) error {
	var (
		originalType classify.ClassifiedType
		elapsedMS    int64
	)

	err := r.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		capture, err := tx.GetCapture(ctx, captureID)
		if err != nil {
			return err
		}
		if capture == nil || capture.IsDeleted {
			return ErrCaptureNotFound
		}

		originalType = capture.ClassifiedType
		originalSubType := capture.NoteSubType

		if err := tx.DeleteDerivedEntities(ctx, captureID); err != nil {
			return err
		}
		if err := tx.UpdateClassifiedType(ctx, captureID, newType, newSubType); err != nil {
			return err
		}
		if err := createDerivedEntity(ctx, tx, captureID, newType, newSubType, capture.Confidence, nil, nil); err != nil {
			return err
		}

		logEntry := &store.ClassificationLog{
			CaptureID:       captureID,
			OriginalType:    originalType,
			OriginalSubType: originalSubType,
			NewType:         newType,
			NewSubType:      newSubType,
		}
		if capture.ClassifiedAt != nil {
			elapsedMS = time.Since(*capture.ClassifiedAt).Milliseconds()
			logEntry.TimeSinceClassificationMS = &elapsedMS
		}
		return tx.InsertClassificationLog(ctx, logEntry)
	})
	if err != nil {
		return err
	}

	if r.calendar != nil && newType == classify.TypeSchedule {
		if err := r.calendar.SyncSchedule(ctx, captureID); err != nil {
			r.logger.Warn("post-reclassify calendar sync failed",
				logging.String(logging.FieldCaptureID, captureID),
				logging.Error(err))
		}
	}
	if r.analytics != nil {
		if err := r.analytics.TrackReclassification(ctx, captureID, originalType, newType, elapsedMS); err != nil {
			r.logger.Debug("analytics event dropped",
				logging.String(logging.FieldCaptureID, captureID),
				logging.Error(err))
		}
	}
	return nil
}

// Confirm marks the capture's current classification as accepted by the user.
func (r *Reclassifier) Confirm(ctx context.Context, captureID string) error {
	capture, err := r.store.GetCapture(ctx, captureID)
	if err != nil {
		return err
	}
	if capture == nil || capture.IsDeleted {
		return ErrCaptureNotFound
	}
	if err := r.store.ConfirmCapture(ctx, captureID, time.Now().UTC()); err != nil {
		return err
	}
	if r.analytics != nil {
		if err := r.analytics.TrackCaptureConfirmed(ctx, captureID); err != nil {
			r.logger.Debug("analytics event dropped",
				logging.String(logging.FieldCaptureID, captureID),
				logging.Error(err))
		}
	}
	return nil
}
