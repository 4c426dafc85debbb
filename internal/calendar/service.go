package calendar

import (
	"context"
	"fmt"
	"log/slog"

	"captor/internal/analytics"
	"captor/internal/classify"
	"captor/internal/config"
	"captor/internal/logging"
	"captor/internal/store"
)

// Service decides whether and how schedule captures reach the external
// calendar. Sync outcomes land on the schedule row, never on the capture.
type Service struct {
	store   *store.Store
	client  Client
	cfg     config.Calendar
	tracker analytics.Tracker
	logger  *slog.Logger
}

// Option customizes the service.
type Option func(*Service)

// WithTracker records an analytics event for each successful sync.
func WithTracker(tracker analytics.Tracker) Option {
	return func(s *Service) {
		s.tracker = tracker
	}
}

// NewService builds a calendar sync service.
func NewService(st *store.Store, client Client, cfg config.Calendar, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	service := &Service{store: st, client: client, cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// SyncSchedule evaluates the capture's schedule against the calendar policy
// and records the outcome. Callers run this after the owning transaction has
// committed; a sync failure never unwinds applied entities.
func (s *Service) SyncSchedule(ctx context.Context, captureID string) error {
	capture, err := s.store.GetCapture(ctx, captureID)
	if err != nil {
		return fmt.Errorf("load capture: %w", err)
	}
	if capture == nil {
		return nil
	}

	schedule, err := s.store.GetScheduleByCapture(ctx, captureID)
	if err != nil {
		return fmt.Errorf("load schedule: %w", err)
	}
	if schedule == nil {
		return nil
	}
	if schedule.SyncStatus == store.SyncSynced {
		return nil
	}

	if !s.cfg.Enabled {
		return s.store.UpdateScheduleSyncStatus(ctx, schedule.ID, store.SyncNotLinked, "")
	}

	autoSync := s.cfg.Mode == config.CalendarModeAuto && capture.Confidence == classify.ConfidenceHigh
	if !autoSync {
		return s.store.UpdateScheduleSyncStatus(ctx, schedule.ID, store.SyncSuggestionPending, "")
	}

	event := Event{
		Title:     capture.AITitle,
		StartTime: schedule.StartTime,
		EndTime:   schedule.EndTime,
		Location:  schedule.Location,
		IsAllDay:  schedule.IsAllDay,
	}
	if event.Title == "" {
		event.Title = capture.OriginalText
	}

	eventID, err := s.client.CreateEvent(ctx, event)
	if err != nil {
		s.logger.Warn("calendar sync failed",
			logging.String(logging.FieldCaptureID, captureID),
			logging.Error(err))
		if updateErr := s.store.UpdateScheduleSyncStatus(ctx, schedule.ID, store.SyncFailed, ""); updateErr != nil {
			return updateErr
		}
		return fmt.Errorf("create calendar event: %w", err)
	}

	s.logger.Info("schedule synced to calendar",
		logging.String(logging.FieldCaptureID, captureID),
		logging.String("event_id", eventID))
	if err := s.store.UpdateScheduleSyncStatus(ctx, schedule.ID, store.SyncSynced, eventID); err != nil {
		return err
	}
	if s.tracker != nil {
		if err := s.tracker.TrackCalendarSynced(ctx, captureID); err != nil {
			s.logger.Debug("analytics event dropped",
				logging.String(logging.FieldCaptureID, captureID),
				logging.Error(err))
		}
	}
	return nil
}

// SweepFailedSyncs retries every schedule stuck in the failed sync state and
// returns how many synced this pass.
func (s *Service) SweepFailedSyncs(ctx context.Context) (int, error) {
	failed, err := s.store.SchedulesWithSyncStatus(ctx, store.SyncFailed)
	if err != nil {
		return 0, fmt.Errorf("list failed syncs: %w", err)
	}

	synced := 0
	for _, schedule := range failed {
		if err := s.SyncSchedule(ctx, schedule.CaptureID); err != nil {
			s.logger.Warn("retry sync failed",
				logging.String(logging.FieldCaptureID, schedule.CaptureID),
				logging.Error(err))
			continue
		}
		refreshed, err := s.store.GetScheduleByCapture(ctx, schedule.CaptureID)
		if err != nil {
			return synced, err
		}
		if refreshed != nil && refreshed.SyncStatus == store.SyncSynced {
			synced++
		}
	}
	return synced, nil
}
