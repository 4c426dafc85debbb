package calendar_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"captor/internal/calendar"
	"captor/internal/classify"
	"captor/internal/config"
	"captor/internal/store"
	"captor/internal/testsupport"
)

func seedSchedule(t *testing.T, st *store.Store, confidence classify.Confidence) *store.Capture {
	t.Helper()
	ctx := context.Background()

	capture := &store.Capture{OriginalText: "dentist monday 9am", AITitle: "Dentist"}
	if err := st.SaveCapture(ctx, capture); err != nil {
		t.Fatalf("save capture: %v", err)
	}
	if err := st.UpdateClassification(ctx, capture.ID, classify.TypeSchedule, "", "Dentist", confidence); err != nil {
		t.Fatalf("classify capture: %v", err)
	}

	start := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	schedule := &store.Schedule{
		CaptureID:  capture.ID,
		StartTime:  &start,
		Confidence: confidence,
		SyncStatus: store.SyncPending,
	}
	if err := st.CreateSchedule(ctx, schedule); err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	return capture
}

func scheduleStatus(t *testing.T, st *store.Store, captureID string) store.CalendarSyncStatus {
	t.Helper()
	schedule, err := st.GetScheduleByCapture(context.Background(), captureID)
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if schedule == nil {
		t.Fatal("expected schedule")
	}
	return schedule.SyncStatus
}

func TestSyncScheduleDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	capture := seedSchedule(t, st, classify.ConfidenceHigh)

	svc := calendar.NewService(st, &calendar.NopClient{}, cfg.Calendar, nil)
	if err := svc.SyncSchedule(context.Background(), capture.ID); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if got := scheduleStatus(t, st, capture.ID); got != store.SyncNotLinked {
		t.Fatalf("expected not_linked, got %s", got)
	}
}

func TestSyncScheduleSuggestMode(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCalendar(config.CalendarModeSuggest))
	st := testsupport.MustOpenStore(t, cfg)
	capture := seedSchedule(t, st, classify.ConfidenceHigh)

	svc := calendar.NewService(st, &calendar.NopClient{}, cfg.Calendar, nil)
	if err := svc.SyncSchedule(context.Background(), capture.ID); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if got := scheduleStatus(t, st, capture.ID); got != store.SyncSuggestionPending {
		t.Fatalf("expected suggestion_pending, got %s", got)
	}
}

func TestSyncScheduleAutoLowConfidence(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCalendar(config.CalendarModeAuto))
	st := testsupport.MustOpenStore(t, cfg)
	capture := seedSchedule(t, st, classify.ConfidenceLow)

	svc := calendar.NewService(st, &calendar.NopClient{}, cfg.Calendar, nil)
	if err := svc.SyncSchedule(context.Background(), capture.ID); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if got := scheduleStatus(t, st, capture.ID); got != store.SyncSuggestionPending {
		t.Fatalf("expected suggestion_pending, got %s", got)
	}
}

func TestSyncScheduleAutoHighConfidence(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCalendar(config.CalendarModeAuto))
	st := testsupport.MustOpenStore(t, cfg)
	capture := seedSchedule(t, st, classify.ConfidenceHigh)

	client := &calendar.NopClient{
		CreateFunc: func(ctx context.Context, event calendar.Event) (string, error) {
			if event.Title != "Dentist" {
				t.Fatalf("unexpected event title %q", event.Title)
			}
			return "evt-99", nil
		},
	}
	svc := calendar.NewService(st, client, cfg.Calendar, nil)
	if err := svc.SyncSchedule(context.Background(), capture.ID); err != nil {
		t.Fatalf("sync: %v", err)
	}

	schedule, err := st.GetScheduleByCapture(context.Background(), capture.ID)
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if schedule.SyncStatus != store.SyncSynced || schedule.ExternalEventID != "evt-99" {
		t.Fatalf("unexpected schedule: %+v", schedule)
	}
}

func TestSyncScheduleFailureRecordsFailedStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCalendar(config.CalendarModeAuto))
	st := testsupport.MustOpenStore(t, cfg)
	capture := seedSchedule(t, st, classify.ConfidenceHigh)

	client := &calendar.NopClient{
		CreateFunc: func(ctx context.Context, event calendar.Event) (string, error) {
			return "", errors.New("bridge down")
		},
	}
	svc := calendar.NewService(st, client, cfg.Calendar, nil)
	if err := svc.SyncSchedule(context.Background(), capture.ID); err == nil {
		t.Fatal("expected sync error")
	}
	if got := scheduleStatus(t, st, capture.ID); got != store.SyncFailed {
		t.Fatalf("expected sync_failed, got %s", got)
	}
}

func TestSweepFailedSyncs(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCalendar(config.CalendarModeAuto))
	st := testsupport.MustOpenStore(t, cfg)
	capture := seedSchedule(t, st, classify.ConfidenceHigh)
	ctx := context.Background()

	failing := true
	client := &calendar.NopClient{
		CreateFunc: func(ctx context.Context, event calendar.Event) (string, error) {
			if failing {
				return "", errors.New("bridge down")
			}
			return "evt-retry", nil
		},
	}
	svc := calendar.NewService(st, client, cfg.Calendar, nil)
	_ = svc.SyncSchedule(ctx, capture.ID)
	if got := scheduleStatus(t, st, capture.ID); got != store.SyncFailed {
		t.Fatalf("expected sync_failed, got %s", got)
	}

	failing = false
	synced, err := svc.SweepFailedSyncs(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if synced != 1 {
		t.Fatalf("expected 1 synced, got %d", synced)
	}
	if got := scheduleStatus(t, st, capture.ID); got != store.SyncSynced {
		t.Fatalf("expected synced, got %s", got)
	}
}
