package queue_test

import (
	"context"
	"testing"
	"time"

	"captor/internal/queue"
	"captor/internal/testsupport"
)

func newQueue(t *testing.T) *queue.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return testsupport.MustOpenQueue(t, cfg)
}

func enqueue(t *testing.T, q *queue.Store, captureID string) *queue.Item {
	t.Helper()
	item, err := q.Enqueue(context.Background(), captureID, 3)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return item
}

func TestEnqueueDefaults(t *testing.T) {
	q := newQueue(t)

	item := enqueue(t, q, "cap-1")
	if item.Status != queue.StatusPending {
		t.Fatalf("expected pending, got %s", item.Status)
	}
	if item.RetryCount != 0 {
		t.Fatalf("expected zero retries, got %d", item.RetryCount)
	}
	if item.MaxRetries != 3 {
		t.Fatalf("expected max retries 3, got %d", item.MaxRetries)
	}
	if item.NextRetryAt != nil {
		t.Fatal("fresh item should have no retry time")
	}
}

func TestEnqueueDeduplicatesLiveItems(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	first := enqueue(t, q, "cap-1")
	second := enqueue(t, q, "cap-1")
	if first.ID != second.ID {
		t.Fatalf("expected existing item, got new id %d", second.ID)
	}

	if err := q.MarkCompleted(ctx, first.ID); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	third := enqueue(t, q, "cap-1")
	if third.ID == first.ID {
		t.Fatal("completed item should not block a new enqueue")
	}
}

func TestDuePendingOrdersOldestFirst(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	first := enqueue(t, q, "cap-1")
	time.Sleep(5 * time.Millisecond)
	second := enqueue(t, q, "cap-2")

	due, err := q.DuePending(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("due pending: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due items, got %d", len(due))
	}
	if due[0].ID != first.ID || due[1].ID != second.ID {
		t.Fatalf("expected fifo order, got %d then %d", due[0].ID, due[1].ID)
	}
}

func TestDuePendingSkipsFutureRetries(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	item := enqueue(t, q, "cap-1")
	future := time.Now().UTC().Add(time.Hour)
	if err := q.ScheduleRetry(ctx, item.ID, "network down", future); err != nil {
		t.Fatalf("schedule retry: %v", err)
	}

	due, err := q.DuePending(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("due pending: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected no due items, got %d", len(due))
	}

	due, err = q.DuePending(ctx, future.Add(time.Second))
	if err != nil {
		t.Fatalf("due pending after retry time: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected item due after retry time, got %d", len(due))
	}
	if due[0].RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", due[0].RetryCount)
	}
	if due[0].ErrorMessage != "network down" {
		t.Fatalf("expected error message preserved, got %q", due[0].ErrorMessage)
	}
}

func TestMarkProcessingClaimsOnce(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	item := enqueue(t, q, "cap-1")

	claimed, err := q.MarkProcessing(ctx, item.ID)
	if err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if !claimed {
		t.Fatal("expected first claim to succeed")
	}

	claimed, err = q.MarkProcessing(ctx, item.ID)
	if err != nil {
		t.Fatalf("second mark processing: %v", err)
	}
	if claimed {
		t.Fatal("expected second claim to fail")
	}
}

func TestMarkCompletedClearsErrorState(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	item := enqueue(t, q, "cap-1")
	if err := q.ScheduleRetry(ctx, item.ID, "transient", time.Now().UTC()); err != nil {
		t.Fatalf("schedule retry: %v", err)
	}
	if err := q.MarkCompleted(ctx, item.ID); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	got, err := q.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.ErrorMessage != "" || got.NextRetryAt != nil {
		t.Fatalf("expected error state cleared: %+v", got)
	}
}

func TestUpdateHeartbeatRefreshesLiveness(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	item := enqueue(t, q, "cap-1")
	if _, err := q.MarkProcessing(ctx, item.ID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	claimed, err := q.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if claimed.LastHeartbeat == nil {
		t.Fatal("claim should set a heartbeat")
	}

	time.Sleep(2 * time.Millisecond)
	if err := q.UpdateHeartbeat(ctx, item.ID); err != nil {
		t.Fatalf("update heartbeat: %v", err)
	}
	refreshed, err := q.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if refreshed.LastHeartbeat == nil || !refreshed.LastHeartbeat.After(*claimed.LastHeartbeat) {
		t.Fatalf("heartbeat not refreshed: %v -> %v", claimed.LastHeartbeat, refreshed.LastHeartbeat)
	}
}

func TestResetStaleProcessingKeepsRetryCount(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	item := enqueue(t, q, "cap-1")
	if err := q.ScheduleRetry(ctx, item.ID, "transient", time.Now().UTC().Add(-time.Minute)); err != nil {
		t.Fatalf("schedule retry: %v", err)
	}
	if _, err := q.MarkProcessing(ctx, item.ID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}

	reset, err := q.ResetStaleProcessing(ctx, nil)
	if err != nil {
		t.Fatalf("reset stale processing: %v", err)
	}
	if reset != 1 {
		t.Fatalf("expected 1 reset, got %d", reset)
	}

	got, err := q.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Status != queue.StatusPending {
		t.Fatalf("expected pending, got %s", got.Status)
	}
	if got.RetryCount != 1 {
		t.Fatalf("expected retry count preserved, got %d", got.RetryCount)
	}
}

func TestResetStaleProcessingHonorsCutoff(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	item := enqueue(t, q, "cap-1")
	if _, err := q.MarkProcessing(ctx, item.ID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}

	// Heartbeat is fresh, a cutoff in the past must not reclaim it.
	cutoff := time.Now().UTC().Add(-time.Minute)
	reset, err := q.ResetStaleProcessing(ctx, &cutoff)
	if err != nil {
		t.Fatalf("reset stale processing: %v", err)
	}
	if reset != 0 {
		t.Fatalf("expected no resets, got %d", reset)
	}
}

func TestRetryFailedResetsBudget(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	item := enqueue(t, q, "cap-1")
	for i := 0; i < 3; i++ {
		if err := q.ScheduleRetry(ctx, item.ID, "boom", time.Now().UTC()); err != nil {
			t.Fatalf("schedule retry: %v", err)
		}
	}
	if err := q.MarkFailed(ctx, item.ID, "exhausted"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	retried, err := q.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if retried != 1 {
		t.Fatalf("expected 1 retried, got %d", retried)
	}

	got, err := q.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Status != queue.StatusPending || got.RetryCount != 0 {
		t.Fatalf("expected fresh pending item, got %+v", got)
	}
}

func TestPurgeCompleted(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	item := enqueue(t, q, "cap-1")
	if err := q.MarkCompleted(ctx, item.ID); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	purged, err := q.PurgeCompleted(ctx, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("purge completed: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged, got %d", purged)
	}

	got, err := q.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got != nil {
		t.Fatal("expected item removed")
	}
}

func TestStatsAndHealth(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	enqueue(t, q, "cap-1")
	second := enqueue(t, q, "cap-2")
	if err := q.MarkFailed(ctx, second.ID, "boom"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	health, err := q.Health(ctx)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.Total != 2 || health.Pending != 1 || health.Failed != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}
}

func TestItemDueAndTerminalStatus(t *testing.T) {
	now := time.Now()
	item := &queue.Item{Status: queue.StatusPending}
	if !item.Due(now) {
		t.Fatal("pending item with no retry time should be due")
	}

	future := now.Add(time.Minute)
	item.NextRetryAt = &future
	if item.Due(now) {
		t.Fatal("item with a future retry time should not be due")
	}

	item.Status = queue.StatusCompleted
	item.NextRetryAt = nil
	if item.Due(now) {
		t.Fatal("terminal items are never due")
	}
	if !queue.StatusCompleted.IsTerminal() || !queue.StatusFailed.IsTerminal() {
		t.Fatal("completed and failed end the lifecycle")
	}
	if queue.StatusPending.IsTerminal() || queue.StatusProcessing.IsTerminal() {
		t.Fatal("pending and processing are live states")
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := queue.ParseStatus(" Pending "); !ok || status != queue.StatusPending {
		t.Fatalf("expected pending, got %q ok=%v", status, ok)
	}
	if _, ok := queue.ParseStatus("bogus"); ok {
		t.Fatal("expected parse failure")
	}
}
